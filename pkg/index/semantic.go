package index

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// SemanticIndex layers vector search over the lexical MemoryIndex.
// It is optional: its absence never changes the correctness of Search,
// FindSymbol, or FindRelated, only their recall when enabled.
type SemanticIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	llm        *LLMClient
}

// NewSemanticIndex creates a semantic layer backed by an embedded chromem-go
// collection. Returns nil, nil if llm is not configured — callers should
// treat a nil *SemanticIndex as "semantic search disabled".
func NewSemanticIndex(llm *LLMClient, collectionName string) (*SemanticIndex, error) {
	if llm == nil || !llm.IsConfigured() {
		return nil, nil
	}

	db := chromem.NewDB()
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return llm.Embed(ctx, text)
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &SemanticIndex{db: db, collection: collection, llm: llm}, nil
}

// IndexChunk embeds and stores a chunk for later semantic retrieval.
func (s *SemanticIndex) IndexChunk(ctx context.Context, chunk Chunk) error {
	if s == nil {
		return nil
	}
	return s.collection.AddDocument(ctx, chromem.Document{
		ID:      chunk.ID,
		Content: chunk.Content,
		Metadata: map[string]string{
			"path":       chunk.Path,
			"start_line": itoaSemantic(chunk.StartLine),
			"end_line":   itoaSemantic(chunk.EndLine),
			"language":   chunk.Language,
		},
	})
}

// RemoveFile drops every chunk indexed under path from the semantic layer.
// chromem-go has no prefix-delete, so callers track chunk IDs per file and
// call this with those IDs directly.
func (s *SemanticIndex) RemoveChunks(ctx context.Context, ids []string) error {
	if s == nil || len(ids) == 0 {
		return nil
	}
	return s.collection.Delete(ctx, nil, nil, ids...)
}

// Query returns the n most semantically similar chunks to query, blended
// with the caller's lexical results by the MemoryIndex.GetContext path.
func (s *SemanticIndex) Query(ctx context.Context, query string, n int) ([]chromem.Result, error) {
	if s == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 10
	}
	if count := s.collection.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}
	return s.collection.Query(ctx, query, n, nil, nil)
}

func itoaSemantic(n int) string {
	return itoa(n)
}
