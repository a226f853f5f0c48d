package index

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	pkgindex "github.com/lingcode/agentcore/pkg/index"
)

// Config configures a repository-rooted Indexer.
type Config struct {
	RepoRoot string

	// IndexPath is relative to RepoRoot.
	IndexPath string

	ExcludeGlobs []string
	DebounceMs   int
}

// DefaultConfig returns sensible defaults for a repo rooted at repoRoot.
func DefaultConfig(repoRoot string) Config {
	return Config{
		RepoRoot:  repoRoot,
		IndexPath: filepath.Join(".iter", "index"),
		ExcludeGlobs: []string{
			"vendor/**", "*_test.go", ".git/**", "node_modules/**", ".iter/**",
		},
		DebounceMs: 500,
	}
}

// Chunk is a single indexed unit of code: a function, method, type, or
// constant declaration along with its source, signature, and documentation.
type Chunk struct {
	ID         string
	FilePath   string
	SymbolName string
	SymbolKind string
	Content    string
	Signature  string
	DocComment string
	StartLine  int
	EndLine    int
	Hash       string
	Branch     string
	IndexedAt  time.Time
}

// SearchOptions configures a Searcher query.
type SearchOptions struct {
	Query      string
	Limit      int
	SymbolKind string
	FilePath   string
	Branch     string
}

// SearchResult is a single ranked search hit.
type SearchResult struct {
	Chunk      Chunk
	Score      float32
	Rank       int
	MatchCount int
}

// IndexStats summarizes the Indexer's current state.
type IndexStats struct {
	DocumentCount int
	FileCount     int
	CurrentBranch string
	LastUpdated   time.Time
}

// DAGStats and ImpactResult are shared with the project indexer's
// dependency graph, which this Indexer also builds and queries.
type DAGStats = pkgindex.DAGStats
type ImpactResult = pkgindex.ImpactResult

const embedDim = 256

// Indexer is the CLI's repository-rooted code index: a chromem-go vector
// collection of per-symbol chunks, backed by a Go dependency graph and
// commit-lineage summaries. Unlike the project daemon's Indexer (pkg/index),
// this one stores chunks directly in chromem rather than behind a separate
// lexical index, matching the single-repo, single-process shape of the CLI.
type Indexer struct {
	mu sync.RWMutex

	cfg Config

	db         *chromem.DB
	collection *chromem.Collection
	parser     *Parser
	llm        *LLMClient

	dagParser *pkgindex.DAGParser
	dag       *pkgindex.DependencyGraph
	lineage   *ContextLineage

	fileChunks map[string][]string // relative file path -> chunk IDs in the collection

	branch      string
	lastUpdated time.Time
}

// NewIndexer builds an Indexer rooted at cfg.RepoRoot, loading any
// persisted dependency graph and lineage history from cfg.IndexPath.
func NewIndexer(cfg Config) (*Indexer, error) {
	if cfg.RepoRoot == "" {
		return nil, fmt.Errorf("index: config requires a repo root")
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = filepath.Join(".iter", "index")
	}

	absIndexPath := filepath.Join(cfg.RepoRoot, cfg.IndexPath)
	if err := os.MkdirAll(absIndexPath, 0o755); err != nil {
		return nil, fmt.Errorf("index: create index path: %w", err)
	}

	llm := NewLLMClient(DefaultLLMConfig())

	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection("code", nil, embedFunc(llm))
	if err != nil {
		return nil, fmt.Errorf("index: create collection: %w", err)
	}

	dag := pkgindex.NewDependencyGraph(filepath.Join(absIndexPath, "dag.json"))
	if err := dag.Load(); err != nil {
		return nil, fmt.Errorf("index: load dependency graph: %w", err)
	}

	lineage := NewContextLineage(cfg.RepoRoot, filepath.Join(absIndexPath, "lineage"), llm)
	if err := lineage.Load(); err != nil {
		return nil, fmt.Errorf("index: load lineage: %w", err)
	}

	return &Indexer{
		cfg:        cfg,
		db:         db,
		collection: collection,
		parser:     NewParser(cfg.RepoRoot),
		llm:        llm,
		dagParser:  pkgindex.NewDAGParser(cfg.RepoRoot),
		dag:        dag,
		lineage:    lineage,
		fileChunks: make(map[string][]string),
		branch:     getCurrentBranch(cfg.RepoRoot),
	}, nil
}

// embedFunc returns chromem's embedding callback. It prefers the configured
// Gemini client and falls back to a deterministic hashing embedding so
// indexing and keyword search keep working without an API key.
func embedFunc(llm *LLMClient) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		if llm.IsConfigured() {
			if vec, err := llm.Embed(text); err == nil {
				return vec, nil
			}
		}
		return hashEmbed(text), nil
	}
}

// hashEmbed produces a fixed-size bag-of-words vector via feature hashing.
// It has no semantic meaning on its own, but gives chromem's cosine search
// a stable, non-empty vector to rank against when no LLM is configured;
// Searcher.keywordSearch re-ranks the same documents by literal keyword
// overlap regardless of this vector's quality.
func hashEmbed(text string) []float32 {
	vec := make([]float32, embedDim)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32()%embedDim)]++
	}
	return vec
}

// GetConfig returns the configuration this Indexer was built from.
func (ix *Indexer) GetConfig() Config { return ix.cfg }

// GetCollection returns the underlying chromem-go collection for direct
// querying by Searcher.
func (ix *Indexer) GetCollection() *chromem.Collection { return ix.collection }

// GetDAG returns the dependency graph backing dependency/impact queries.
func (ix *Indexer) GetDAG() *pkgindex.DependencyGraph { return ix.dag }

// GetLineage returns the commit-lineage tracker for this repository.
func (ix *Indexer) GetLineage() *ContextLineage { return ix.lineage }

// IndexFile parses path, replaces any previously indexed chunks for it in
// the collection, and updates the dependency graph. Non-Go files are
// skipped; this Indexer's Parser only understands Go source.
func (ix *Indexer) IndexFile(path string) error {
	if !strings.HasSuffix(path, ".go") {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	relPath, err := filepath.Rel(ix.cfg.RepoRoot, path)
	if err != nil {
		relPath = path
	}

	ctx := context.Background()

	if oldIDs := ix.fileChunks[relPath]; len(oldIDs) > 0 {
		if err := ix.collection.Delete(ctx, nil, nil, oldIDs...); err != nil {
			return fmt.Errorf("index: remove stale chunks for %s: %w", relPath, err)
		}
	}

	chunks, err := ix.parser.ParseFile(path)
	if err != nil {
		return fmt.Errorf("index: parse %s: %w", path, err)
	}

	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		doc := chromem.Document{
			ID:      c.ID,
			Content: c.Content,
			Metadata: map[string]string{
				"file_path":   c.FilePath,
				"symbol_name": c.SymbolName,
				"symbol_kind": c.SymbolKind,
				"signature":   c.Signature,
				"doc_comment": c.DocComment,
				"start_line":  strconv.Itoa(c.StartLine),
				"end_line":    strconv.Itoa(c.EndLine),
				"hash":        c.Hash,
				"git_branch":  c.Branch,
			},
		}
		if err := ix.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("index: add document %s: %w", c.ID, err)
		}
		ids = append(ids, c.ID)
	}

	if len(ids) > 0 {
		ix.fileChunks[relPath] = ids
	} else {
		delete(ix.fileChunks, relPath)
	}

	if err := ix.dagParser.UpdateDAGForFile(ix.dag, path); err != nil {
		return fmt.Errorf("index: dependency graph %s: %w", path, err)
	}

	ix.branch = getCurrentBranch(ix.cfg.RepoRoot)
	ix.lastUpdated = time.Now()

	return nil
}

// IndexAll walks the repository, indexing every Go file and rebuilding the
// dependency graph from scratch.
func (ix *Indexer) IndexAll() error {
	if err := ix.dagParser.BuildDAGForRepo(ix.dag, ix.cfg.ExcludeGlobs); err != nil {
		return fmt.Errorf("index: build dependency graph: %w", err)
	}

	err := filepath.Walk(ix.cfg.RepoRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			rel, _ := filepath.Rel(ix.cfg.RepoRoot, path)
			if ix.isExcludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		if err := ix.IndexFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "index: warning: %v\n", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("index: walk repo: %w", err)
	}

	return ix.dag.Save()
}

func (ix *Indexer) isExcludedDir(relPath string) bool {
	if relPath == "." {
		return false
	}
	for _, glob := range ix.cfg.ExcludeGlobs {
		dir := strings.TrimSuffix(glob, "/**")
		if dir == glob {
			continue // not a directory-style glob
		}
		if relPath == dir || strings.HasPrefix(relPath, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Stats reports a snapshot of the Indexer's current state.
func (ix *Indexer) Stats() IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return IndexStats{
		DocumentCount: ix.collection.Count(),
		FileCount:     len(ix.fileChunks),
		CurrentBranch: ix.branch,
		LastUpdated:   ix.lastUpdated,
	}
}

// Clear empties the collection and dependency graph. The chromem-go
// collection itself is in-memory only, so this also covers what a fresh
// process start would give; the dependency graph is explicitly cleared
// and persisted so a stale dag.json isn't picked up by the next run.
func (ix *Indexer) Clear() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ctx := context.Background()
	for relPath, ids := range ix.fileChunks {
		if len(ids) == 0 {
			continue
		}
		if err := ix.collection.Delete(ctx, nil, nil, ids...); err != nil {
			return fmt.Errorf("index: clear chunks for %s: %w", relPath, err)
		}
	}
	ix.fileChunks = make(map[string][]string)

	ix.dag.Clear()
	if err := ix.dag.Save(); err != nil {
		return fmt.Errorf("index: save dependency graph: %w", err)
	}

	ix.lastUpdated = time.Time{}
	return nil
}
