package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Config configures a project-scoped Indexer: a repository-rooted aggregate
// that combines lexical search, an optional semantic layer, a dependency
// graph, and commit lineage for a single registered project.
type Config struct {
	ProjectID   string
	ProjectPath string
	RepoRoot    string
	IndexPath   string
	ExcludeGlobs []string
	DebounceMs  int
}

// ProjectChunk describes one symbol-level search hit within a project.
type ProjectChunk struct {
	FilePath   string
	SymbolName string
	SymbolKind string
	Content    string
	Signature  string
	DocComment string
	StartLine  int
	EndLine    int
}

// ProjectSearchOptions configures a project Searcher query.
type ProjectSearchOptions struct {
	Query      string
	Limit      int
	SymbolKind string
	FilePath   string
}

// ProjectSearchResult is a single ranked hit from a project Searcher query.
type ProjectSearchResult struct {
	Chunk      ProjectChunk
	Score      float32
	Rank       int
	MatchCount int
}

// ProjectIndexStats summarizes a project Indexer's current state.
type ProjectIndexStats struct {
	DocumentCount int
	FileCount     int
	CurrentBranch string
	LastUpdated   time.Time
}

// Indexer is the project-scoped aggregate wired up per registered project.
// It composes the already-built in-memory lexical index, an optional
// chromem-backed semantic layer, a Go dependency graph, and commit-lineage
// summaries behind the single surface internal/project, internal/api, and
// internal/mcp depend on.
type Indexer struct {
	mu sync.RWMutex

	cfg Config

	mem      *MemoryIndex
	semantic *SemanticIndex
	dagParse *DAGParser
	dag      *DependencyGraph
	lineage  *ContextLineage

	branch      string
	lastUpdated time.Time
}

// NewIndexer builds a project Indexer rooted at cfg.RepoRoot, loading any
// persisted dependency graph and lineage history from cfg.IndexPath.
func NewIndexer(cfg Config) (*Indexer, error) {
	if cfg.RepoRoot == "" {
		return nil, fmt.Errorf("index: config requires a repo root")
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = filepath.Join(cfg.RepoRoot, ".agentcore", "index")
	}
	if err := os.MkdirAll(cfg.IndexPath, 0o755); err != nil {
		return nil, fmt.Errorf("index: create index path: %w", err)
	}

	llm := NewLLMClient(DefaultLLMConfig())

	dag := NewDependencyGraph(filepath.Join(cfg.IndexPath, "dag.json"))
	if err := dag.Load(); err != nil {
		return nil, fmt.Errorf("index: load dependency graph: %w", err)
	}

	lineage := NewContextLineage(cfg.RepoRoot, filepath.Join(cfg.IndexPath, "lineage.json"), llm)
	if err := lineage.Load(); err != nil {
		return nil, fmt.Errorf("index: load lineage: %w", err)
	}

	semantic, err := NewSemanticIndex(llm, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("index: semantic index: %w", err)
	}

	ix := &Indexer{
		cfg:      cfg,
		mem:      NewMemoryIndex(),
		semantic: semantic,
		dagParse: NewDAGParser(cfg.RepoRoot),
		dag:      dag,
		lineage:  lineage,
		branch:   currentBranch(cfg.RepoRoot),
	}

	return ix, nil
}

// GetConfig returns the configuration this Indexer was built from.
func (ix *Indexer) GetConfig() Config { return ix.cfg }

// GetDAG returns the dependency graph backing GetDependencies/GetImpact
// queries.
func (ix *Indexer) GetDAG() *DependencyGraph { return ix.dag }

// GetLineage returns the commit-lineage tracker for this project.
func (ix *Indexer) GetLineage() *ContextLineage { return ix.lineage }

// SaveDAG persists the dependency graph to disk. Called by Watcher after
// every observed commit-head change.
func (ix *Indexer) SaveDAG() error {
	return ix.dag.Save()
}

// IndexFile updates the lexical index, semantic index (if configured), and
// dependency graph for a single file.
func (ix *Indexer) IndexFile(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("index: read %s: %w", path, err)
	}

	ctx := context.Background()
	if err := ix.mem.IndexFile(ctx, path, content); err != nil {
		return fmt.Errorf("index: lexical index %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".go") {
		if err := ix.dagParse.UpdateDAGForFile(ix.dag, path); err != nil {
			return fmt.Errorf("index: dependency graph %s: %w", path, err)
		}
	}

	if ix.semantic != nil {
		if file, err := ix.mem.GetFile(ctx, path); err == nil {
			for _, c := range file.Chunks {
				_ = ix.semantic.IndexChunk(ctx, c)
			}
		}
	}

	ix.lastUpdated = time.Now()
	return nil
}

// IndexAll walks the repository, indexing every included file and rebuilding
// the dependency graph from scratch.
func (ix *Indexer) IndexAll() error {
	ix.mu.Lock()
	ix.branch = currentBranch(ix.cfg.RepoRoot)
	ix.mu.Unlock()

	if err := ix.dagParse.BuildDAGForRepo(ix.dag, ix.cfg.ExcludeGlobs); err != nil {
		return fmt.Errorf("index: build dependency graph: %w", err)
	}

	walker := NewWalker(IndexOptions{
		ExcludePatterns: ix.cfg.ExcludeGlobs,
		MaxFileSize:     5 << 20,
	})

	files, err := walker.ListFiles(context.Background(), ix.cfg.RepoRoot)
	if err != nil {
		return fmt.Errorf("index: list files: %w", err)
	}

	for _, relPath := range files {
		if err := ix.IndexFile(filepath.Join(ix.cfg.RepoRoot, relPath)); err != nil {
			fmt.Fprintf(os.Stderr, "index: warning: %v\n", err)
		}
	}

	return ix.SaveDAG()
}

// Stats reports a snapshot of the project Indexer's current state.
func (ix *Indexer) Stats() ProjectIndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := ProjectIndexStats{
		CurrentBranch: ix.branch,
		LastUpdated:   ix.lastUpdated,
	}

	if memStats, err := ix.mem.Stats(context.Background()); err == nil {
		stats.DocumentCount = memStats.ChunkCount
		stats.FileCount = memStats.FileCount
	}

	return stats
}

func currentBranch(repoRoot string) string {
	data, err := os.ReadFile(filepath.Join(repoRoot, ".git", "HEAD"))
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(data))
	if strings.HasPrefix(line, "ref: refs/heads/") {
		return strings.TrimPrefix(line, "ref: refs/heads/")
	}
	return line
}

// Dependencies wraps the edges found for a symbol lookup, formatted for
// display by MCP tools and HTTP handlers.
type Dependencies struct {
	Symbol string
	Edges  []Edge
}

// FormatDependencies renders the edges as a markdown list under title.
func (d *Dependencies) FormatDependencies(title string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s: %s\n\n", title, d.Symbol))

	if len(d.Edges) == 0 {
		sb.WriteString("None found.\n")
		return sb.String()
	}

	for _, e := range d.Edges {
		sb.WriteString(fmt.Sprintf("- `%s` --[%s]--> `%s` (%s:%d)\n", e.Source, e.EdgeType, e.Target, e.FilePath, e.Line))
	}

	return sb.String()
}

// Searcher answers symbol search, dependency, and impact queries against a
// project Indexer's dependency graph.
type Searcher struct {
	indexer *Indexer
}

// NewSearcher builds a Searcher bound to a project Indexer.
func NewSearcher(indexer *Indexer) *Searcher {
	return &Searcher{indexer: indexer}
}

// Search ranks dependency-graph nodes against opts.Query by keyword overlap
// across symbol name, signature, and documentation.
func (s *Searcher) Search(ctx context.Context, opts ProjectSearchOptions) ([]ProjectSearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	keywords := strings.Fields(strings.ToLower(opts.Query))

	type scored struct {
		node  *Node
		score int
	}
	var matches []scored

	for _, n := range s.indexer.dag.AllNodes() {
		if opts.SymbolKind != "" && n.Kind != opts.SymbolKind {
			continue
		}
		if opts.FilePath != "" && !strings.HasPrefix(n.FilePath, opts.FilePath) {
			continue
		}

		nameLower := strings.ToLower(n.Name)
		sigLower := strings.ToLower(n.Signature)
		docLower := strings.ToLower(n.DocComment)

		score := 0
		for _, kw := range keywords {
			switch {
			case nameLower == kw:
				score += 10
			case strings.Contains(nameLower, kw):
				score += 5
			}
			if strings.Contains(sigLower, kw) {
				score += 3
			}
			if strings.Contains(docLower, kw) {
				score++
			}
		}

		if score > 0 {
			matches = append(matches, scored{node: n, score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	var results []ProjectSearchResult
	for i, m := range matches {
		if i >= opts.Limit {
			break
		}
		results = append(results, ProjectSearchResult{
			Chunk: ProjectChunk{
				FilePath:   m.node.FilePath,
				SymbolName: m.node.Name,
				SymbolKind: m.node.Kind,
				Signature:  m.node.Signature,
				DocComment: m.node.DocComment,
				StartLine:  m.node.StartLine,
				EndLine:    m.node.EndLine,
			},
			Score:      float32(m.score) / 100.0,
			Rank:       i + 1,
			MatchCount: m.score,
		})
	}

	return results, nil
}

// GetDependencies returns what symbol depends on.
func (s *Searcher) GetDependencies(symbol string) (*Dependencies, error) {
	nodes := s.indexer.dag.FindNodeByName(symbol)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("index: symbol not found: %s", symbol)
	}

	var edges []Edge
	for _, n := range nodes {
		edges = append(edges, s.indexer.dag.GetDependencies(n.ID)...)
	}

	return &Dependencies{Symbol: symbol, Edges: edges}, nil
}

// GetDependents returns what depends on symbol.
func (s *Searcher) GetDependents(symbol string) (*Dependencies, error) {
	nodes := s.indexer.dag.FindNodeByName(symbol)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("index: symbol not found: %s", symbol)
	}

	var edges []Edge
	for _, n := range nodes {
		edges = append(edges, s.indexer.dag.GetDependents(n.ID)...)
	}

	return &Dependencies{Symbol: symbol, Edges: edges}, nil
}

// GetImpact reports the direct and indirect blast radius of changing
// filePath.
func (s *Searcher) GetImpact(filePath string) (*ImpactResult, error) {
	return s.indexer.dag.GetImpact(filePath), nil
}
