// Package edit implements the structured edit engine: anchor resolution
// against a symbol index, line-range application, and atomic file writes.
package edit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lingcode/agentcore/pkg/index"
	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/ternarybob/arbor"
)

// SymbolLookup is the subset of the symbol index the Edit Engine needs for
// anchor resolution. pkg/index.MemoryIndex satisfies this via FindSymbol,
// but the engine is kept decoupled from any one index implementation.
type SymbolLookup interface {
	Symbols(path string) ([]index.Symbol, error)
}

// Notifier receives before/after content for applied edits so a UI layer
// can render diffs. Both FileCreated and FileUpdated pass the same shape;
// Before is empty for creates.
type Notifier interface {
	FileCreated(path, after string)
	FileUpdated(path, before, after string)
}

type noopNotifier struct{}

func (noopNotifier) FileCreated(string, string)        {}
func (noopNotifier) FileUpdated(string, string, string) {}

// Engine applies structured Edits to files inside a bounded workspace.
type Engine struct {
	workspace string
	symbols   SymbolLookup
	notify    Notifier
	log       arbor.ILogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSymbols sets the symbol index used for anchor resolution.
func WithSymbols(s SymbolLookup) Option {
	return func(e *Engine) { e.symbols = s }
}

// WithNotifier sets the diff-notification sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notify = n }
}

// WithLogger sets the structured logger.
func WithLogger(l arbor.ILogger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine rooted at workspace. workspace must be an absolute,
// canonicalized directory; every Edit's file is resolved relative to it and
// validated to stay inside it.
func New(workspace string, opts ...Option) *Engine {
	e := &Engine{
		workspace: workspace,
		notify:    noopNotifier{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply validates and applies a single Edit, replacing the target file
// atomically on success.
func (e *Engine) Apply(edit sdk.Edit) error {
	absPath, err := e.resolvePath(edit.File)
	if err != nil {
		return err
	}

	if len(edit.Content) > sdk.MaxEditContentLines {
		return &sdk.EditError{Kind: sdk.EditErrTooLarge, Msg: fmt.Sprintf("%d lines exceeds cap of %d", len(edit.Content), sdk.MaxEditContentLines)}
	}

	existing, readErr := os.ReadFile(absPath)
	existed := readErr == nil

	switch edit.Operation {
	case sdk.EditReplace, sdk.EditInsert, sdk.EditDelete:
		// handled below
	default:
		return &sdk.EditError{Kind: sdk.EditErrInvalidOperation, Msg: string(edit.Operation)}
	}

	// Whole-file replace: no range, no anchor.
	if edit.Operation == sdk.EditReplace && edit.Range == nil && edit.Anchor == nil {
		newContent := strings.Join(edit.Content, "\n")
		if newContent != "" {
			newContent += "\n"
		}
		return e.write(absPath, edit.File, string(existing), newContent, existed)
	}

	if edit.Operation == sdk.EditInsert && edit.Content == nil {
		return &sdk.EditError{Kind: sdk.EditErrInvalidOperation, Msg: "insert requires content"}
	}

	if !existed {
		return &sdk.EditError{Kind: sdk.EditErrFileNotFound, Msg: edit.File}
	}

	lines := splitLines(string(existing))

	rng, err := e.resolveRange(edit, lines)
	if err != nil {
		return err
	}

	if rng.Start < 1 || rng.Start > rng.End {
		return &sdk.EditError{Kind: sdk.EditErrInvalidRange, Msg: fmt.Sprintf("start=%d end=%d", rng.Start, rng.End)}
	}

	start := rng.Start - 1
	end := rng.End
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		start = len(lines)
	}

	var result []string
	switch edit.Operation {
	case sdk.EditInsert:
		result = append(result, lines[:start]...)
		result = append(result, edit.Content...)
		result = append(result, lines[start:]...)
	case sdk.EditReplace:
		result = append(result, lines[:start]...)
		result = append(result, edit.Content...)
		result = append(result, lines[end:]...)
	case sdk.EditDelete:
		result = append(result, lines[:start]...)
		result = append(result, lines[end:]...)
	}

	newContent := strings.Join(result, "\n")
	if len(result) > 0 {
		newContent += "\n"
	}

	return e.write(absPath, edit.File, string(existing), newContent, existed)
}

// resolveRange implements the anchor-resolution priority from the spec:
// name+kind lookup, then parent+childIndex lookup, then explicit range.
func (e *Engine) resolveRange(edit sdk.Edit, lines []string) (sdk.LineRange, error) {
	if edit.Anchor != nil && e.symbols != nil {
		symbols, err := e.symbols.Symbols(edit.File)
		if err == nil {
			if rng, ok := resolveByNameKind(symbols, *edit.Anchor); ok {
				return rng, nil
			}
			if rng, ok := resolveByParentChild(symbols, *edit.Anchor); ok {
				return rng, nil
			}
		}
	}

	if edit.Range != nil {
		return *edit.Range, nil
	}

	return sdk.LineRange{}, &sdk.EditError{Kind: sdk.EditErrInvalidRange, Msg: "anchor unresolved and no explicit range"}
}

func resolveByNameKind(symbols []index.Symbol, a sdk.Anchor) (sdk.LineRange, bool) {
	for _, sym := range symbols {
		if sym.Name == a.Name && anchorKindMatches(sym.Kind, a.Kind) {
			return sdk.LineRange{Start: sym.Line, End: sym.EndLine}, true
		}
	}
	return sdk.LineRange{}, false
}

func resolveByParentChild(symbols []index.Symbol, a sdk.Anchor) (sdk.LineRange, bool) {
	if a.Parent == "" || !a.HasChild {
		return sdk.LineRange{}, false
	}
	var children []index.Symbol
	for _, sym := range symbols {
		if sym.Parent == a.Parent {
			children = append(children, sym)
		}
	}
	if a.ChildIndex < 0 || a.ChildIndex >= len(children) {
		return sdk.LineRange{}, false
	}
	sym := children[a.ChildIndex]
	return sdk.LineRange{Start: sym.Line, End: sym.EndLine}, true
}

func anchorKindMatches(symKind index.SymbolKind, anchorKind sdk.AnchorKind) bool {
	switch anchorKind {
	case sdk.AnchorFunction:
		return symKind == index.SymbolFunction
	case sdk.AnchorMethod:
		return symKind == index.SymbolMethod
	case sdk.AnchorClass:
		return symKind == index.SymbolClass
	case sdk.AnchorStruct:
		return symKind == index.SymbolStruct
	case sdk.AnchorEnum:
		return symKind == index.SymbolEnum
	case sdk.AnchorProtocol:
		return symKind == index.SymbolInterface
	case sdk.AnchorProperty, sdk.AnchorVariable:
		return symKind == index.SymbolField || symKind == index.SymbolVariable || symKind == index.SymbolProperty
	default:
		return false
	}
}

// resolvePath canonicalizes file relative to the workspace and rejects any
// path (including via symlink) that escapes it.
func (e *Engine) resolvePath(file string) (string, error) {
	joined := filepath.Join(e.workspace, file)
	resolved, err := filepath.EvalSymlinks(filepath.Dir(joined))
	base := filepath.Dir(joined)
	if err == nil {
		base = resolved
	}
	absWorkspace, err := filepath.EvalSymlinks(e.workspace)
	if err != nil {
		absWorkspace = e.workspace
	}

	rel, err := filepath.Rel(absWorkspace, base)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &sdk.EditError{Kind: sdk.EditErrOutsideWorkspace, Msg: file}
	}

	return filepath.Join(base, filepath.Base(joined)), nil
}

// write performs the idempotency check and an atomic write-temp-then-rename.
func (e *Engine) write(absPath, relPath, before, after string, existed bool) error {
	if existed && strings.TrimSpace(before) == strings.TrimSpace(after) {
		if e.log != nil {
			e.log.Debug().Str("file", relPath).Msg("edit unchanged, skipping write")
		}
		return nil
	}

	dir := filepath.Dir(absPath)
	tmp, err := os.CreateTemp(dir, ".edit-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(after); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	if existed {
		e.notify.FileUpdated(relPath, before, after)
	} else {
		e.notify.FileCreated(relPath, after)
	}
	if e.log != nil {
		e.log.Info().Str("file", relPath).Bool("created", !existed).Msg("applied edit")
	}
	return nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
