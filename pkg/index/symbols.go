package index

import (
	"context"
	"os"
)

// Symbols returns the current symbol list for path, reparsing the file on
// disk if it has changed since the last parse. Unknown/unreadable paths
// return an empty list, never an error — matching the index's
// never-panic-on-malformed-input contract.
func (idx *MemoryIndex) Symbols(path string) ([]Symbol, error) {
	idx.mu.RLock()
	file, ok := idx.files[path]
	stale := false
	if ok {
		if info, err := os.Stat(path); err == nil && info.ModTime().Unix() > file.ModTime {
			stale = true
		}
	}
	idx.mu.RUnlock()

	if ok && !stale {
		return file.Symbols, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if ok {
			return file.Symbols, nil
		}
		return nil, nil
	}

	if err := idx.IndexFile(context.Background(), path, content); err != nil {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.files[path].Symbols, nil
}

// Invalidate forces the next Symbols(path) call to reparse from disk.
func (idx *MemoryIndex) Invalidate(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if file, ok := idx.files[path]; ok {
		file.ModTime = 0
	}
}
