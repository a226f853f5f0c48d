// Package memory implements per-project learnings: a short, deduplicated
// markdown file read before every prompt and appended to on successful
// task finalization.
package memory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dirName  = ".lingcode"
	fileName = "memory.md"
)

// Store reads and appends project memory at <project>/.lingcode/memory.md.
type Store struct {
	path string
}

// New returns a Store rooted at projectDir.
func New(projectDir string) *Store {
	return &Store{path: filepath.Join(projectDir, dirName, fileName)}
}

// Read returns the memory file's contents, or "" if it doesn't exist yet.
func (s *Store) Read() (string, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read memory: %w", err)
	}
	return string(b), nil
}

// Append adds a learning line if it isn't already present (case-insensitive,
// whitespace-trimmed comparison), creating the file and its directory if
// needed. Each entry is timestamped.
func (s *Store) Append(learning string) error {
	learning = strings.TrimSpace(learning)
	if learning == "" {
		return nil
	}

	existing, err := s.Read()
	if err != nil {
		return err
	}
	if containsLine(existing, learning) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open memory file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("- [%s] %s\n", time.Now().UTC().Format("2006-01-02"), learning)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}

func containsLine(content, learning string) bool {
	target := strings.ToLower(learning)
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.ToLower(scanner.Text())
		if strings.Contains(line, target) {
			return true
		}
	}
	return false
}
