package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Read_MissingFileReturnsEmpty(t *testing.T) {
	s := New(t.TempDir())
	content, err := s.Read()
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestStore_Append_CreatesFileAndReadsBack(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Append("uses pytest for tests"))

	content, err := s.Read()
	require.NoError(t, err)
	assert.Contains(t, content, "uses pytest for tests")
}

func TestStore_Append_DeduplicatesCaseInsensitive(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Append("Prefers TypeScript over JavaScript"))
	require.NoError(t, s.Append("prefers typescript over javascript"))

	content, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.ToLower(content), "typescript"))
}

func TestStore_Append_IgnoresBlank(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Append("   "))

	content, err := s.Read()
	require.NoError(t, err)
	assert.Empty(t, content)
}
