package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionBySeverity(t *testing.T) {
	out := "x.go:3: Error: undefined foo\nx.go:5: unused import\nsome Error here too"
	errs, warns := partitionBySeverity(out)
	assert.Len(t, errs, 2)
	assert.Len(t, warns, 1)
}

func TestValidate_UnknownExtension_Skipped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))

	v := New(t.TempDir(), nil)
	result := v.Validate(context.Background(), "notes.txt", dir)

	assert.Equal(t, sdk.ValidationSkipped, result.Status)
}

func TestValidate_GoFile_CleanBuild_Success(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/tmp\n\ngo 1.21\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644))

	v := New(t.TempDir(), nil)
	result := v.Validate(context.Background(), "main.go", dir)

	assert.True(t, result.Status == sdk.ValidationSuccess || result.Status == sdk.ValidationErrors,
		"expects a definite verdict; exact status depends on whether the go toolchain is on PATH")
}

func TestValidate_ShadowWorkspaceReusedAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/tmp\n\ngo 1.21\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644))

	v := New(t.TempDir(), nil)
	v.Validate(context.Background(), "main.go", dir)
	first := v.shadows[dir]
	v.Validate(context.Background(), "main.go", dir)
	second := v.shadows[dir]

	assert.Equal(t, first, second, "shadow workspace is created once per project and reused")
}

func TestProjectKey_StableForSamePath(t *testing.T) {
	assert.Equal(t, projectKey("/a/b/c"), projectKey("/a/b/c"))
	assert.NotEqual(t, projectKey("/a/b/c"), projectKey("/a/b/d"))
}
