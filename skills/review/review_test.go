package review

import (
	"context"
	"testing"

	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkill_Execute_NoFilesNamed_Skips(t *testing.T) {
	s := New(t.TempDir(), nil)
	task := &sdk.Task{ID: "r1", Description: "review this"}
	plan, err := s.Plan(context.Background(), &sdk.ExecutionContext{}, task)
	require.NoError(t, err)

	result, err := s.Execute(context.Background(), &sdk.ExecutionContext{WorkDir: t.TempDir()}, plan)
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSkipped, result.Status)
}

func TestSkill_Execute_UnknownExtensionIsReportedNotPassed(t *testing.T) {
	s := New(t.TempDir(), nil)
	task := &sdk.Task{ID: "r2", Description: "review notes.txt", Files: []string{"notes.txt"}}
	plan, err := s.Plan(context.Background(), &sdk.ExecutionContext{}, task)
	require.NoError(t, err)

	result, err := s.Execute(context.Background(), &sdk.ExecutionContext{WorkDir: t.TempDir()}, plan)
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusFailed, result.Status)
	assert.Contains(t, result.Message, "notes.txt")
}
