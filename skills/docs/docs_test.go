package docs

import (
	"context"
	"testing"

	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	response string
}

func (f *fakeRouter) Complete(sdk.CompletionRequest) (*sdk.CompletionResponse, error) {
	return &sdk.CompletionResponse{Content: f.response}, nil
}
func (f *fakeRouter) Stream(sdk.CompletionRequest) (<-chan sdk.StreamChunk, error) { return nil, nil }
func (f *fakeRouter) CountTokens(string) (int, error)                             { return 0, nil }
func (f *fakeRouter) ForPlanning() sdk.LLMProvider                                { return nil }
func (f *fakeRouter) ForExecution() sdk.LLMProvider                               { return nil }
func (f *fakeRouter) ForValidation() sdk.LLMProvider                              { return nil }

func TestSkill_Execute_AppliesDocEditFromLLM(t *testing.T) {
	response := "```json\n" +
		`{"edits":[{"file":"README.md","operation":"replace","content":["# Greeting"]}]}` +
		"\n```"

	s := New()
	task := &sdk.Task{ID: "d1", Description: "write a README"}
	execCtx := &sdk.ExecutionContext{WorkDir: t.TempDir(), LLM: &fakeRouter{response: response}}

	plan, err := s.Plan(context.Background(), execCtx, task)
	require.NoError(t, err)

	result, err := s.Execute(context.Background(), execCtx, plan)
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSuccess, result.Status)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "README.md", result.Changes[0].Path)
}

func TestSkill_Execute_NoLLMConfigured_Fails(t *testing.T) {
	s := New()
	task := &sdk.Task{ID: "d2", Description: "document the API"}
	execCtx := &sdk.ExecutionContext{WorkDir: t.TempDir()}

	plan, err := s.Plan(context.Background(), execCtx, task)
	require.NoError(t, err)

	result, err := s.Execute(context.Background(), execCtx, plan)
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusFailed, result.Status)
}
