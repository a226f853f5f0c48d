package agent

import (
	"context"
	"testing"

	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodingAgentSkill_PlanAndExecuteRoundTrip(t *testing.T) {
	router := &scriptedRouter{responses: []string{doneCall("answered")}}
	runner := NewTaskRunner(router, "test-model", "system")

	skill := NewCodingAgentSkill(sdk.SkillMetadata{Name: "coding-agent"}, runner, t.TempDir())

	task := &sdk.Task{ID: "t1", Description: "what does parser.go do?"}
	ok, confidence := skill.CanHandle(context.Background(), &sdk.ExecutionContext{}, task)
	require.True(t, ok)
	assert.Greater(t, confidence, 0.0)

	plan, err := skill.Plan(context.Background(), &sdk.ExecutionContext{}, task)
	require.NoError(t, err)
	assert.Equal(t, task.Description, plan.Description)

	result, err := skill.Execute(context.Background(), &sdk.ExecutionContext{WorkDir: t.TempDir()}, plan)
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSuccess, result.Status)
}
