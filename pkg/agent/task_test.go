package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/lingcode/agentcore/pkg/edit"
	"github.com/lingcode/agentcore/pkg/memory"
	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeToolArgs(args map[string]any) string {
	b, _ := json.Marshal(args)
	return base64.StdEncoding.EncodeToString(b)
}

// scriptedRouter replays a fixed sequence of inline-dialect responses, one
// per Stream call, regardless of the prompt it is given.
type scriptedRouter struct {
	responses []string
	calls     int
}

func (s *scriptedRouter) Complete(sdk.CompletionRequest) (*sdk.CompletionResponse, error) {
	return nil, nil
}

func (s *scriptedRouter) Stream(sdk.CompletionRequest) (<-chan sdk.StreamChunk, error) {
	ch := make(chan sdk.StreamChunk, 4)
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	ch <- sdk.StreamChunk{Content: s.responses[idx]}
	ch <- sdk.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (s *scriptedRouter) CountTokens(string) (int, error) { return 0, nil }
func (s *scriptedRouter) ForPlanning() sdk.LLMProvider    { return nil }
func (s *scriptedRouter) ForExecution() sdk.LLMProvider   { return nil }
func (s *scriptedRouter) ForValidation() sdk.LLMProvider  { return nil }

func doneCall(summary string) string {
	return "TOOL_CALL:1:done:" + b64Done(summary) + "\n"
}

func b64Done(summary string) string {
	return encodeToolArgs(map[string]any{"summary": summary})
}

func readCall(path string) string {
	return "TOOL_CALL:1:read_file:" + encodeToolArgs(map[string]any{"file_path": path}) + "\n"
}

func terminalCall(command string) string {
	return "TOOL_CALL:1:run_terminal_command:" + encodeToolArgs(map[string]any{"command": command}) + "\n"
}

// fixedApproval always returns the same approve/deny verdict, recording how
// many times it was consulted.
type fixedApproval struct {
	approve bool
	calls   int
}

func (f *fixedApproval) RequestApproval(context.Context, sdk.Decision, string) (bool, error) {
	f.calls++
	return f.approve, nil
}

func TestTaskRunner_DoneRejectedWhenModificationRequired(t *testing.T) {
	router := &scriptedRouter{responses: []string{
		doneCall("nothing to do"),
		doneCall("still nothing"),
	}}

	r := NewTaskRunner(router, "test-model", "system")
	r.MaxIterations = 5

	task := &sdk.Task{ID: "t1", Description: "fix the bug in parser.go"}
	result, err := r.Run(context.Background(), task, t.TempDir())

	require.Error(t, err)
	assert.Equal(t, sdk.ResultStatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "required changes")
}

func TestTaskRunner_DoneAcceptedWhenNoModificationRequired(t *testing.T) {
	router := &scriptedRouter{responses: []string{doneCall("answered the question")}}

	r := NewTaskRunner(router, "test-model", "system")
	task := &sdk.Task{ID: "t2", Description: "what does this function do?"}
	result, err := r.Run(context.Background(), task, t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSuccess, result.Status)
}

func TestTaskRunner_MemoryAppendedOnSuccessAndReadOnNextPrompt(t *testing.T) {
	router := &scriptedRouter{responses: []string{doneCall("prefers functional options")}}

	store := memory.New(t.TempDir())
	r := NewTaskRunner(router, "test-model", "system", WithMemory(store))
	task := &sdk.Task{ID: "t4", Description: "what's the idiom here?"}

	result, err := r.Run(context.Background(), task, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSuccess, result.Status)

	content, err := store.Read()
	require.NoError(t, err)
	assert.Contains(t, content, "prefers functional options")
}

type recordingEvents struct {
	added     []*sdk.AgentStep
	updated   []string
	removed   []string
	approvals int
	completed *sdk.Result
}

func (r *recordingEvents) StepAdded(s *sdk.AgentStep) { r.added = append(r.added, s) }
func (r *recordingEvents) StepUpdated(id string, _ map[string]any) {
	r.updated = append(r.updated, id)
}
func (r *recordingEvents) StepRemoved(id string)                  { r.removed = append(r.removed, id) }
func (r *recordingEvents) ApprovalRequested(sdk.Decision, string) { r.approvals++ }
func (r *recordingEvents) TaskCompleted(result *sdk.Result)       { r.completed = result }

func TestTaskRunner_EmitsStepAndTaskCompletedEvents(t *testing.T) {
	router := &scriptedRouter{responses: []string{doneCall("answered")}}
	events := &recordingEvents{}

	r := NewTaskRunner(router, "test-model", "system", WithEvents(events))
	task := &sdk.Task{ID: "t5", Description: "what does this do?"}

	result, err := r.Run(context.Background(), task, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSuccess, result.Status)

	require.Len(t, events.added, 1)
	assert.Equal(t, sdk.AgentStepComplete, events.added[0].Kind)
	require.NotNil(t, events.completed)
	assert.Equal(t, sdk.ResultStatusSuccess, events.completed.Status)
}

func TestTaskRunner_ApprovalDenied_RecordsFailureAndContinues(t *testing.T) {
	router := &scriptedRouter{responses: []string{
		terminalCall("rm -rf node_modules"),
		doneCall("disk usage unchanged"),
	}}
	gate := &fixedApproval{approve: false}
	events := &recordingEvents{}

	r := NewTaskRunner(router, "test-model", "system", WithApprovalGate(gate), WithEvents(events))
	task := &sdk.Task{ID: "t6", Description: "how much disk is node_modules using?"}

	result, err := r.Run(context.Background(), task, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSuccess, result.Status)
	assert.Equal(t, 1, gate.calls)
	assert.Equal(t, 1, events.approvals)
}

func TestTaskRunner_ApprovalApproved_ExecutesCommand(t *testing.T) {
	router := &scriptedRouter{responses: []string{
		terminalCall("rm -rf node_modules"),
		doneCall("removed stale cache"),
	}}
	gate := &fixedApproval{approve: true}

	r := NewTaskRunner(router, "test-model", "system", WithApprovalGate(gate))
	task := &sdk.Task{ID: "t7", Description: "remove stale cache"}

	result, err := r.Run(context.Background(), task, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSuccess, result.Status)
	assert.Equal(t, 1, gate.calls)
}

func TestTaskRunner_WriteFileWithoutContent_StillAdmitsAndLoopContinues(t *testing.T) {
	// The decoder tolerates a tool call missing the "content" field (the
	// equivalent of a repaired, truncated stream): DecisionFromToolCall
	// only requires file_path, so the decision still reaches execution
	// rather than failing the iteration outright.
	partial := "TOOL_CALL:1:write_file:" + encodeToolArgs(map[string]any{"file_path": "x.txt"}) + "\n"
	router := &scriptedRouter{responses: []string{
		partial,
		doneCall("patched after re-plan"),
	}}

	dir := t.TempDir()
	r := NewTaskRunner(router, "test-model", "system", WithEditor(edit.New(dir)))
	task := &sdk.Task{ID: "t8", Description: "update x.txt"}

	result, err := r.Run(context.Background(), task, dir)
	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSuccess, result.Status)
}

func TestTaskRunner_LoopGuardBlocksRepeatedKnownRead(t *testing.T) {
	router := &scriptedRouter{responses: []string{
		readCall("a.go"),
		readCall("a.go"),
		doneCall("done"),
	}}

	r := NewTaskRunner(router, "test-model", "system")
	task := &sdk.Task{ID: "t3", Description: "describe a.go"}
	result, err := r.Run(context.Background(), task, t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, sdk.ResultStatusSuccess, result.Status)
}
