package agent

import "github.com/lingcode/agentcore/pkg/sdk"

// EventSink receives the UI-facing notifications a TaskRunner emits as it
// works through a task: one sdk.AgentStep per admitted decision, plus
// approval and completion signals. FileCreated/FileUpdated are covered
// separately by edit.Notifier, which the Editor is configured with.
type EventSink interface {
	StepAdded(step *sdk.AgentStep)
	StepUpdated(id string, fields map[string]any)
	StepRemoved(id string)
	ApprovalRequested(decision sdk.Decision, reason string)
	TaskCompleted(result *sdk.Result)
}

type noopEventSink struct{}

func (noopEventSink) StepAdded(*sdk.AgentStep)               {}
func (noopEventSink) StepUpdated(string, map[string]any)     {}
func (noopEventSink) StepRemoved(string)                     {}
func (noopEventSink) ApprovalRequested(sdk.Decision, string) {}
func (noopEventSink) TaskCompleted(*sdk.Result)              {}

// stepFromDecision builds the sdk.AgentStep a decision should be announced
// as, matching the decision kind to the step taxonomy the UI renders.
func stepFromDecision(d sdk.Decision) *sdk.AgentStep {
	switch d.Kind {
	case sdk.DecisionTerminal:
		return sdk.NewAgentStep(sdk.AgentStepTerminal, "run: "+d.Command)
	case sdk.DecisionWriteFile:
		step := sdk.NewAgentStep(sdk.AgentStepWrite, "write: "+d.Path)
		step.TargetPath = d.Path
		step.CodeBuffer = d.Content
		return step
	case sdk.DecisionReadFile:
		step := sdk.NewAgentStep(sdk.AgentStepRead, "read: "+d.Path)
		step.TargetPath = d.Path
		return step
	case sdk.DecisionReadDir:
		step := sdk.NewAgentStep(sdk.AgentStepDirRead, "list: "+d.Path)
		step.TargetPath = d.Path
		return step
	case sdk.DecisionSearch:
		if d.Web {
			return sdk.NewAgentStep(sdk.AgentStepSearch, "search web: "+d.Query)
		}
		return sdk.NewAgentStep(sdk.AgentStepSearch, "search: "+d.Query)
	case sdk.DecisionDone:
		return sdk.NewAgentStep(sdk.AgentStepComplete, "done")
	default:
		return sdk.NewAgentStep(sdk.AgentStepThinking, "unknown")
	}
}
