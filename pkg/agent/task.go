package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lingcode/agentcore/pkg/decode"
	"github.com/lingcode/agentcore/pkg/edit"
	"github.com/lingcode/agentcore/pkg/enrich"
	"github.com/lingcode/agentcore/pkg/loopguard"
	"github.com/lingcode/agentcore/pkg/memory"
	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/lingcode/agentcore/pkg/validate"
)

// ApprovalGate decides whether a decision requiring human sign-off may
// proceed. RequestApproval suspends the loop (the TaskRunner transitions to
// LoopPhaseAwaitingApproval before calling it) and its return value drives
// resumption: true continues to Execution, false rejects the decision as if
// it had never been admitted.
type ApprovalGate interface {
	RequestApproval(ctx context.Context, decision sdk.Decision, reason string) (bool, error)
}

// DenyAllGate refuses every approval request. It is the safe default for a
// TaskRunner that has no human operator wired in.
type DenyAllGate struct{}

func (DenyAllGate) RequestApproval(context.Context, sdk.Decision, string) (bool, error) {
	return false, nil
}

// CommandExecutor runs Terminal decisions, matching the worker's own
// process-spawning idiom: a shell invocation with combined output, logged
// to the workdir when one is configured.
type CommandExecutor struct {
	Workdir sdk.WorkdirManager
}

// Run executes command and returns whether it succeeded along with its
// combined stdout/stderr.
func (c CommandExecutor) Run(ctx context.Context, command string, iteration int) (bool, string) {
	shellCmd := exec.CommandContext(ctx, "sh", "-c", command)
	output, err := shellCmd.CombinedOutput()

	if c.Workdir != nil {
		logName := fmt.Sprintf("terminal_iter%d.log", iteration)
		_ = c.Workdir.WriteLog(logName, output)
	}

	return err == nil, string(output)
}

// TaskRunner drives the per-iteration decision loop: it prompts the model,
// decodes one decision, admits it through the loop guard and safety checks,
// executes it, and folds the outcome back into history for the next
// iteration. It is the concrete engine behind a single coding task; Agent's
// skill pipeline can wrap it as an sdk.Skill, or it can run standalone.
type TaskRunner struct {
	LLM    sdk.LLMRouter
	Model  string
	System string

	Guard     *loopguard.Guard
	Editor    *edit.Engine
	Validator *validate.Validator
	Finder    enrich.RelatedFinder
	Approval  ApprovalGate
	Exec      CommandExecutor
	Memory    *memory.Store
	Events    EventSink

	MaxIterations int

	state     *LoopState
	history   []sdk.Message
	readFiles map[string]bool
	rejected  int
}

// TaskOption configures a TaskRunner, following the same functional-options
// pattern as Agent's Option.
type TaskOption func(*TaskRunner)

// WithEditor wires the structured Edit Engine used for write_file decisions.
func WithEditor(e *edit.Engine) TaskOption {
	return func(r *TaskRunner) { r.Editor = e }
}

// WithValidator wires the shadow-workspace validator run after every write.
func WithValidator(v *validate.Validator) TaskOption {
	return func(r *TaskRunner) { r.Validator = v }
}

// WithMemory wires the project-memory store consulted before each prompt
// and appended to on successful finalization.
func WithMemory(m *memory.Store) TaskOption {
	return func(r *TaskRunner) { r.Memory = m }
}

// WithRelatedFinder wires the symbol-relationship lookup used to enrich
// validation and edit failures before they re-enter history.
func WithRelatedFinder(f enrich.RelatedFinder) TaskOption {
	return func(r *TaskRunner) { r.Finder = f }
}

// WithApprovalGate wires the human-in-the-loop sign-off used for decisions
// the safety checks mark as requiring approval.
func WithApprovalGate(g ApprovalGate) TaskOption {
	return func(r *TaskRunner) { r.Approval = g }
}

// WithCommandExecutor wires the Terminal-decision runner.
func WithCommandExecutor(e CommandExecutor) TaskOption {
	return func(r *TaskRunner) { r.Exec = e }
}

// WithTaskMaxIterations overrides the default iteration ceiling.
func WithTaskMaxIterations(n int) TaskOption {
	return func(r *TaskRunner) { r.MaxIterations = n }
}

// WithEvents wires the UI-facing notification sink for step and approval
// lifecycle events.
func WithEvents(e EventSink) TaskOption {
	return func(r *TaskRunner) { r.Events = e }
}

// NewTaskRunner builds a TaskRunner with sensible zero-value fallbacks for
// the optional collaborators (no approval gate means DenyAllGate; no guard
// means a fresh loopguard.Guard).
func NewTaskRunner(llm sdk.LLMRouter, model, system string, opts ...TaskOption) *TaskRunner {
	r := &TaskRunner{
		LLM:           llm,
		Model:         model,
		System:        system,
		Guard:         loopguard.New(),
		Approval:      DenyAllGate{},
		Events:        noopEventSink{},
		MaxIterations: 20,
		state:         NewLoopState(),
		readFiles:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives the loop for a single task until Done is accepted, the loop
// guard blocks three decisions in a row, the context is cancelled, or
// MaxIterations is reached.
func (r *TaskRunner) Run(ctx context.Context, task *sdk.Task, workspace string) (*sdk.Result, error) {
	requiresMod := RequiresModification(task.Description)
	result := &sdk.Result{TaskID: task.ID, SkillName: "task-runner"}
	consecutiveBlocks := 0

	r.state.Transition(LoopPhasePlanning)

	for iteration := 1; iteration <= r.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			result.Status = sdk.ResultStatusFailed
			result.Error = err
			r.Events.TaskCompleted(result)
			return result, err
		}

		r.state.IncrementIteration()
		r.Guard.AdvanceIteration()

		prompt := r.composePrompt(task, requiresMod)
		decision, err := r.nextDecision(ctx, prompt)
		if err != nil {
			result.Status = sdk.ResultStatusFailed
			result.Error = err
			result.ErrorMessage = err.Error()
			r.Events.TaskCompleted(result)
			return result, err
		}

		r.state.Transition(LoopPhaseAwaitingDecision)

		step := stepFromDecision(decision)
		stepID := step.ID
		r.Events.StepAdded(step)

		verdict := r.Guard.Admit(decision)
		if verdict.Verdict == loopguard.Block {
			r.Events.StepRemoved(stepID)
			r.history = append(r.history, sdk.Message{
				Role:    "user",
				Content: fmt.Sprintf("Action blocked: %s. Try a different approach.", verdict.Reason),
			})
			consecutiveBlocks++
			if consecutiveBlocks >= 3 {
				r.state.Transition(LoopPhaseFailed)
				result.Status = sdk.ResultStatusFailed
				result.ErrorMessage = "agent stuck in loop"
				r.Events.TaskCompleted(result)
				return result, fmt.Errorf("%s", result.ErrorMessage)
			}
			continue
		}
		consecutiveBlocks = 0

		if decision.Kind == sdk.DecisionDone {
			if !requiresMod || r.hasWritten() {
				r.state.Transition(LoopPhaseComplete)
				result.Status = sdk.ResultStatusSuccess
				result.Message = decision.Summary
				if r.Memory != nil {
					_ = r.Memory.Append(decision.Summary)
				}
				r.Events.StepUpdated(stepID, map[string]any{"status": "complete"})
				r.Events.TaskCompleted(result)
				return result, nil
			}
			r.rejected++
			if r.rejected > 1 {
				r.state.Transition(LoopPhaseFailed)
				result.Status = sdk.ResultStatusFailed
				result.ErrorMessage = "task declared done without making the required changes"
				r.Events.StepUpdated(stepID, map[string]any{"status": "rejected"})
				r.Events.TaskCompleted(result)
				return result, fmt.Errorf("%s", result.ErrorMessage)
			}
			r.Events.StepUpdated(stepID, map[string]any{"status": "rejected"})
			r.history = append(r.history, sdk.Message{
				Role:    "user",
				Content: "This task requires code changes. You must write to a file before finishing.",
			})
			continue
		}

		if sv, reason := r.checkSafety(decision); sv != SafetyAdmit {
			if sv == SafetyBlock {
				r.Events.StepRemoved(stepID)
				r.history = append(r.history, sdk.Message{
					Role:    "user",
					Content: fmt.Sprintf("Command rejected: %s", reason),
				})
				continue
			}

			r.state.Transition(LoopPhaseAwaitingApproval)
			r.Events.ApprovalRequested(decision, reason)
			approved, err := r.Approval.RequestApproval(ctx, decision, reason)
			if err != nil {
				result.Status = sdk.ResultStatusFailed
				result.Error = err
				r.Events.TaskCompleted(result)
				return result, err
			}
			if !approved {
				r.Guard.RecordFailure(decision)
				r.Events.StepUpdated(stepID, map[string]any{"status": "denied"})
				r.history = append(r.history, sdk.Message{
					Role:    "user",
					Content: fmt.Sprintf("Approval denied: %s", reason),
				})
				continue
			}
		}

		r.Guard.RecordAdmitted(decision)
		r.state.Transition(LoopPhaseExecuting)

		outcome := r.execute(ctx, decision, workspace, iteration)
		r.Events.StepUpdated(stepID, map[string]any{"status": "done", "output": outcome})
		r.history = append(r.history, sdk.Message{Role: "user", Content: outcome})
	}

	r.state.Transition(LoopPhaseFailed)
	result.Status = sdk.ResultStatusFailed
	result.ErrorMessage = fmt.Sprintf("max iterations (%d) reached", r.MaxIterations)
	r.Events.TaskCompleted(result)
	return result, fmt.Errorf("%s", result.ErrorMessage)
}

func (r *TaskRunner) hasWritten() bool {
	for _, h := range r.history {
		if strings.HasPrefix(h.Content, "Wrote ") {
			return true
		}
	}
	return false
}

func (r *TaskRunner) checkSafety(d sdk.Decision) (SafetyVerdict, string) {
	switch d.Kind {
	case sdk.DecisionTerminal:
		return CheckCommand(d.Command), d.Command
	case sdk.DecisionWriteFile:
		return CheckWritePath(d.Path), d.Path
	default:
		return SafetyAdmit, ""
	}
}

// execute runs an admitted, safety-cleared decision and returns the text
// that should enter the next iteration's history.
func (r *TaskRunner) execute(ctx context.Context, d sdk.Decision, workspace string, iteration int) string {
	switch d.Kind {
	case sdk.DecisionTerminal:
		ok, output := r.Exec.Run(ctx, d.Command, iteration)
		if ok {
			r.Guard.RecordSuccessfulCommand()
			return fmt.Sprintf("Command succeeded:\n%s", output)
		}
		return fmt.Sprintf("Command failed:\n%s", output)

	case sdk.DecisionWriteFile:
		if r.Editor == nil {
			return "write_file: no edit engine configured"
		}

		ops, err := edit.ParseEditBlock(d.Content)
		if err != nil {
			// Not a structured edit batch — treat content as the whole file.
			ops = []sdk.Edit{{File: d.Path, Operation: sdk.EditReplace, Content: strings.Split(d.Content, "\n")}}
		}

		for _, op := range ops {
			if op.File == "" {
				op.File = d.Path
			}
			if err := r.Editor.Apply(op); err != nil {
				r.Guard.RecordFailure(d)
				return r.enrichFailure(ctx, op.File, []string{err.Error()})
			}
		}

		if r.Validator != nil {
			vr := r.Validator.Validate(ctx, d.Path, workspace)
			r.state.Transition(LoopPhaseValidating)
			if !vr.Success() {
				r.Guard.RecordFailure(d)
				return r.enrichFailure(ctx, d.Path, vr.Messages)
			}
		}

		r.Guard.RecordSuccessfulCommand()
		return fmt.Sprintf("Wrote %s", d.Path)

	case sdk.DecisionReadFile, sdk.DecisionReadDir, sdk.DecisionSearch:
		r.readFiles[d.Path] = true
		return fmt.Sprintf("Read %s", d.Path)

	default:
		return "no-op"
	}
}

func (r *TaskRunner) enrichFailure(ctx context.Context, file string, messages []string) string {
	if r.Finder == nil {
		return strings.Join(messages, "\n")
	}
	return enrich.Enrich(ctx, r.Finder, messages, file)
}

// composePrompt builds the per-iteration prompt: task description, bounded
// history, and a no-re-read directive for files already seen.
func (r *TaskRunner) composePrompt(task *sdk.Task, requiresMod bool) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task.Description)
	b.WriteString("\n")

	if requiresMod {
		b.WriteString("This task requires making code changes before it can be marked done.\n")
	}

	if r.Memory != nil {
		if learnings, err := r.Memory.Read(); err == nil && learnings != "" {
			b.WriteString("Project memory:\n")
			b.WriteString(learnings)
			b.WriteString("\n")
		}
	}

	if len(r.readFiles) > 0 {
		b.WriteString("Already read (do not re-read unless a write happened since): ")
		first := true
		for f := range r.readFiles {
			if !first {
				b.WriteString(", ")
			}
			b.WriteString(f)
			first = false
		}
		b.WriteString("\n")
	}

	const historyWindow = 20
	start := 0
	if len(r.history) > historyWindow {
		start = len(r.history) - historyWindow
	}
	for _, h := range r.history[start:] {
		b.WriteString(h.Role)
		b.WriteString(": ")
		b.WriteString(h.Content)
		b.WriteString("\n")
	}

	return b.String()
}

// nextDecision calls the model, streams its response through the tool-call
// decoder, and converts the first decoded tool call into a Decision.
func (r *TaskRunner) nextDecision(ctx context.Context, prompt string) (sdk.Decision, error) {
	r.history = append(r.history, sdk.Message{Role: "user", Content: prompt})

	req := sdk.CompletionRequest{
		Model:    r.Model,
		Messages: r.history,
		System:   r.System,
	}

	chunks, err := r.LLM.Stream(req)
	if err != nil {
		return sdk.Decision{}, fmt.Errorf("stream: %w", err)
	}

	dec := decode.New()
	var text strings.Builder
	var tool *decode.ToolCall

	for chunk := range chunks {
		if chunk.Error != nil {
			return sdk.Decision{}, fmt.Errorf("stream chunk: %w", chunk.Error)
		}
		if chunk.Content != "" {
			text.WriteString(chunk.Content)
			for _, ev := range dec.FeedText(chunk.Content) {
				if ev.Kind == decode.EventToolCall && tool == nil {
					tool = ev.Tool
				}
			}
		}
		if chunk.ToolCall != nil && tool == nil && chunk.ToolCall.Name != "" {
			tool = &decode.ToolCall{ID: chunk.ToolCall.ID, Name: chunk.ToolCall.Name}
			if input, ok := parseArguments(chunk.ToolCall.Arguments); ok {
				tool.Input = input
			}
		}
		if chunk.Done {
			break
		}
	}

	for _, ev := range dec.Flush() {
		if ev.Kind == decode.EventToolCall && tool == nil {
			tool = ev.Tool
		}
	}

	r.history = append(r.history, sdk.Message{Role: "assistant", Content: text.String()})

	if tool == nil {
		return sdk.Decision{}, fmt.Errorf("model produced no tool call")
	}
	return DecisionFromToolCall(tool)
}

func parseArguments(raw string) (map[string]any, bool) {
	if raw == "" {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}
	return m, true
}
