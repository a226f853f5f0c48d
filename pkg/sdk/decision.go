package sdk

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// DecisionKind tags the variant carried by a Decision.
type DecisionKind string

const (
	DecisionDone      DecisionKind = "done"
	DecisionTerminal  DecisionKind = "terminal"
	DecisionWriteFile DecisionKind = "write_file"
	DecisionReadFile  DecisionKind = "read_file"
	DecisionReadDir   DecisionKind = "read_dir"
	DecisionSearch    DecisionKind = "search"
)

// Decision is an interpreted tool invocation, one per completed iteration.
type Decision struct {
	Kind DecisionKind

	// Done
	Summary string

	// Terminal
	Command string

	// WriteFile
	Path    string
	Content string

	// ReadDir
	Recursive bool

	// Search
	Query string
	Web   bool
}

// AgentStepKind categorizes one observable unit of agent activity.
type AgentStepKind string

const (
	AgentStepThinking AgentStepKind = "thinking"
	AgentStepTerminal AgentStepKind = "terminal"
	AgentStepWrite    AgentStepKind = "code_write"
	AgentStepRead     AgentStepKind = "file_read"
	AgentStepDirRead  AgentStepKind = "dir_read"
	AgentStepSearch   AgentStepKind = "search"
	AgentStepComplete AgentStepKind = "complete"
)

// AgentStepStatus is the lifecycle state of an AgentStep. Status moves
// monotonically away from Pending; Cancelled is terminal.
type AgentStepStatus string

const (
	AgentStepPending   AgentStepStatus = "pending"
	AgentStepRunning   AgentStepStatus = "running"
	AgentStepCompleted AgentStepStatus = "completed"
	AgentStepFailed    AgentStepStatus = "failed"
	AgentStepCancelled AgentStepStatus = "cancelled"
)

// AgentStep is one observable unit of agent activity within a task.
type AgentStep struct {
	ID          string
	Kind        AgentStepKind
	Description string
	Status      AgentStepStatus
	Output      string
	Err         error
	Timestamp   time.Time

	// CodeBuffer accumulates a streaming write's content as it arrives.
	CodeBuffer string

	// TargetPath is the file a Write/Read step touches, if any.
	TargetPath string
}

// NewAgentStep creates a pending step with a generated ID.
func NewAgentStep(kind AgentStepKind, description string) *AgentStep {
	return &AgentStep{
		ID:          generateID(),
		Kind:        kind,
		Description: description,
		Status:      AgentStepPending,
		Timestamp:   time.Now(),
	}
}

// Complete marks the step successfully finished.
func (s *AgentStep) Complete(output string) {
	s.Status = AgentStepCompleted
	s.Output = output
}

// Fail marks the step failed with err.
func (s *AgentStep) Fail(err error) {
	s.Status = AgentStepFailed
	s.Err = err
}

// EditOperation is the mutation kind a structured Edit applies.
type EditOperation string

const (
	EditInsert  EditOperation = "insert"
	EditReplace EditOperation = "replace"
	EditDelete  EditOperation = "delete"
)

// LineRange is a 1-based, inclusive line range.
type LineRange struct {
	Start int
	End   int
}

// AnchorKind enumerates the symbol kinds an Anchor may target.
type AnchorKind string

const (
	AnchorFunction AnchorKind = "function"
	AnchorClass    AnchorKind = "class"
	AnchorMethod   AnchorKind = "method"
	AnchorStruct   AnchorKind = "struct"
	AnchorEnum     AnchorKind = "enum"
	AnchorProtocol AnchorKind = "protocol"
	AnchorProperty AnchorKind = "property"
	AnchorVariable AnchorKind = "variable"
)

// Anchor is a symbolic reference resolved to a line range via the symbol
// index, rather than an explicit line range supplied by the caller.
type Anchor struct {
	Name       string
	Kind       AnchorKind
	Parent     string
	ChildIndex int
	HasChild   bool
}

// Edit is a structured file mutation as described in a model-produced edit
// batch. At least one of Range or Anchor must be set unless Operation is a
// whole-file Replace (both empty).
type Edit struct {
	File      string
	Operation EditOperation
	Range     *LineRange
	Anchor    *Anchor
	Content   []string
}

// EditErrorKind enumerates the taxonomy of edit-application failures.
type EditErrorKind string

const (
	EditErrInvalidRange      EditErrorKind = "invalid_range"
	EditErrFileNotFound      EditErrorKind = "file_not_found"
	EditErrTooLarge          EditErrorKind = "too_large"
	EditErrOutsideWorkspace  EditErrorKind = "outside_workspace"
	EditErrOverlapsGenerated EditErrorKind = "overlaps_generated"
	EditErrInvalidOperation  EditErrorKind = "invalid_operation"
)

// EditError wraps one EditErrorKind with a human-readable message so
// callers can branch with errors.As while still logging something useful.
type EditError struct {
	Kind EditErrorKind
	Msg  string
}

func (e *EditError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Msg
}

// MaxEditContentLines is the size cap on a single Edit's content.
const MaxEditContentLines = 500

// ValidationStatus tags the outcome of a Validator run.
type ValidationStatus string

const (
	ValidationSuccess  ValidationStatus = "success"
	ValidationWarnings ValidationStatus = "warnings"
	ValidationErrors   ValidationStatus = "errors"
	ValidationSkipped  ValidationStatus = "skipped"
)

// ValidationResult is the outcome of validating one file inside a shadow
// workspace.
type ValidationResult struct {
	Status   ValidationStatus
	Messages []string
}

// Success reports whether the result permits the loop to proceed without
// an enrichment/retry cycle.
func (v ValidationResult) Success() bool {
	return v.Status == ValidationSuccess || v.Status == ValidationSkipped
}

var commentCollapse = regexp.MustCompile(`//[^\n]*|/\*[\s\S]*?\*/|#[^\n]*`)
var whitespaceCollapse = regexp.MustCompile(`\s+`)

// NormalizeCode strips line/block comments and collapses whitespace before
// lowercasing, so that reformatting alone never changes an ActionHash.
func NormalizeCode(code string) string {
	stripped := commentCollapse.ReplaceAllString(code, "")
	collapsed := whitespaceCollapse.ReplaceAllString(stripped, " ")
	return strings.ToLower(strings.TrimSpace(collapsed))
}

// ActionHash identifies "the same action" for loop-detection purposes:
// "<action>:<command>:<path>:<normalized_code_hash>".
func ActionHash(action, command, path, code string) string {
	sum := sha256.Sum256([]byte(NormalizeCode(code)))
	return action + ":" + command + ":" + path + ":" + hex.EncodeToString(sum[:])
}

// HashForDecision derives the ActionHash components from a Decision.
func HashForDecision(d Decision) string {
	switch d.Kind {
	case DecisionTerminal:
		return ActionHash(string(d.Kind), d.Command, "", "")
	case DecisionWriteFile:
		return ActionHash(string(d.Kind), "", d.Path, d.Content)
	case DecisionReadFile:
		return ActionHash(string(d.Kind), "", d.Path, "")
	case DecisionReadDir:
		return ActionHash(string(d.Kind), "", d.Path, "")
	case DecisionSearch:
		return ActionHash(string(d.Kind), "", "", strings.ToLower(strings.TrimSpace(d.Query)))
	default:
		return ActionHash(string(d.Kind), "", "", d.Summary)
	}
}
