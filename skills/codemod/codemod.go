// Package codemod provides a skill for modifying existing code.
package codemod

import (
	"context"
	"fmt"
	"strings"

	"github.com/lingcode/agentcore/pkg/edit"
	"github.com/lingcode/agentcore/pkg/sdk"
)

// Skill implements code modification capabilities: it asks the configured
// LLM for a structured edit block and applies it through the Edit Engine,
// the same format and engine write_file decisions use inside the agent
// loop.
type Skill struct {
	sdk.BaseSkill
}

// New creates a new codemod skill.
func New() *Skill {
	return &Skill{
		BaseSkill: *sdk.NewBaseSkill(sdk.SkillMetadata{
			Name:        "codemod",
			Description: "Modify existing code based on requirements",
			Version:     "1.0.0",
			Triggers: []string{
				"fix",
				"refactor",
				"modify",
				"update",
				"change",
				"implement",
				"add feature",
				"patch",
				"edit",
				"rewrite",
			},
			Tags: []string{"code", "modification", "refactor"},
		}),
	}
}

// CanHandle evaluates if this skill can handle the task.
func (s *Skill) CanHandle(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (bool, float64) {
	desc := strings.ToLower(task.Description)

	// Check triggers
	if sdk.MatchTrigger(desc, s.Metadata().Triggers) {
		// Higher confidence for specific keywords
		if strings.Contains(desc, "fix") || strings.Contains(desc, "bug") {
			return true, 0.9
		}
		if strings.Contains(desc, "implement") || strings.Contains(desc, "add") {
			return true, 0.85
		}
		if strings.Contains(desc, "refactor") {
			return true, 0.8
		}
		return true, 0.7
	}

	// Generic code-related tasks
	if strings.Contains(desc, "code") || strings.Contains(desc, "function") ||
		strings.Contains(desc, "method") || strings.Contains(desc, "class") {
		return true, 0.5
	}

	return false, 0
}

// Plan generates an execution plan for the task.
func (s *Skill) Plan(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (*sdk.Plan, error) {
	plan := sdk.NewPlan(task.ID, s.Metadata().Name).
		WithTitle("Code Modification").
		WithDescription(task.Description)

	plan.AddRequirement(sdk.Requirement{
		ID:          "REQ-1",
		Description: task.Description,
	})

	plan.AddStep(sdk.PlanStep{
		Title:       "Analyze context",
		Description: "Search codebase for relevant context",
		Type:        sdk.StepTypeAnalyze,
	})

	plan.AddStep(sdk.PlanStep{
		Title:       "Generate changes",
		Description: "Generate code modifications via LLM",
		Type:        sdk.StepTypeWrite,
	})

	return plan, nil
}

// Execute asks the LLM for a structured edit block addressing the plan's
// description, applying whatever it returns through the Edit Engine.
func (s *Skill) Execute(ctx context.Context, execCtx *sdk.ExecutionContext, plan *sdk.Plan) (*sdk.Result, error) {
	result := sdk.NewResult(plan.TaskID, s.Metadata().Name)

	if execCtx.LLM == nil {
		return result.WithStatus(sdk.ResultStatusFailed).
			WithError(fmt.Errorf("codemod: no LLM configured")), nil
	}

	var contextBlock strings.Builder
	if execCtx.Codebase != nil {
		if chunks, err := execCtx.Codebase.GetContext(plan.Description, 2000); err == nil {
			for _, c := range chunks {
				contextBlock.WriteString(c.Path)
				contextBlock.WriteString(":\n")
				contextBlock.WriteString(c.Content)
				contextBlock.WriteString("\n\n")
			}
		}
	}

	prompt := fmt.Sprintf(
		"Task: %s\n\nRelevant code:\n%s\nRespond with a single ```json edit block covering the required changes.",
		plan.Description, contextBlock.String(),
	)

	resp, err := execCtx.LLM.Complete(sdk.CompletionRequest{
		Messages: []sdk.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return result.WithStatus(sdk.ResultStatusFailed).WithError(fmt.Errorf("codemod: llm call: %w", err)), nil
	}

	edits, err := edit.ParseEditBlock(resp.Content)
	if err != nil {
		return result.WithStatus(sdk.ResultStatusFailed).
			WithError(fmt.Errorf("codemod: no applicable edit block in response: %w", err)), nil
	}

	engine := edit.New(execCtx.WorkDir)
	for _, e := range edits {
		if applyErr := engine.Apply(e); applyErr != nil {
			return result.WithStatus(sdk.ResultStatusFailed).WithError(applyErr), nil
		}
		result.AddChange(sdk.Change{Type: sdk.ChangeTypeModify, Path: e.File})
	}

	return result.WithStatus(sdk.ResultStatusSuccess).
		WithMessage(fmt.Sprintf("applied %d edit(s)", len(edits))), nil
}

// Validate checks execution result for correctness.
func (s *Skill) Validate(ctx context.Context, execCtx *sdk.ExecutionContext, result *sdk.Result) error {
	return nil
}
