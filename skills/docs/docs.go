// Package docs provides a skill for documentation tasks.
package docs

import (
	"context"
	"fmt"
	"strings"

	"github.com/lingcode/agentcore/pkg/edit"
	"github.com/lingcode/agentcore/pkg/sdk"
)

// Skill implements documentation generation: it asks the configured LLM
// for a structured edit block containing doc content and applies it
// through the Edit Engine, the same mechanism codemod and the agent
// loop's write_file decisions use.
type Skill struct {
	sdk.BaseSkill
}

// New creates a new docs skill.
func New() *Skill {
	return &Skill{
		BaseSkill: *sdk.NewBaseSkill(sdk.SkillMetadata{
			Name:        "docs",
			Description: "Documentation generation and maintenance",
			Version:     "1.0.0",
			Triggers: []string{
				"document",
				"documentation",
				"readme",
				"api docs",
				"comment",
				"explain",
			},
			Tags: []string{"documentation", "readme", "comments"},
		}),
	}
}

// CanHandle evaluates if this skill can handle the task.
func (s *Skill) CanHandle(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (bool, float64) {
	desc := strings.ToLower(task.Description)

	if sdk.MatchTrigger(desc, s.Metadata().Triggers) {
		if strings.Contains(desc, "readme") {
			return true, 0.95
		}
		if strings.Contains(desc, "api doc") {
			return true, 0.9
		}
		if strings.Contains(desc, "document") {
			return true, 0.85
		}
		return true, 0.7
	}

	return false, 0
}

// Plan generates an execution plan for the task.
func (s *Skill) Plan(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (*sdk.Plan, error) {
	plan := sdk.NewPlan(task.ID, s.Metadata().Name).
		WithTitle("Documentation").
		WithDescription("Generate or update documentation")

	plan.AddStep(sdk.PlanStep{
		Title:       "Analyze code",
		Description: "Analyze code structure and patterns",
		Type:        sdk.StepTypeAnalyze,
	})

	plan.AddStep(sdk.PlanStep{
		Title:       "Generate documentation",
		Description: "Generate documentation content",
		Type:        sdk.StepTypeWrite,
	})

	return plan, nil
}

// Execute asks the LLM for documentation content covering the plan's
// description and applies the resulting edit block through the Edit
// Engine.
func (s *Skill) Execute(ctx context.Context, execCtx *sdk.ExecutionContext, plan *sdk.Plan) (*sdk.Result, error) {
	result := sdk.NewResult(plan.TaskID, s.Metadata().Name)

	if execCtx.LLM == nil {
		return result.WithStatus(sdk.ResultStatusFailed).
			WithError(fmt.Errorf("docs: no LLM configured")), nil
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
		"Write documentation for: %s\n\nRelevant code:\n%s\nRespond with a single ```json edit block "+
			"creating or updating the documentation file(s).",
		plan.Description, contextBlock.String(),
	)

	resp, err := execCtx.LLM.Complete(sdk.CompletionRequest{
		Messages: []sdk.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return result.WithStatus(sdk.ResultStatusFailed).WithError(fmt.Errorf("docs: llm call: %w", err)), nil
	}

	edits, err := edit.ParseEditBlock(resp.Content)
	if err != nil {
		return result.WithStatus(sdk.ResultStatusFailed).
			WithError(fmt.Errorf("docs: no applicable edit block in response: %w", err)), nil
	}

	engine := edit.New(execCtx.WorkDir)
	for _, e := range edits {
		if applyErr := engine.Apply(e); applyErr != nil {
			return result.WithStatus(sdk.ResultStatusFailed).WithError(applyErr), nil
		}
		result.AddChange(sdk.Change{Type: sdk.ChangeTypeCreate, Path: e.File})
	}

	return result.WithStatus(sdk.ResultStatusSuccess).
		WithMessage(fmt.Sprintf("wrote %d documentation edit(s)", len(edits))), nil
}

// Validate checks execution result for correctness.
func (s *Skill) Validate(ctx context.Context, execCtx *sdk.ExecutionContext, result *sdk.Result) error {
	return nil
}
