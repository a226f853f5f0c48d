// Package test provides a skill for test generation and execution.
package test

import (
	"context"
	"fmt"
	"strings"

	"github.com/lingcode/agentcore/pkg/edit"
	"github.com/lingcode/agentcore/pkg/sdk"
)

// Skill implements test generation: it asks the configured LLM for a
// structured edit block containing test code and applies it through the
// Edit Engine, the same mechanism codemod and the agent loop's write_file
// decisions use. Running the resulting tests is left to the agent loop's
// own terminal decisions, which carry the shell execution and safety
// gating this skill's interface does not have access to.
type Skill struct {
	sdk.BaseSkill
}

// New creates a new test skill.
func New() *Skill {
	return &Skill{
		BaseSkill: *sdk.NewBaseSkill(sdk.SkillMetadata{
			Name:        "test",
			Description: "Generate and run tests",
			Version:     "1.0.0",
			Triggers: []string{
				"test",
				"add tests",
				"write tests",
				"verify",
				"coverage",
				"unit test",
				"integration test",
			},
			Tags: []string{"test", "verification", "quality"},
		}),
	}
}

// CanHandle evaluates if this skill can handle the task.
func (s *Skill) CanHandle(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (bool, float64) {
	desc := strings.ToLower(task.Description)

	if sdk.MatchTrigger(desc, s.Metadata().Triggers) {
		if strings.Contains(desc, "write test") || strings.Contains(desc, "add test") {
			return true, 0.95
		}
		if strings.Contains(desc, "coverage") {
			return true, 0.9
		}
		return true, 0.8
	}

	return false, 0
}

// Plan generates an execution plan for the task.
func (s *Skill) Plan(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (*sdk.Plan, error) {
	plan := sdk.NewPlan(task.ID, s.Metadata().Name).
		WithTitle("Test Generation").
		WithDescription("Generate and run tests")

	plan.AddStep(sdk.PlanStep{
		Title:       "Analyze code",
		Description: "Analyze code to generate appropriate tests",
		Type:        sdk.StepTypeAnalyze,
	})

	plan.AddStep(sdk.PlanStep{
		Title:       "Generate tests",
		Description: "Generate test code following project patterns",
		Type:        sdk.StepTypeWrite,
	})

	return plan, nil
}

// Execute asks the LLM for test code covering the plan's description and
// applies the resulting edit block through the Edit Engine. Running the
// generated tests is the agent loop's job, via a subsequent terminal
// decision.
func (s *Skill) Execute(ctx context.Context, execCtx *sdk.ExecutionContext, plan *sdk.Plan) (*sdk.Result, error) {
	result := sdk.NewResult(plan.TaskID, s.Metadata().Name)

	if execCtx.LLM == nil {
		return result.WithStatus(sdk.ResultStatusFailed).
			WithError(fmt.Errorf("test: no LLM configured")), nil
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
		"Write tests for: %s\n\nRelevant code:\n%s\nFollow the project's existing test conventions. "+
			"Respond with a single ```json edit block creating or updating the test file(s).",
		plan.Description, contextBlock.String(),
	)

	resp, err := execCtx.LLM.Complete(sdk.CompletionRequest{
		Messages: []sdk.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return result.WithStatus(sdk.ResultStatusFailed).WithError(fmt.Errorf("test: llm call: %w", err)), nil
	}

	edits, err := edit.ParseEditBlock(resp.Content)
	if err != nil {
		return result.WithStatus(sdk.ResultStatusFailed).
			WithError(fmt.Errorf("test: no applicable edit block in response: %w", err)), nil
	}

	engine := edit.New(execCtx.WorkDir)
	for _, e := range edits {
		if applyErr := engine.Apply(e); applyErr != nil {
			return result.WithStatus(sdk.ResultStatusFailed).WithError(applyErr), nil
		}
		result.AddChange(sdk.Change{Type: sdk.ChangeTypeCreate, Path: e.File})
	}

	return result.WithStatus(sdk.ResultStatusSuccess).
		WithMessage(fmt.Sprintf("wrote %d test file edit(s)", len(edits))), nil
}

// Validate checks execution result for correctness.
func (s *Skill) Validate(ctx context.Context, execCtx *sdk.ExecutionContext, result *sdk.Result) error {
	return nil
}
