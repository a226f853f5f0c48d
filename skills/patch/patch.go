// Package patch provides a skill for patch application and conflict resolution.
package patch

import (
	"context"
	"fmt"
	"strings"

	"github.com/lingcode/agentcore/pkg/edit"
	"github.com/lingcode/agentcore/pkg/sdk"
)

// Skill implements patch application capabilities.
type Skill struct {
	sdk.BaseSkill
}

// New creates a new patch skill.
func New() *Skill {
	return &Skill{
		BaseSkill: *sdk.NewBaseSkill(sdk.SkillMetadata{
			Name:        "patch",
			Description: "Apply patches and handle merge conflicts",
			Version:     "1.0.0",
			Triggers: []string{
				"apply patch",
				"merge",
				"cherry-pick",
				"resolve conflict",
				"diff",
				"patch",
			},
			Tags: []string{"patch", "merge", "git"},
		}),
	}
}

// CanHandle evaluates if this skill can handle the task.
func (s *Skill) CanHandle(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (bool, float64) {
	desc := strings.ToLower(task.Description)

	if sdk.MatchTrigger(desc, s.Metadata().Triggers) {
		if strings.Contains(desc, "conflict") {
			return true, 0.95
		}
		if strings.Contains(desc, "patch") || strings.Contains(desc, "merge") {
			return true, 0.9
		}
		return true, 0.75
	}

	return false, 0
}

// Plan generates an execution plan for the task. The task description
// itself carries the patch: a ```json structured edit block (the same
// model-facing format the coding agent's write_file decisions accept).
func (s *Skill) Plan(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (*sdk.Plan, error) {
	plan := sdk.NewPlan(task.ID, s.Metadata().Name).
		WithTitle("Patch Application").
		WithDescription(task.Description)

	plan.AddStep(sdk.PlanStep{
		Title:       "Parse patch",
		Description: "Parse structured edit block",
		Type:        sdk.StepTypeAnalyze,
	})

	plan.AddStep(sdk.PlanStep{
		Title:       "Apply changes",
		Description: "Apply edits through the Edit Engine",
		Type:        sdk.StepTypeWrite,
	})

	return plan, nil
}

// Execute parses the structured edit block out of the plan's description
// and applies each edit through the Edit Engine rooted at the execution
// context's working directory.
func (s *Skill) Execute(ctx context.Context, execCtx *sdk.ExecutionContext, plan *sdk.Plan) (*sdk.Result, error) {
	result := sdk.NewResult(plan.TaskID, s.Metadata().Name)

	edits, err := edit.ParseEditBlock(plan.Description)
	if err != nil {
		return result.WithStatus(sdk.ResultStatusFailed).WithError(fmt.Errorf("no applicable patch found: %w", err)), nil
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
