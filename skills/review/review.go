// Package review provides a skill for code review.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/lingcode/agentcore/pkg/validate"
	"github.com/ternarybob/arbor"
)

// Skill implements code review capabilities by running the same
// shadow-workspace validator the coding agent's write_file decisions use,
// adversarially: any non-success verdict on any named file fails the
// review.
type Skill struct {
	sdk.BaseSkill
	validator *validate.Validator
}

// New creates a new review skill backed by a Validator rooted at baseDir.
func New(baseDir string, log arbor.ILogger) *Skill {
	return &Skill{
		BaseSkill: *sdk.NewBaseSkill(sdk.SkillMetadata{
			Name:        "review",
			Description: "Review code for issues",
			Version:     "1.0.0",
			Triggers: []string{
				"review",
				"check",
				"audit",
				"analyze",
				"security review",
				"code review",
			},
			Tags: []string{"review", "audit", "quality"},
		}),
		validator: validate.New(baseDir, log),
	}
}

// CanHandle evaluates if this skill can handle the task.
func (s *Skill) CanHandle(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (bool, float64) {
	desc := strings.ToLower(task.Description)

	if sdk.MatchTrigger(desc, s.Metadata().Triggers) {
		if strings.Contains(desc, "security") {
			return true, 0.95
		}
		if strings.Contains(desc, "review") {
			return true, 0.9
		}
		return true, 0.75
	}

	return false, 0
}

// Plan generates an execution plan for the task, carrying the task's named
// files through to Execute via the plan's context.
func (s *Skill) Plan(ctx context.Context, execCtx *sdk.ExecutionContext, task *sdk.Task) (*sdk.Plan, error) {
	plan := sdk.NewPlan(task.ID, s.Metadata().Name).
		WithTitle("Code Review").
		WithDescription("Review code for issues and improvements")
	plan.Context["files"] = task.Files

	plan.AddStep(sdk.PlanStep{
		Title:       "Static analysis",
		Description: "Lint and build each named file in a shadow workspace",
		Type:        sdk.StepTypeAnalyze,
		Files:       task.Files,
	})

	return plan, nil
}

// Execute runs the validator against every file the plan names, defaulting
// to reject: a file with no known linter is not evidence of cleanliness, so
// it is reported rather than silently passed.
func (s *Skill) Execute(ctx context.Context, execCtx *sdk.ExecutionContext, plan *sdk.Plan) (*sdk.Result, error) {
	result := sdk.NewResult(plan.TaskID, s.Metadata().Name)

	files, _ := plan.Context["files"].([]string)
	if len(files) == 0 {
		return result.WithStatus(sdk.ResultStatusSkipped).
			WithMessage("no files named for review"), nil
	}

	var findings []string
	for _, file := range files {
		vr := s.validator.Validate(ctx, file, execCtx.WorkDir)
		switch vr.Status {
		case sdk.ValidationSuccess:
			continue
		case sdk.ValidationSkipped:
			findings = append(findings, fmt.Sprintf("%s: %s", file, strings.Join(vr.Messages, "; ")))
		default:
			findings = append(findings, fmt.Sprintf("%s: %s", file, strings.Join(vr.Messages, "; ")))
		}
	}

	if len(findings) == 0 {
		return result.WithStatus(sdk.ResultStatusSuccess).
			WithMessage(fmt.Sprintf("reviewed %d file(s), no issues found", len(files))), nil
	}

	return result.WithStatus(sdk.ResultStatusFailed).
		WithMessage(strings.Join(findings, "\n")), nil
}

// Validate checks execution result for correctness.
func (s *Skill) Validate(ctx context.Context, execCtx *sdk.ExecutionContext, result *sdk.Result) error {
	return nil
}
