package agent

import (
	"context"

	"github.com/lingcode/agentcore/pkg/sdk"
)

// NewCodingAgentSkill wraps a TaskRunner as an sdk.Skill so it can be
// registered into the same skill pipeline as any other skill. It accepts
// every task with moderate confidence, leaving CanHandle's final say to
// whatever other skills are registered alongside it; Plan is a single step
// ("run the decision loop") since the TaskRunner itself does the planning
// one decision at a time.
func NewCodingAgentSkill(meta sdk.SkillMetadata, runner *TaskRunner, workspace string) sdk.Skill {
	return sdk.NewSkillFunc(meta).
		OnCanHandle(func(context.Context, *sdk.ExecutionContext, *sdk.Task) (bool, float64) {
			return true, 0.5
		}).
		OnPlan(func(_ context.Context, _ *sdk.ExecutionContext, task *sdk.Task) (*sdk.Plan, error) {
			return &sdk.Plan{
				ID:          task.ID + "-plan",
				TaskID:      task.ID,
				SkillName:   meta.Name,
				Title:       "run coding agent decision loop",
				Description: task.Description,
			}, nil
		}).
		OnExecute(func(ctx context.Context, execCtx *sdk.ExecutionContext, plan *sdk.Plan) (*sdk.Result, error) {
			ws := workspace
			if ws == "" && execCtx != nil {
				ws = execCtx.WorkDir
			}
			task := &sdk.Task{ID: plan.TaskID, Description: plan.Description}
			return runner.Run(ctx, task, ws)
		})
}
