// Package skills provides default skills for common DevOps tasks.
package skills

import (
	"path/filepath"

	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/lingcode/agentcore/skills/codemod"
	"github.com/lingcode/agentcore/skills/devops"
	"github.com/lingcode/agentcore/skills/docs"
	"github.com/lingcode/agentcore/skills/patch"
	"github.com/lingcode/agentcore/skills/review"
	"github.com/lingcode/agentcore/skills/test"
	"github.com/ternarybob/arbor"
)

// All returns all default skills, rooting the review skill's shadow
// workspaces under projectDir/.lingcode/workdir.
func All(projectDir string, log arbor.ILogger) []sdk.Skill {
	return []sdk.Skill{
		codemod.New(),
		test.New(),
		Review(projectDir, log),
		patch.New(),
		devops.New(),
		docs.New(),
	}
}

// Codemod returns the code modification skill.
func Codemod() sdk.Skill {
	return codemod.New()
}

// Test returns the test generation/execution skill.
func Test() sdk.Skill {
	return test.New()
}

// Review returns the code review skill, with its validator's shadow
// workspaces rooted under projectDir/.lingcode/workdir.
func Review(projectDir string, log arbor.ILogger) sdk.Skill {
	return review.New(filepath.Join(projectDir, ".lingcode", "workdir"), log)
}

// Patch returns the patch application skill.
func Patch() sdk.Skill {
	return patch.New()
}

// DevOps returns the DevOps skill.
func DevOps() sdk.Skill {
	return devops.New()
}

// Docs returns the documentation skill.
func Docs() sdk.Skill {
	return docs.New()
}
