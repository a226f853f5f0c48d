package agent

import "strings"

// modificationKeywords gate the task-intent classification: if the task
// description contains any of these, the task is "modification-required"
// and Done is only accepted once at least one file has been written.
var modificationKeywords = []string{
	"upgrade", "modify", "improve", "update", "change", "refactor", "fix", "add", "implement",
}

// RequiresModification runs the deterministic keyword classification over a
// task description.
func RequiresModification(taskDescription string) bool {
	lower := strings.ToLower(taskDescription)
	for _, kw := range modificationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
