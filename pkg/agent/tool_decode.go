package agent

import (
	"fmt"

	"github.com/lingcode/agentcore/pkg/decode"
	"github.com/lingcode/agentcore/pkg/sdk"
)

// stringField reads a string input field, accepting any of the documented
// misnamed aliases (e.g. "path" for "file_path") in preference order.
func stringField(input map[string]any, names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := input[name]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func boolField(input map[string]any, name string) bool {
	if v, ok := input[name]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// DecisionFromToolCall converts a decoded tool call into a Decision, per
// the model-facing tool schema: run_terminal_command, write_file, read_file,
// read_directory, codebase_search, search_web, done.
func DecisionFromToolCall(tc *decode.ToolCall) (sdk.Decision, error) {
	if tc == nil {
		return sdk.Decision{}, fmt.Errorf("nil tool call")
	}

	switch tc.Name {
	case "run_terminal_command":
		cmd, _ := stringField(tc.Input, "command")
		return sdk.Decision{Kind: sdk.DecisionTerminal, Command: cmd}, nil

	case "write_file":
		path, ok := stringField(tc.Input, "file_path", "path")
		if !ok {
			return sdk.Decision{}, fmt.Errorf("write_file: missing file_path")
		}
		content, _ := stringField(tc.Input, "content")
		return sdk.Decision{Kind: sdk.DecisionWriteFile, Path: path, Content: content}, nil

	case "read_file":
		path, ok := stringField(tc.Input, "file_path", "path")
		if !ok {
			return sdk.Decision{}, fmt.Errorf("read_file: missing file_path")
		}
		return sdk.Decision{Kind: sdk.DecisionReadFile, Path: path}, nil

	case "read_directory":
		path, ok := stringField(tc.Input, "directory_path", "path", "folder")
		if !ok {
			return sdk.Decision{}, fmt.Errorf("read_directory: missing directory_path")
		}
		return sdk.Decision{Kind: sdk.DecisionReadDir, Path: path, Recursive: boolField(tc.Input, "recursive")}, nil

	case "codebase_search":
		q, _ := stringField(tc.Input, "query")
		return sdk.Decision{Kind: sdk.DecisionSearch, Query: q}, nil

	case "search_web":
		q, _ := stringField(tc.Input, "query")
		return sdk.Decision{Kind: sdk.DecisionSearch, Query: q, Web: true}, nil

	case "done":
		summary, _ := stringField(tc.Input, "summary")
		return sdk.Decision{Kind: sdk.DecisionDone, Summary: summary}, nil

	default:
		return sdk.Decision{}, fmt.Errorf("unrecognized tool: %s", tc.Name)
	}
}
