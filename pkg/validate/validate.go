// Package validate implements the mechanical shadow-workspace validator:
// it copies build-relevant files into an isolated temp directory, runs the
// language's linter and (when available) its whole-project build, and
// classifies the result into a sdk.ValidationResult.
package validate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/ternarybob/arbor"
)

// manifest lists the files a language's build depends on, relative to the
// project root, and the commands used to lint/build it.
type manifest struct {
	files   []string // manifest files to mirror into the shadow, if present
	lintCmd []string // run from the shadow root; empty = no linter known
	buildCmd []string // run from the shadow root; empty = no whole-project build
}

var manifestsByExt = map[string]manifest{
	".go":  {files: []string{"go.mod", "go.sum"}, lintCmd: []string{"go", "vet", "./..."}, buildCmd: []string{"go", "build", "./..."}},
	".py":  {files: []string{"requirements.txt", "pyproject.toml", "setup.py"}, lintCmd: []string{"python3", "-m", "pyflakes", "."}},
	".js":  {files: []string{"package.json", "package-lock.json"}, lintCmd: []string{"npx", "--no-install", "eslint", "."}},
	".ts":  {files: []string{"package.json", "tsconfig.json"}, lintCmd: []string{"npx", "--no-install", "eslint", "."}},
	".rs":  {files: []string{"Cargo.toml", "Cargo.lock"}, lintCmd: []string{"cargo", "check", "--message-format=short"}},
}

// Validator runs validations inside a shadow workspace rooted under
// baseDir, one per project, reused across calls.
type Validator struct {
	baseDir string
	log     arbor.ILogger
	shadows map[string]string // project root -> shadow dir
}

// New creates a Validator that stores shadow workspaces under baseDir
// (e.g. a project's .claude/workdir).
func New(baseDir string, log arbor.ILogger) *Validator {
	return &Validator{baseDir: baseDir, log: log, shadows: map[string]string{}}
}

// Validate implements C5's contract: validate(file, workspace) -> ValidationResult.
func (v *Validator) Validate(ctx context.Context, file, workspace string) sdk.ValidationResult {
	m, ok := manifestsByExt[strings.ToLower(filepath.Ext(file))]
	if !ok {
		return sdk.ValidationResult{Status: sdk.ValidationSkipped, Messages: []string{"no linter known for " + file}}
	}

	shadow, err := v.prepare(workspace, file, m)
	if err != nil {
		if v.log != nil {
			v.log.Warn().Err(err).Str("file", file).Msg("shadow workspace prep failed, falling back to read-only validation")
		}
		return v.validateReadOnly(ctx, workspace, file, m)
	}

	return v.runProcedure(ctx, shadow, m)
}

// prepare copies the manifest files and the target file into a (cached,
// reused) shadow workspace for workspace.
func (v *Validator) prepare(workspace, file string, m manifest) (string, error) {
	shadow, ok := v.shadows[workspace]
	if !ok {
		shadow = filepath.Join(v.baseDir, "shadow-"+projectKey(workspace))
		if err := os.MkdirAll(shadow, 0755); err != nil {
			return "", fmt.Errorf("create shadow dir: %w", err)
		}
		v.shadows[workspace] = shadow
	}

	for _, name := range m.files {
		src := filepath.Join(workspace, name)
		data, err := os.ReadFile(src)
		if err != nil {
			continue // manifest file not present is not an error
		}
		if err := os.WriteFile(filepath.Join(shadow, name), data, 0644); err != nil {
			return "", fmt.Errorf("copy manifest %s: %w", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(workspace, file))
	if err != nil {
		return "", fmt.Errorf("read target file: %w", err)
	}
	dst := filepath.Join(shadow, file)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("create shadow subdir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("copy target file: %w", err)
	}

	return shadow, nil
}

// runProcedure implements the lint-then-build classification steps.
func (v *Validator) runProcedure(ctx context.Context, shadow string, m manifest) sdk.ValidationResult {
	if len(m.lintCmd) > 0 {
		out, lintErr := run(ctx, shadow, m.lintCmd)
		errs, warns := partitionBySeverity(out)
		if len(errs) > 0 {
			return sdk.ValidationResult{Status: sdk.ValidationErrors, Messages: errs}
		}
		if lintErr != nil && len(warns) == 0 {
			// Linter exited non-zero but produced no classifiable text:
			// treat the raw output as a single error message.
			return sdk.ValidationResult{Status: sdk.ValidationErrors, Messages: []string{out}}
		}
		if len(warns) > 0 {
			return sdk.ValidationResult{Status: sdk.ValidationWarnings, Messages: warns}
		}
	}

	if len(m.buildCmd) > 0 && hasManifest(shadow, m) {
		out, err := run(ctx, shadow, m.buildCmd)
		if err != nil {
			return sdk.ValidationResult{Status: sdk.ValidationErrors, Messages: []string{strings.TrimSpace(out)}}
		}
		return sdk.ValidationResult{Status: sdk.ValidationSuccess}
	}

	if len(m.lintCmd) > 0 {
		return sdk.ValidationResult{Status: sdk.ValidationSuccess}
	}
	return sdk.ValidationResult{Status: sdk.ValidationSkipped, Messages: []string{"no linter known"}}
}

// validateReadOnly runs the same procedure directly against workspace,
// never writing to it, used when shadow preparation fails.
func (v *Validator) validateReadOnly(ctx context.Context, workspace, file string, m manifest) sdk.ValidationResult {
	if len(m.lintCmd) == 0 {
		return sdk.ValidationResult{Status: sdk.ValidationSkipped, Messages: []string{"no linter known for " + file}}
	}
	out, err := run(ctx, workspace, m.lintCmd)
	errs, warns := partitionBySeverity(out)
	switch {
	case len(errs) > 0:
		return sdk.ValidationResult{Status: sdk.ValidationErrors, Messages: errs}
	case err != nil:
		return sdk.ValidationResult{Status: sdk.ValidationErrors, Messages: []string{strings.TrimSpace(out)}}
	case len(warns) > 0:
		return sdk.ValidationResult{Status: sdk.ValidationWarnings, Messages: warns}
	default:
		return sdk.ValidationResult{Status: sdk.ValidationSuccess}
	}
}

func hasManifest(shadow string, m manifest) bool {
	for _, name := range m.files {
		if _, err := os.Stat(filepath.Join(shadow, name)); err == nil {
			return true
		}
	}
	return false
}

// partitionBySeverity splits lint output lines by a case-insensitive
// "error" vs everything-else keyword match.
func partitionBySeverity(output string) (errs, warns []string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "error") {
			errs = append(errs, line)
		} else {
			warns = append(warns, line)
		}
	}
	return errs, warns
}

func run(ctx context.Context, dir string, cmd []string) (string, error) {
	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Dir = dir
	out, err := c.CombinedOutput()
	return string(out), err
}

func projectKey(workspace string) string {
	sum := sha256.Sum256([]byte(workspace))
	return hex.EncodeToString(sum[:])[:16]
}
