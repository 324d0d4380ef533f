// Package action scaffolds the chosen template by shelling out to nix.
package action

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"flakepick/internal/catalog"
	"flakepick/internal/logging"
	"flakepick/internal/rank"
)

// Runner applies a committed template with nix flake init.
type Runner struct {
	// Dir is the directory scaffolded into. Empty means the process
	// working directory.
	Dir string

	run func(ctx context.Context, argv []string, dir string) (string, error) // injectable for testing
}

// NewRunner creates a Runner that scaffolds into dir.
func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir, run: runCommand}
}

// runCommand executes argv in dir and returns captured stderr. The
// context kills the process on cancellation or deadline.
func runCommand(ctx context.Context, argv []string, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// Act runs nix flake init -t <ref> for the committed item. On failure
// the returned error carries the command line, the exit error, and
// whatever nix printed to stderr, so the caller sees nix's own
// diagnostics.
func (r *Runner) Act(ctx context.Context, item rank.Item) error {
	tpl, ok := item.Payload.(catalog.Template)
	if !ok {
		return fmt.Errorf("item %s carries no template payload", item.Ident)
	}

	argv := []string{"nix", "flake", "init", "-t", tpl.Ref()}
	logging.Info("applying template", "ref", tpl.Ref(), "dir", r.Dir)

	stderr, err := r.run(ctx, argv, r.Dir)
	if err != nil {
		if msg := strings.TrimSpace(stderr); msg != "" {
			return fmt.Errorf("%s: %w: %s", strings.Join(argv, " "), err, msg)
		}
		return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}
	return nil
}
