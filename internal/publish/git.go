package publish

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitRunner abstracts the version-control operations the publisher needs.
type GitRunner interface {
	// Run executes a git subcommand and returns its combined output.
	Run(ctx context.Context, args ...string) (string, error)
	// HasStagedChanges reports whether the index differs from HEAD.
	HasStagedChanges(ctx context.Context) (bool, error)
}

// ExecGit runs the git executable in a fixed working directory.
type ExecGit struct {
	dir string
}

// NewExecGit resolves the git executable and returns a runner rooted at dir.
func NewExecGit(dir string) (*ExecGit, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}
	return &ExecGit{dir: dir}, nil
}

// Run executes a git subcommand.
func (g *ExecGit) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if output != "" {
			return output, fmt.Errorf("git %s: %w: %s", args[0], err, output)
		}
		return output, fmt.Errorf("git %s: %w", args[0], err)
	}
	return output, nil
}

// HasStagedChanges runs `git diff --cached --quiet`: exit 0 means the index
// matches HEAD, exit 1 means staged changes exist.
func (g *ExecGit) HasStagedChanges(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
	cmd.Dir = g.dir
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached: %w", err)
}
