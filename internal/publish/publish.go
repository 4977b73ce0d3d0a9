// Package publish is the orchestrator around the updater: it captures the
// run's combined output into the monthly log, decides whether an update
// happened, and stages, commits, and pushes the artifact set as a single
// unit. Push failures are logged, never fatal: a missed push is retried by
// the next scheduled run.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mwaldner/trendpulse/internal/config"
	"github.com/mwaldner/trendpulse/internal/dataset"
	"github.com/mwaldner/trendpulse/internal/updater"
)

// UpdateRunner is the slice of the updater the publisher drives.
type UpdateRunner interface {
	Run(ctx context.Context, force bool) (*updater.Result, error)
	SetOutput(w io.Writer)
}

// Publisher runs the update-and-publish sequence.
type Publisher struct {
	cfg *config.Config
	upd UpdateRunner
	git GitRunner
	out io.Writer
	now func() time.Time
}

// New creates a publisher writing console output to stdout.
func New(cfg *config.Config, upd UpdateRunner, git GitRunner) *Publisher {
	return &Publisher{
		cfg: cfg,
		upd: upd,
		git: git,
		out: os.Stdout,
		now: time.Now,
	}
}

// SetOutput redirects console output, mainly for tests.
func (p *Publisher) SetOutput(w io.Writer) {
	p.out = w
}

// ContainsSuccessMarker reports whether captured updater output holds the
// overwrite marker line. Kept alongside the structured result as the
// documented output contract of the updater.
func ContainsSuccessMarker(output []byte) bool {
	return bytes.Contains(output, []byte(updater.SuccessMarkerPrefix))
}

// Run executes the full sequence. The returned error is non-nil only for
// failures before the publish decision (log setup, updater failure); git
// errors are logged and swallowed.
func (p *Publisher) Run(ctx context.Context, force bool) error {
	logFile, err := OpenMonthlyLog(p.cfg.LogsDir(), p.now())
	if err != nil {
		return err
	}
	defer logFile.Close()

	// Retention cleanup runs regardless of how this invocation ends.
	defer PruneOldLogs(p.cfg.LogsDir(), p.cfg.LogRetention(), p.now())

	log := io.MultiWriter(p.out, logFile)
	WriteRunHeader(log, p.now())

	// The updater's combined output goes to console, log file, and a
	// capture buffer for the marker check.
	var captured bytes.Buffer
	p.upd.SetOutput(io.MultiWriter(log, &captured))

	result, err := p.upd.Run(ctx, force)
	if errors.Is(err, updater.ErrAlreadyRan) {
		fmt.Fprintln(log, "⏳ Already ran today. Exiting.")
		return nil
	}
	if err != nil {
		fmt.Fprintf(log, "❌ Update failed: %v\n", err)
		return err
	}

	changed := result.Changed
	if changed != ContainsSuccessMarker(captured.Bytes()) {
		// The structured result and the output contract must agree;
		// when they don't, publishing on either alone is unsafe.
		fmt.Fprintln(log, "⚠️ Update result and success marker disagree; treating as no update.")
		changed = false
	}

	if !changed {
		fmt.Fprintln(log, "🛑 No update detected. Nothing to publish.")
		return nil
	}

	if !p.cfg.Git.Enabled {
		fmt.Fprintln(log, "Git publishing disabled; artifacts updated locally.")
		return nil
	}

	p.commitAndPush(ctx, log)
	return nil
}

// commitAndPush stages the fixed artifact list and commits/pushes when the
// staged content differs from the last commit. Every failure is terminal
// for the publish step but not for the run.
func (p *Publisher) commitAndPush(ctx context.Context, log io.Writer) {
	args := []string{"add", "--"}
	for _, name := range dataset.ArtifactNames() {
		args = append(args, filepath.Join("data", "streamlit", name))
	}
	if _, err := p.git.Run(ctx, args...); err != nil {
		fmt.Fprintf(log, "⚠️ git add failed: %v\n", err)
		return
	}

	staged, err := p.git.HasStagedChanges(ctx)
	if err != nil {
		fmt.Fprintf(log, "⚠️ git diff failed: %v\n", err)
		return
	}
	if !staged {
		fmt.Fprintln(log, "🛑 No changes detected. Skipping commit.")
		return
	}

	msg := fmt.Sprintf("%s: %s", p.cfg.Git.CommitPrefix, p.now().Format("2006-01-02 15:04:05"))
	if _, err := p.git.Run(ctx, "commit", "-m", msg); err != nil {
		fmt.Fprintf(log, "⚠️ git commit failed: %v\n", err)
		return
	}
	fmt.Fprintf(log, "✅ Committed: %s\n", msg)

	if _, err := p.git.Run(ctx, "push", p.cfg.Git.Remote, p.cfg.Git.Branch); err != nil {
		fmt.Fprintf(log, "⚠️ Push failed (will retry on next run): %v\n", err)
		return
	}
	fmt.Fprintf(log, "🚀 Pushed to %s/%s.\n", p.cfg.Git.Remote, p.cfg.Git.Branch)
}
