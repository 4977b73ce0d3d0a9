package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwaldner/trendpulse/internal/config"
	"github.com/mwaldner/trendpulse/internal/dataset"
	"github.com/mwaldner/trendpulse/internal/updater"
)

type fakeUpdater struct {
	result *updater.Result
	err    error
	output string
	out    io.Writer
}

func (f *fakeUpdater) SetOutput(w io.Writer) { f.out = w }

func (f *fakeUpdater) Run(_ context.Context, _ bool) (*updater.Result, error) {
	if f.out != nil && f.output != "" {
		fmt.Fprint(f.out, f.output)
	}
	return f.result, f.err
}

type fakeGit struct {
	calls     [][]string
	staged    bool
	stagedErr error
	errOn     string
}

func (g *fakeGit) Run(_ context.Context, args ...string) (string, error) {
	g.calls = append(g.calls, args)
	if g.errOn != "" && args[0] == g.errOn {
		return "", fmt.Errorf("git %s: exit status 1", args[0])
	}
	return "", nil
}

func (g *fakeGit) HasStagedChanges(_ context.Context) (bool, error) {
	g.calls = append(g.calls, []string{"diff", "--cached", "--quiet"})
	return g.staged, g.stagedErr
}

func (g *fakeGit) commandsRun(name string) int {
	n := 0
	for _, c := range g.calls {
		if c[0] == name {
			n++
		}
	}
	return n
}

func successOutput() string {
	marker := updater.SuccessMarker(
		time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC),
	)
	return "🔄 Updating global_trend_summary.csv...\n" + marker + "\n"
}

func testPublisher(t *testing.T, upd *fakeUpdater, git *fakeGit) (*Publisher, *config.Config, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		Keywords: []string{"meditation"},
		Output:   config.Output{RepoDir: t.TempDir()},
		Git:      config.Git{Enabled: true, Remote: "origin", Branch: "main", CommitPrefix: "Auto-update trend datasets"},
		Logs:     config.Logs{RetentionDays: 180},
	}

	p := New(cfg, upd, git)
	var out bytes.Buffer
	p.SetOutput(&out)
	return p, cfg, &out
}

func TestPublishCommitAndPush(t *testing.T) {
	upd := &fakeUpdater{
		result: &updater.Result{Changed: true},
		output: successOutput(),
	}
	git := &fakeGit{staged: true}
	p, cfg, _ := testPublisher(t, upd, git)

	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Exactly the configured artifact list was staged — no more, no fewer.
	var addArgs []string
	for _, c := range git.calls {
		if c[0] == "add" {
			addArgs = c[2:] // skip "add", "--"
		}
	}
	if len(addArgs) != len(dataset.ArtifactNames()) {
		t.Fatalf("expected %d staged paths, got %d", len(dataset.ArtifactNames()), len(addArgs))
	}
	for i, name := range dataset.ArtifactNames() {
		want := filepath.Join("data", "streamlit", name)
		if addArgs[i] != want {
			t.Errorf("staged path %d: expected %q, got %q", i, want, addArgs[i])
		}
	}

	if git.commandsRun("commit") != 1 || git.commandsRun("push") != 1 {
		t.Errorf("expected one commit and one push, got calls: %v", git.calls)
	}

	// Outcome is in the monthly log.
	logData, err := os.ReadFile(MonthlyLogPath(cfg.LogsDir(), time.Now()))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(logData), "Pushed to origin/main") {
		t.Errorf("expected push outcome in log:\n%s", logData)
	}
	if !ContainsSuccessMarker(logData) {
		t.Error("expected updater marker in log")
	}
}

func TestPublishNoUpdate(t *testing.T) {
	upd := &fakeUpdater{
		result: &updater.Result{Changed: false},
		output: "⏭️ No new weekly data (latest date = 2026-01-04). Skipping overwrite.\n",
	}
	git := &fakeGit{}
	p, cfg, _ := testPublisher(t, upd, git)

	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No staging, commit, or push.
	if len(git.calls) != 0 {
		t.Errorf("expected no git calls, got %v", git.calls)
	}

	logData, _ := os.ReadFile(MonthlyLogPath(cfg.LogsDir(), time.Now()))
	if !strings.Contains(string(logData), "No update detected") {
		t.Errorf("expected no-update notice in log:\n%s", logData)
	}
}

func TestPublishStagedButIdentical(t *testing.T) {
	upd := &fakeUpdater{
		result: &updater.Result{Changed: true},
		output: successOutput(),
	}
	git := &fakeGit{staged: false}
	p, cfg, _ := testPublisher(t, upd, git)

	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if git.commandsRun("add") != 1 {
		t.Error("expected artifacts to be staged")
	}
	if git.commandsRun("commit") != 0 || git.commandsRun("push") != 0 {
		t.Errorf("expected no commit/push for identical content, got %v", git.calls)
	}

	logData, _ := os.ReadFile(MonthlyLogPath(cfg.LogsDir(), time.Now()))
	if !strings.Contains(string(logData), "No changes detected") {
		t.Errorf("expected no-changes notice in log:\n%s", logData)
	}
}

func TestPublishUpdaterFailureAborts(t *testing.T) {
	upd := &fakeUpdater{
		err:    updater.ErrNoData,
		output: "❌ meditation: failed after 6 attempts\n",
	}
	git := &fakeGit{}
	p, cfg, _ := testPublisher(t, upd, git)

	err := p.Run(context.Background(), false)
	if !errors.Is(err, updater.ErrNoData) {
		t.Fatalf("expected updater error to propagate, got %v", err)
	}

	if len(git.calls) != 0 {
		t.Errorf("expected no git calls after updater failure, got %v", git.calls)
	}

	// The updater's own error output is in the log.
	logData, _ := os.ReadFile(MonthlyLogPath(cfg.LogsDir(), time.Now()))
	if !strings.Contains(string(logData), "failed after 6 attempts") {
		t.Errorf("expected updater error in log:\n%s", logData)
	}
	if !strings.Contains(string(logData), "Update failed") {
		t.Errorf("expected failure notice in log:\n%s", logData)
	}
}

func TestPublishPushFailureSwallowed(t *testing.T) {
	upd := &fakeUpdater{
		result: &updater.Result{Changed: true},
		output: successOutput(),
	}
	git := &fakeGit{staged: true, errOn: "push"}
	p, cfg, _ := testPublisher(t, upd, git)

	// Push failure is logged, not propagated.
	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("expected nil error on push failure, got %v", err)
	}

	logData, _ := os.ReadFile(MonthlyLogPath(cfg.LogsDir(), time.Now()))
	if !strings.Contains(string(logData), "Push failed") {
		t.Errorf("expected push failure in log:\n%s", logData)
	}
}

func TestPublishMarkerDisagreementIsNoUpdate(t *testing.T) {
	// Changed result but no marker in output: publishing would trust a
	// broken contract, so it must not happen.
	upd := &fakeUpdater{
		result: &updater.Result{Changed: true},
		output: "🔄 Updating global_trend_summary.csv...\n",
	}
	git := &fakeGit{staged: true}
	p, _, _ := testPublisher(t, upd, git)

	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(git.calls) != 0 {
		t.Errorf("expected no git calls on contract disagreement, got %v", git.calls)
	}
}

func TestPublishAlreadyRanToday(t *testing.T) {
	upd := &fakeUpdater{err: updater.ErrAlreadyRan}
	git := &fakeGit{}
	p, _, _ := testPublisher(t, upd, git)

	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(git.calls) != 0 {
		t.Errorf("expected no git calls, got %v", git.calls)
	}
}

func TestPublishGitDisabled(t *testing.T) {
	upd := &fakeUpdater{
		result: &updater.Result{Changed: true},
		output: successOutput(),
	}
	git := &fakeGit{staged: true}
	p, cfg, _ := testPublisher(t, upd, git)
	cfg.Git.Enabled = false

	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(git.calls) != 0 {
		t.Errorf("expected no git calls when disabled, got %v", git.calls)
	}
}
