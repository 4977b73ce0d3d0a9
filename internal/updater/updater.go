// Package updater implements the dataset update run: fetch current Trends
// data for the configured keywords, recompute every derived table, overwrite
// the CSV artifacts, and record the run in the ledger.
package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/mwaldner/trendpulse/internal/config"
	"github.com/mwaldner/trendpulse/internal/database"
	"github.com/mwaldner/trendpulse/internal/dataset"
	"github.com/mwaldner/trendpulse/internal/trends"
)

// SuccessMarkerPrefix starts the line emitted when the global trend summary
// was overwritten. The publisher matches this literal in the captured run
// output; the two must stay in sync.
const SuccessMarkerPrefix = "✅ Overwrote global_trend_summary.csv with window "

// SuccessMarker renders the full marker line for a data window.
func SuccessMarker(start, end time.Time) string {
	return fmt.Sprintf("%s%s → %s", SuccessMarkerPrefix, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// ErrNoData indicates the fetch returned nothing usable; existing artifacts
// were left untouched.
var ErrNoData = errors.New("no interest data retrieved")

// ErrAlreadyRan indicates a finished run already exists for today and
// --force was not given.
var ErrAlreadyRan = errors.New("already ran today")

// ArtifactResult describes one artifact written during a run.
type ArtifactResult struct {
	Name    string
	RelPath string
	SHA256  string
}

// Result is the structured outcome of an update run. The publisher decides
// on Changed directly instead of scraping output.
type Result struct {
	Changed        bool
	WindowStart    time.Time
	WindowEnd      time.Time
	LatestDataDate string
	Artifacts      []ArtifactResult
}

// Updater runs the dataset update.
type Updater struct {
	cfg    *config.Config
	db     *database.DB
	client trends.Client
	out    io.Writer
	now    func() time.Time
	sleep  func(time.Duration)
}

// New creates an updater writing progress to stdout.
func New(cfg *config.Config, db *database.DB, client trends.Client) *Updater {
	return &Updater{
		cfg:    cfg,
		db:     db,
		client: client,
		out:    os.Stdout,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// SetOutput redirects progress output, e.g. into the publish run log.
func (u *Updater) SetOutput(w io.Writer) {
	u.out = w
}

// Run executes the full update. force bypasses the once-per-day guard.
// On a fetch failure nothing is written and an error is returned; when the
// fetch succeeds but brings no new weekly points, Run returns a Result with
// Changed == false and leaves every artifact untouched.
func (u *Updater) Run(ctx context.Context, force bool) (*Result, error) {
	if !force {
		ran, err := u.db.HasRunOn(u.now().Format("2006-01-02"))
		if err != nil {
			return nil, err
		}
		if ran {
			return nil, ErrAlreadyRan
		}
	}

	runID, err := u.db.InsertRun(u.now())
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(u.out, "🔄 Updating global_trend_summary.csv...")

	points := u.fetchInterest(ctx)
	if len(points) == 0 {
		fmt.Fprintln(u.out, "⚠️ No data retrieved from Google Trends. Keeping existing files unchanged.")
		u.finish(runID, false, false, "", "fetch returned no data")
		return nil, ErrNoData
	}

	result := &Result{
		WindowStart:    dataset.EarliestDate(points),
		WindowEnd:      dataset.LatestDate(points),
		LatestDataDate: dataset.LatestDate(points).Format("2006-01-02"),
	}

	prevLatest, err := u.db.GetLatestDataDate()
	if err != nil {
		return nil, err
	}
	if prevLatest != "" && prevLatest == result.LatestDataDate {
		fmt.Fprintf(u.out, "⏭️ No new weekly data (latest date = %s). Skipping overwrite.\n", result.LatestDataDate)
		u.finish(runID, true, false, "", "no new weekly data")
		return result, nil
	}

	if err := u.writeGlobalArtifacts(runID, points, result); err != nil {
		u.finish(runID, false, false, "", "write failed: "+err.Error())
		return nil, err
	}

	u.updateCountryArtifacts(ctx, runID, result)
	u.updateRelatedArtifacts(ctx, runID, result)

	result.Changed = true
	u.finish(runID, true, true, result.LatestDataDate, "")
	return result, nil
}

// fetchInterest pulls the weekly series for every keyword. A keyword whose
// fetch fails after all retries is dropped with a notice, like a transient
// per-term quota error; losing every keyword is handled by the caller.
func (u *Updater) fetchInterest(ctx context.Context) []dataset.Point {
	var points []dataset.Point
	for i, kw := range u.cfg.Keywords {
		if i > 0 {
			u.politePause()
		}
		series, err := u.client.InterestOverTime(ctx, kw)
		if err != nil {
			fmt.Fprintf(u.out, "❌ %s: %v\n", kw, err)
			continue
		}
		points = append(points, series...)
	}
	return points
}

// writeGlobalArtifacts overwrites the global summary and its three derived
// tables, then emits the success marker.
func (u *Updater) writeGlobalArtifacts(runID int64, points []dataset.Point, result *Result) error {
	if err := u.writeArtifact(runID, result, dataset.GlobalTrendFile, dataset.EncodeGlobalTrend(points)); err != nil {
		return err
	}
	fmt.Fprintln(u.out, SuccessMarker(result.WindowStart, result.WindowEnd))

	if err := u.writeArtifact(runID, result, dataset.PctChangeFile, dataset.EncodePercentChange(dataset.PercentChange(points))); err != nil {
		return err
	}
	fmt.Fprintln(u.out, "✅ Rebuilt trend_pct_change.csv")

	if err := u.writeArtifact(runID, result, dataset.TopPeaksFile, dataset.EncodeTopPeaks(dataset.TopPeaks(points))); err != nil {
		return err
	}
	fmt.Fprintln(u.out, "✅ Rebuilt trend_top_peaks.csv")

	if err := u.writeArtifact(runID, result, dataset.YearlyHeatmapFile, dataset.EncodeYearlyHeatmap(dataset.YearlyHeatmap(points))); err != nil {
		return err
	}
	fmt.Fprintln(u.out, "✅ Rebuilt trend_yearly_heatmap.csv")

	return nil
}

// updateCountryArtifacts rebuilds the country tables when region data is
// available and differs from the current stored version. Failures here are
// reported but don't fail the run: the global tables are already updated.
func (u *Updater) updateCountryArtifacts(ctx context.Context, runID int64, result *Result) {
	fmt.Fprintln(u.out, "🌍 Updating country_interest_summary.csv...")

	var rows []dataset.CountryInterest
	for i, kw := range u.cfg.Keywords {
		if i > 0 {
			u.politePause()
		}
		regional, err := u.client.InterestByRegion(ctx, kw)
		if err != nil {
			fmt.Fprintf(u.out, "⚠️ Skipped %s due to error: %v\n", kw, err)
			continue
		}
		rows = append(rows, regional...)
	}

	cleaned := dataset.CleanCountryInterest(rows)
	if len(cleaned) == 0 {
		fmt.Fprintln(u.out, "⚠️ No country-level data retrieved. Skipping file update.")
		return
	}

	records := dataset.EncodeCountryInterest(cleaned)
	data, err := dataset.MarshalCSV(records)
	if err != nil {
		fmt.Fprintf(u.out, "⚠️ Encoding country data failed: %v\n", err)
		return
	}

	prev, err := u.db.GetCurrentChecksum(dataset.CountryInterestFile)
	if err == nil && prev != "" && prev == checksum(data) {
		fmt.Fprintln(u.out, "⏭️ No change in country data. Skipping overwrite.")
		return
	}

	steps := []struct {
		name    string
		records [][]string
	}{
		{dataset.CountryInterestFile, records},
		{dataset.CountryPivotFile, dataset.EncodeCountryPivot(cleaned, u.cfg.Keywords)},
		{dataset.CountryTotalsFile, dataset.EncodeCountryTotals(dataset.CountryTotals(cleaned))},
		{dataset.CountryTop5File, dataset.EncodeCountryTopCounts(dataset.CountryTopCounts(cleaned))},
	}
	for _, s := range steps {
		if err := u.writeArtifact(runID, result, s.name, s.records); err != nil {
			fmt.Fprintf(u.out, "⚠️ Writing %s failed: %v\n", s.name, err)
			return
		}
		fmt.Fprintf(u.out, "✅ Wrote %s\n", s.name)
	}
}

// updateRelatedArtifacts rebuilds the related-query tables when any related
// data came back. Per-keyword failures skip that keyword.
func (u *Updater) updateRelatedArtifacts(ctx context.Context, runID int64, result *Result) {
	fmt.Fprintln(u.out, "🔍 Updating related query datasets...")

	var top, rising []dataset.RelatedQuery
	for i, kw := range u.cfg.Keywords {
		if i > 0 {
			u.politePause()
		}
		t, r, err := u.client.RelatedQueries(ctx, kw)
		if err != nil {
			fmt.Fprintf(u.out, "⚠️ Skipped %s due to error: %v\n", kw, err)
			continue
		}
		top = append(top, t...)
		rising = append(rising, r...)
	}

	if len(top) == 0 && len(rising) == 0 {
		fmt.Fprintln(u.out, "⚠️ No related query data retrieved. Skipping file update.")
		return
	}

	steps := []struct {
		name    string
		records [][]string
	}{
		{dataset.RelatedTopFile, dataset.EncodeRelated(dataset.TopRelated(top, 10))},
		{dataset.RelatedRisingFile, dataset.EncodeRelated(dataset.TopRelated(rising, 10))},
		{dataset.RelatedSharedFile, dataset.EncodeRelatedShared(dataset.SharedRelated(top))},
	}
	for _, s := range steps {
		if err := u.writeArtifact(runID, result, s.name, s.records); err != nil {
			fmt.Fprintf(u.out, "⚠️ Writing %s failed: %v\n", s.name, err)
			return
		}
		fmt.Fprintf(u.out, "✅ Wrote %s\n", s.name)
	}
}

// writeArtifact marshals, overwrites, checksums, and records one artifact.
func (u *Updater) writeArtifact(runID int64, result *Result, name string, records [][]string) error {
	data, err := dataset.MarshalCSV(records)
	if err != nil {
		return err
	}

	path := filepath.Join(u.cfg.ArtifactsDir(), name)
	if err := dataset.WriteFileBytes(path, data); err != nil {
		return err
	}

	relPath := filepath.Join("data", "streamlit", name)
	sum := checksum(data)
	if err := u.db.RecordArtifact(runID, name, relPath, sum, int64(len(data))); err != nil {
		return err
	}

	result.Artifacts = append(result.Artifacts, ArtifactResult{Name: name, RelPath: relPath, SHA256: sum})
	return nil
}

// politePause sleeps between keyword fetches to stay under quota.
func (u *Updater) politePause() {
	u.sleep(500*time.Millisecond + time.Duration(rand.Int63n(int64(600*time.Millisecond))))
}

func (u *Updater) finish(runID int64, succeeded, changed bool, latestDataDate, note string) {
	if err := u.db.FinishRun(runID, u.now(), succeeded, changed, latestDataDate, note); err != nil {
		fmt.Fprintf(u.out, "⚠️ Recording run outcome failed: %v\n", err)
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
