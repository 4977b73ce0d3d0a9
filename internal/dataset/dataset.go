// Package dataset holds the tabular model of the pipeline: the raw weekly
// interest table fetched from Google Trends and every derived table the
// dashboard reads. All derivations are pure functions recomputed in full on
// each run.
package dataset

import (
	"sort"
	"strings"
	"time"
)

// Artifact file names, fixed relative to the data/streamlit directory.
// The dashboard reads these paths; renaming one breaks it.
const (
	GlobalTrendFile     = "global_trend_summary.csv"
	PctChangeFile       = "trend_pct_change.csv"
	TopPeaksFile        = "trend_top_peaks.csv"
	YearlyHeatmapFile   = "trend_yearly_heatmap.csv"
	CountryInterestFile = "country_interest_summary.csv"
	CountryPivotFile    = "country_interest_pivot.csv"
	CountryTotalsFile   = "country_total_interest_by_keyword.csv"
	CountryTop5File     = "country_top5_appearance_counts.csv"
	RelatedTopFile      = "related_queries_top10.csv"
	RelatedRisingFile   = "related_queries_rising10.csv"
	RelatedSharedFile   = "related_queries_shared.csv"
)

// ArtifactNames returns every artifact file name, in publish order.
func ArtifactNames() []string {
	return []string{
		GlobalTrendFile,
		PctChangeFile,
		TopPeaksFile,
		YearlyHeatmapFile,
		CountryInterestFile,
		CountryPivotFile,
		CountryTotalsFile,
		CountryTop5File,
		RelatedTopFile,
		RelatedRisingFile,
		RelatedSharedFile,
	}
}

// Point is one weekly observation of search interest for a keyword.
// Interest is Google's relative score in [0, 100].
type Point struct {
	Date     time.Time
	Keyword  string
	Interest int
}

// CountryInterest is one country-level observation for a keyword.
type CountryInterest struct {
	Country  string
	Keyword  string
	Interest int
}

// RelatedQuery is one related-search row for a keyword.
type RelatedQuery struct {
	Keyword string
	Query   string
	Score   int
}

// SortPoints orders points by (date, keyword), the canonical order of the
// global trend table.
func SortPoints(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].Keyword < points[j].Keyword
	})
}

// LatestDate returns the most recent observation date, or the zero time for
// an empty table.
func LatestDate(points []Point) time.Time {
	var latest time.Time
	for _, p := range points {
		if p.Date.After(latest) {
			latest = p.Date
		}
	}
	return latest
}

// EarliestDate returns the oldest observation date, or the zero time for an
// empty table.
func EarliestDate(points []Point) time.Time {
	var earliest time.Time
	for _, p := range points {
		if earliest.IsZero() || p.Date.Before(earliest) {
			earliest = p.Date
		}
	}
	return earliest
}

// CleanCountryInterest drops non-positive scores and exact duplicates, and
// orders the table by keyword then country. This is the canonical form of
// the country interest summary.
func CleanCountryInterest(rows []CountryInterest) []CountryInterest {
	seen := make(map[CountryInterest]struct{})
	var out []CountryInterest
	for _, r := range rows {
		if r.Interest <= 0 {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Keyword != out[j].Keyword {
			return out[i].Keyword < out[j].Keyword
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// normalizeKeyword lowercases and trims a keyword for grouping.
func normalizeKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}
