package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

const dateLayout = "2006-01-02"

// MarshalCSV renders records as CSV bytes, header first, LF line endings.
func MarshalCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("encoding csv: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes CSV records to path, overwriting any previous version.
// The file is written to a temp file in the same directory and renamed, so
// readers never observe a partial artifact.
func WriteFile(path string, records [][]string) error {
	data, err := MarshalCSV(records)
	if err != nil {
		return err
	}
	return WriteFileBytes(path, data)
}

// WriteFileBytes atomically replaces path with data.
func WriteFileBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// EncodeGlobalTrend encodes the raw weekly interest table in canonical
// (date, keyword) order.
func EncodeGlobalTrend(points []Point) [][]string {
	sorted := append([]Point(nil), points...)
	SortPoints(sorted)

	records := [][]string{{"date", "keyword", "search_interest"}}
	for _, p := range sorted {
		records = append(records, []string{
			p.Date.Format(dateLayout),
			p.Keyword,
			strconv.Itoa(p.Interest),
		})
	}
	return records
}

// EncodePercentChange encodes the 5-year percent change table.
func EncodePercentChange(rows []PercentChangeRow) [][]string {
	records := [][]string{{"keyword", "percent_change"}}
	for _, r := range rows {
		records = append(records, []string{r.Keyword, formatFloat(r.PercentChange)})
	}
	return records
}

// EncodeTopPeaks encodes the per-keyword peak table. Rows are expected in
// the order TopPeaks produces them.
func EncodeTopPeaks(points []Point) [][]string {
	records := [][]string{{"date", "keyword", "search_interest"}}
	for _, p := range points {
		records = append(records, []string{
			p.Date.Format(dateLayout),
			p.Keyword,
			strconv.Itoa(p.Interest),
		})
	}
	return records
}

// EncodeYearlyHeatmap encodes the year-by-keyword mean interest table.
func EncodeYearlyHeatmap(rows []HeatmapRow) [][]string {
	records := [][]string{{"year", "keyword", "avg_interest"}}
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.Year),
			r.Keyword,
			formatFloat(r.AvgInterest),
		})
	}
	return records
}

// EncodeCountryInterest encodes the cleaned long-form country table.
func EncodeCountryInterest(rows []CountryInterest) [][]string {
	records := [][]string{{"country", "keyword", "interest"}}
	for _, r := range rows {
		records = append(records, []string{r.Country, r.Keyword, strconv.Itoa(r.Interest)})
	}
	return records
}

// EncodeCountryPivot encodes the country-by-keyword wide table. Keyword
// columns follow the configured keyword order; missing cells are 0.
func EncodeCountryPivot(rows []CountryInterest, keywords []string) [][]string {
	type key struct {
		country string
		keyword string
	}
	cells := make(map[key]int)
	countrySet := make(map[string]struct{})
	for _, r := range rows {
		cells[key{country: r.Country, keyword: r.Keyword}] += r.Interest
		countrySet[r.Country] = struct{}{}
	}

	countries := make([]string, 0, len(countrySet))
	for c := range countrySet {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	header := append([]string{"country"}, keywords...)
	records := [][]string{header}
	for _, c := range countries {
		row := make([]string, 0, len(header))
		row = append(row, c)
		for _, kw := range keywords {
			row = append(row, strconv.Itoa(cells[key{country: c, keyword: kw}]))
		}
		records = append(records, row)
	}
	return records
}

// EncodeCountryTotals encodes the summed interest table.
func EncodeCountryTotals(rows []CountryTotalRow) [][]string {
	records := [][]string{{"country", "keyword", "total_interest"}}
	for _, r := range rows {
		records = append(records, []string{r.Country, r.Keyword, strconv.Itoa(r.TotalInterest)})
	}
	return records
}

// EncodeCountryTopCounts encodes the top-5 appearance count table.
func EncodeCountryTopCounts(rows []CountryTopCountRow) [][]string {
	records := [][]string{{"keyword", "country", "top5_count"}}
	for _, r := range rows {
		records = append(records, []string{r.Keyword, r.Country, strconv.Itoa(r.Count)})
	}
	return records
}

// EncodeRelated encodes a ranked related-query table.
func EncodeRelated(rows []RelatedQuery) [][]string {
	records := [][]string{{"keyword", "related_query", "popularity_score"}}
	for _, r := range rows {
		records = append(records, []string{r.Keyword, r.Query, strconv.Itoa(r.Score)})
	}
	return records
}

// EncodeRelatedShared encodes the shared-query table. Scores are omitted:
// a shared query has a different score under each keyword.
func EncodeRelatedShared(rows []RelatedQuery) [][]string {
	records := [][]string{{"keyword", "related_query"}}
	for _, r := range rows {
		records = append(records, []string{r.Keyword, r.Query})
	}
	return records
}

// formatFloat renders a 2-decimal-rounded value without trailing zeros,
// matching how the dashboard's loader parses prior artifacts.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
