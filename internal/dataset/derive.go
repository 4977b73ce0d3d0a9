package dataset

import (
	"math"
	"sort"
)

const topPeaksPerKeyword = 3

const topCountriesPerKeyword = 5

// PercentChangeRow is the 5-year percent change of one keyword.
type PercentChangeRow struct {
	Keyword       string
	PercentChange float64
}

// HeatmapRow is the mean interest of one keyword in one calendar year.
type HeatmapRow struct {
	Year        int
	Keyword     string
	AvgInterest float64
}

// CountryTotalRow is the summed country-level interest for one keyword.
type CountryTotalRow struct {
	Country       string
	Keyword       string
	TotalInterest int
}

// CountryTopCountRow counts how often a country appears in a keyword's top 5.
type CountryTopCountRow struct {
	Keyword string
	Country string
	Count   int
}

// PercentChange computes the percent change between the first and last
// observation of each keyword over the full window, rounded to 2 decimals.
// A keyword whose earliest observations are zero uses its first non-zero
// value as the base; a keyword with no non-zero value reports 0.
// Rows are ordered by keyword.
func PercentChange(points []Point) []PercentChangeRow {
	byKeyword := groupByKeyword(points)

	keywords := make([]string, 0, len(byKeyword))
	for kw := range byKeyword {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	rows := make([]PercentChangeRow, 0, len(keywords))
	for _, kw := range keywords {
		series := byKeyword[kw]

		first := 0
		for _, p := range series {
			if p.Interest > 0 {
				first = p.Interest
				break
			}
		}
		last := series[len(series)-1].Interest

		var pct float64
		if first > 0 {
			pct = round2(float64(last-first) / float64(first) * 100.0)
		}
		rows = append(rows, PercentChangeRow{Keyword: kw, PercentChange: pct})
	}
	return rows
}

// TopPeaks returns the 3 highest-interest observations per keyword, ordered
// by keyword then interest descending. Ties keep the earlier date first.
func TopPeaks(points []Point) []Point {
	byKeyword := groupByKeyword(points)

	keywords := make([]string, 0, len(byKeyword))
	for kw := range byKeyword {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	var rows []Point
	for _, kw := range keywords {
		series := append([]Point(nil), byKeyword[kw]...)
		sort.SliceStable(series, func(i, j int) bool {
			if series[i].Interest != series[j].Interest {
				return series[i].Interest > series[j].Interest
			}
			return series[i].Date.Before(series[j].Date)
		})
		n := topPeaksPerKeyword
		if len(series) < n {
			n = len(series)
		}
		rows = append(rows, series[:n]...)
	}
	return rows
}

// YearlyHeatmap computes the mean interest per (year, keyword), rounded to
// 2 decimals, ordered by year then keyword.
func YearlyHeatmap(points []Point) []HeatmapRow {
	type cell struct {
		sum   int
		count int
	}
	type key struct {
		year    int
		keyword string
	}

	cells := make(map[key]*cell)
	for _, p := range points {
		k := key{year: p.Date.Year(), keyword: p.Keyword}
		c := cells[k]
		if c == nil {
			c = &cell{}
			cells[k] = c
		}
		c.sum += p.Interest
		c.count++
	}

	keys := make([]key, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].keyword < keys[j].keyword
	})

	rows := make([]HeatmapRow, 0, len(keys))
	for _, k := range keys {
		c := cells[k]
		rows = append(rows, HeatmapRow{
			Year:        k.year,
			Keyword:     k.keyword,
			AvgInterest: round2(float64(c.sum) / float64(c.count)),
		})
	}
	return rows
}

// CountryTotals sums country-level interest per (country, keyword), ordered
// by keyword ascending then total descending. Ties order by country.
func CountryTotals(rows []CountryInterest) []CountryTotalRow {
	type key struct {
		country string
		keyword string
	}
	totals := make(map[key]int)
	for _, r := range rows {
		totals[key{country: r.Country, keyword: r.Keyword}] += r.Interest
	}

	out := make([]CountryTotalRow, 0, len(totals))
	for k, total := range totals {
		out = append(out, CountryTotalRow{Country: k.country, Keyword: k.keyword, TotalInterest: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Keyword != out[j].Keyword {
			return out[i].Keyword < out[j].Keyword
		}
		if out[i].TotalInterest != out[j].TotalInterest {
			return out[i].TotalInterest > out[j].TotalInterest
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// CountryTopCounts counts appearances in each keyword's top 5 countries by
// interest. Keywords are normalized (trimmed, lowercased) before grouping.
// Rows are ordered by keyword then country.
func CountryTopCounts(rows []CountryInterest) []CountryTopCountRow {
	byKeyword := make(map[string][]CountryInterest)
	for _, r := range rows {
		kw := normalizeKeyword(r.Keyword)
		byKeyword[kw] = append(byKeyword[kw], r)
	}

	type key struct {
		keyword string
		country string
	}
	counts := make(map[key]int)
	for kw, group := range byKeyword {
		sorted := append([]CountryInterest(nil), group...)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Interest != sorted[j].Interest {
				return sorted[i].Interest > sorted[j].Interest
			}
			return sorted[i].Country < sorted[j].Country
		})
		n := topCountriesPerKeyword
		if len(sorted) < n {
			n = len(sorted)
		}
		for _, r := range sorted[:n] {
			counts[key{keyword: kw, country: r.Country}]++
		}
	}

	out := make([]CountryTopCountRow, 0, len(counts))
	for k, c := range counts {
		out = append(out, CountryTopCountRow{Keyword: k.keyword, Country: k.country, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Keyword != out[j].Keyword {
			return out[i].Keyword < out[j].Keyword
		}
		return out[i].Country < out[j].Country
	})
	return out
}

// TopRelated returns the 10 highest-scoring related queries per keyword,
// ordered by keyword then score descending. Ties keep fetch order, which is
// the API's own ranking.
func TopRelated(rows []RelatedQuery, limit int) []RelatedQuery {
	if limit <= 0 {
		limit = 10
	}
	byKeyword := make(map[string][]RelatedQuery)
	for _, r := range rows {
		byKeyword[r.Keyword] = append(byKeyword[r.Keyword], r)
	}

	keywords := make([]string, 0, len(byKeyword))
	for kw := range byKeyword {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	var out []RelatedQuery
	for _, kw := range keywords {
		group := append([]RelatedQuery(nil), byKeyword[kw]...)
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score > group[j].Score
		})
		n := limit
		if len(group) < n {
			n = len(group)
		}
		out = append(out, group[:n]...)
	}
	return out
}

// SharedRelated returns the (keyword, query) pairs for queries that appear
// under two or more keywords, ordered by query then keyword.
func SharedRelated(rows []RelatedQuery) []RelatedQuery {
	keywordsByQuery := make(map[string]map[string]struct{})
	for _, r := range rows {
		if keywordsByQuery[r.Query] == nil {
			keywordsByQuery[r.Query] = make(map[string]struct{})
		}
		keywordsByQuery[r.Query][r.Keyword] = struct{}{}
	}

	var out []RelatedQuery
	seen := make(map[[2]string]struct{})
	for _, r := range rows {
		if len(keywordsByQuery[r.Query]) < 2 {
			continue
		}
		id := [2]string{r.Keyword, r.Query}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, RelatedQuery{Keyword: r.Keyword, Query: r.Query})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Query != out[j].Query {
			return out[i].Query < out[j].Query
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out
}

// groupByKeyword splits points per keyword, each series in date order.
func groupByKeyword(points []Point) map[string][]Point {
	sorted := append([]Point(nil), points...)
	SortPoints(sorted)

	byKeyword := make(map[string][]Point)
	for _, p := range sorted {
		byKeyword[p.Keyword] = append(byKeyword[p.Keyword], p)
	}
	return byKeyword
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
