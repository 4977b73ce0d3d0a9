package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.csv")

	if err := WriteFile(path, [][]string{{"a", "b"}, {"1", "2"}}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteFile(path, [][]string{{"a", "b"}, {"3", "4"}}); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != "a,b\n3,4\n" {
		t.Errorf("unexpected content: %q", string(data))
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected 1 file in dir, got %d", len(entries))
	}
}

func TestEncodeGlobalTrend(t *testing.T) {
	points := []Point{
		{Date: day("2021-01-10"), Keyword: "meditation", Interest: 55},
		{Date: day("2021-01-03"), Keyword: "mindfulness", Interest: 30},
		{Date: day("2021-01-03"), Keyword: "meditation", Interest: 40},
	}

	records := EncodeGlobalTrend(points)
	if len(records) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "date,keyword,search_interest" {
		t.Errorf("unexpected header: %v", records[0])
	}
	// Canonical (date, keyword) order.
	if records[1][1] != "meditation" || records[1][0] != "2021-01-03" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][1] != "mindfulness" {
		t.Errorf("unexpected second row: %v", records[2])
	}
	if records[3][0] != "2021-01-10" {
		t.Errorf("unexpected third row: %v", records[3])
	}
}

func TestEncodePercentChangeFormat(t *testing.T) {
	records := EncodePercentChange([]PercentChangeRow{
		{Keyword: "meditation", PercentChange: 33.33},
		{Keyword: "mindfulness", PercentChange: 50},
	})
	if records[1][1] != "33.33" {
		t.Errorf("expected '33.33', got %q", records[1][1])
	}
	// Whole values render without trailing zeros, like prior artifacts.
	if records[2][1] != "50" {
		t.Errorf("expected '50', got %q", records[2][1])
	}
}

func TestEncodeCountryPivot(t *testing.T) {
	rows := []CountryInterest{
		{Country: "Nepal", Keyword: "meditation", Interest: 100},
		{Country: "India", Keyword: "meditation", Interest: 80},
		{Country: "India", Keyword: "breathwork", Interest: 30},
	}
	keywords := []string{"meditation", "breathwork"}

	records := EncodeCountryPivot(rows, keywords)
	if strings.Join(records[0], ",") != "country,meditation,breathwork" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	// Countries sorted; missing cells are 0.
	if strings.Join(records[1], ",") != "India,80,30" {
		t.Errorf("unexpected India row: %v", records[1])
	}
	if strings.Join(records[2], ",") != "Nepal,100,0" {
		t.Errorf("unexpected Nepal row: %v", records[2])
	}
}

// Recomputing every derived table twice from the same raw input must yield
// byte-identical files.
func TestDerivationsDeterministic(t *testing.T) {
	points := []Point{
		{Date: day("2021-01-03"), Keyword: "meditation", Interest: 40},
		{Date: day("2021-01-10"), Keyword: "meditation", Interest: 90},
		{Date: day("2021-01-03"), Keyword: "breathwork", Interest: 5},
		{Date: day("2021-01-10"), Keyword: "breathwork", Interest: 12},
	}
	countries := []CountryInterest{
		{Country: "Nepal", Keyword: "meditation", Interest: 100},
		{Country: "India", Keyword: "meditation", Interest: 80},
		{Country: "Ireland", Keyword: "breathwork", Interest: 60},
	}
	related := []RelatedQuery{
		{Keyword: "meditation", Query: "how to meditate", Score: 100},
		{Keyword: "breathwork", Query: "how to meditate", Score: 55},
	}

	render := func() []byte {
		var buf bytes.Buffer
		for _, records := range [][][]string{
			EncodeGlobalTrend(points),
			EncodePercentChange(PercentChange(points)),
			EncodeTopPeaks(TopPeaks(points)),
			EncodeYearlyHeatmap(YearlyHeatmap(points)),
			EncodeCountryInterest(CleanCountryInterest(countries)),
			EncodeCountryPivot(countries, []string{"meditation", "breathwork"}),
			EncodeCountryTotals(CountryTotals(countries)),
			EncodeCountryTopCounts(CountryTopCounts(countries)),
			EncodeRelated(TopRelated(related, 10)),
			EncodeRelatedShared(SharedRelated(related)),
		} {
			for _, rec := range records {
				buf.WriteString(strings.Join(rec, ","))
				buf.WriteByte('\n')
			}
		}
		return buf.Bytes()
	}

	first := render()
	second := render()
	if !bytes.Equal(first, second) {
		t.Error("derived tables differ across identical recomputes")
	}
}
