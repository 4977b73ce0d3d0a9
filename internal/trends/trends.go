// Package trends talks to the Google Trends widget API. Each dataset pull is
// a two-step exchange: an explore request issues per-widget tokens, then the
// widget endpoints return the actual data. Responses carry an XSSI prefix
// before the JSON body.
package trends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mwaldner/trendpulse/internal/config"
	"github.com/mwaldner/trendpulse/internal/dataset"
)

const defaultBaseURL = "https://trends.google.com"

// Widget IDs issued by the explore endpoint.
const (
	widgetTimeseries     = "TIMESERIES"
	widgetGeoMap         = "GEO_MAP"
	widgetRelatedQueries = "RELATED_QUERIES"
)

// ErrNoData indicates the API answered but returned an empty table.
var ErrNoData = errors.New("no data returned from Google Trends")

// Client fetches Trends data for a single keyword per call, matching the
// per-keyword payloads the interest scale is normalized against.
type Client interface {
	InterestOverTime(ctx context.Context, keyword string) ([]dataset.Point, error)
	InterestByRegion(ctx context.Context, keyword string) ([]dataset.CountryInterest, error)
	RelatedQueries(ctx context.Context, keyword string) (top, rising []dataset.RelatedQuery, err error)
}

// HTTPClient is the live implementation of Client.
type HTTPClient struct {
	baseURL     string
	hl          string
	tz          int
	timeframe   string
	maxAttempts int
	baseBackoff time.Duration
	client      *http.Client
	sleep       func(time.Duration)
}

// New creates a Trends client from config.
func New(cfg *config.Config) *HTTPClient {
	maxAttempts := cfg.Trends.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	baseBackoff := time.Duration(cfg.Trends.BaseBackoffMS) * time.Millisecond
	if baseBackoff <= 0 {
		baseBackoff = 600 * time.Millisecond
	}
	return &HTTPClient{
		baseURL:     defaultBaseURL,
		hl:          cfg.Trends.HL,
		tz:          cfg.Trends.TZ,
		timeframe:   cfg.Trends.Timeframe,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		client:      &http.Client{Timeout: cfg.RequestTimeout()},
		sleep:       time.Sleep,
	}
}

// InterestOverTime fetches the weekly interest series for one keyword.
func (c *HTTPClient) InterestOverTime(ctx context.Context, keyword string) ([]dataset.Point, error) {
	var points []dataset.Point
	err := c.withRetry(ctx, "interest over time for "+keyword, func() error {
		w, err := c.exploreWidget(ctx, keyword, widgetTimeseries)
		if err != nil {
			return err
		}
		data, err := c.widgetData(ctx, "/trends/api/widgetdata/multiline", w)
		if err != nil {
			return err
		}
		points, err = parseTimeline(data, keyword)
		return err
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// InterestByRegion fetches country-level interest for one keyword.
func (c *HTTPClient) InterestByRegion(ctx context.Context, keyword string) ([]dataset.CountryInterest, error) {
	var rows []dataset.CountryInterest
	err := c.withRetry(ctx, "interest by region for "+keyword, func() error {
		w, err := c.exploreWidget(ctx, keyword, widgetGeoMap)
		if err != nil {
			return err
		}
		data, err := c.widgetData(ctx, "/trends/api/widgetdata/comparedgeo", w)
		if err != nil {
			return err
		}
		rows, err = parseGeoMap(data, keyword)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RelatedQueries fetches the top and rising related searches for one keyword.
func (c *HTTPClient) RelatedQueries(ctx context.Context, keyword string) ([]dataset.RelatedQuery, []dataset.RelatedQuery, error) {
	var top, rising []dataset.RelatedQuery
	err := c.withRetry(ctx, "related queries for "+keyword, func() error {
		w, err := c.exploreWidget(ctx, keyword, widgetRelatedQueries)
		if err != nil {
			return err
		}
		data, err := c.widgetData(ctx, "/trends/api/widgetdata/relatedsearches", w)
		if err != nil {
			return err
		}
		top, rising, err = parseRelated(data, keyword)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return top, rising, nil
}

// withRetry runs fn with exponential backoff and jitter. ErrNoData on the
// final attempt is returned as-is so callers can branch on it.
func (c *HTTPClient) withRetry(ctx context.Context, desc string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == c.maxAttempts {
			break
		}

		backoff := c.baseBackoff * (1 << attempt)
		backoff += time.Duration(rand.Int63n(int64(800 * time.Millisecond)))
		log.Printf("%s: attempt %d/%d failed (%v); retrying in %s", desc, attempt, c.maxAttempts, lastErr, backoff.Round(100*time.Millisecond))
		c.sleep(backoff)
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", desc, c.maxAttempts, lastErr)
}

// exploreWidget requests widget tokens for a keyword and returns the widget
// with the wanted ID.
func (c *HTTPClient) exploreWidget(ctx context.Context, keyword, widgetID string) (*widget, error) {
	req := map[string]any{
		"comparisonItem": []map[string]any{
			{"keyword": keyword, "geo": "", "time": c.timeframe},
		},
		"category": 0,
		"property": "",
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding explore request: %w", err)
	}

	params := url.Values{
		"hl":  {c.hl},
		"tz":  {strconv.Itoa(c.tz)},
		"req": {string(reqJSON)},
	}
	body, err := c.get(ctx, "/trends/api/explore", params)
	if err != nil {
		return nil, err
	}

	var resp exploreResponse
	if err := json.Unmarshal(stripXSSIPrefix(body), &resp); err != nil {
		return nil, fmt.Errorf("decoding explore response: %w", err)
	}

	for i := range resp.Widgets {
		if resp.Widgets[i].ID == widgetID {
			return &resp.Widgets[i], nil
		}
	}
	return nil, fmt.Errorf("explore response has no %s widget", widgetID)
}

// widgetData fetches one widget payload using its token.
func (c *HTTPClient) widgetData(ctx context.Context, path string, w *widget) ([]byte, error) {
	params := url.Values{
		"hl":    {c.hl},
		"tz":    {strconv.Itoa(c.tz)},
		"req":   {string(w.Request)},
		"token": {w.Token},
	}
	return c.get(ctx, path, params)
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "trendpulse/1.0 (dataset pipeline)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trends HTTP %d for %s", resp.StatusCode, path)
	}
	return io.ReadAll(resp.Body)
}

type exploreResponse struct {
	Widgets []widget `json:"widgets"`
}

type widget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

// stripXSSIPrefix cuts the `)]}'` guard Google prepends to API responses.
func stripXSSIPrefix(data []byte) []byte {
	for i, b := range data {
		if b == '{' {
			return data[i:]
		}
	}
	return data
}

// parseTimeline decodes a multiline widget payload into weekly points.
func parseTimeline(data []byte, keyword string) ([]dataset.Point, error) {
	var resp struct {
		Default struct {
			TimelineData []struct {
				Time    string `json:"time"`
				Value   []int  `json:"value"`
				HasData []bool `json:"hasData"`
			} `json:"timelineData"`
		} `json:"default"`
	}
	if err := json.Unmarshal(stripXSSIPrefix(data), &resp); err != nil {
		return nil, fmt.Errorf("decoding timeline: %w", err)
	}

	var points []dataset.Point
	for _, td := range resp.Default.TimelineData {
		if len(td.Value) == 0 {
			continue
		}
		secs, err := strconv.ParseInt(td.Time, 10, 64)
		if err != nil {
			continue
		}
		points = append(points, dataset.Point{
			Date:     time.Unix(secs, 0).UTC().Truncate(24 * time.Hour),
			Keyword:  keyword,
			Interest: td.Value[0],
		})
	}
	if len(points) == 0 {
		return nil, ErrNoData
	}
	return points, nil
}

// parseGeoMap decodes a comparedgeo widget payload into country rows.
// Countries without data are dropped.
func parseGeoMap(data []byte, keyword string) ([]dataset.CountryInterest, error) {
	var resp struct {
		Default struct {
			GeoMapData []struct {
				GeoName string `json:"geoName"`
				Value   []int  `json:"value"`
				HasData []bool `json:"hasData"`
			} `json:"geoMapData"`
		} `json:"default"`
	}
	if err := json.Unmarshal(stripXSSIPrefix(data), &resp); err != nil {
		return nil, fmt.Errorf("decoding geo map: %w", err)
	}

	var rows []dataset.CountryInterest
	for _, g := range resp.Default.GeoMapData {
		if g.GeoName == "" || len(g.Value) == 0 {
			continue
		}
		if len(g.HasData) > 0 && !g.HasData[0] {
			continue
		}
		rows = append(rows, dataset.CountryInterest{
			Country:  g.GeoName,
			Keyword:  keyword,
			Interest: g.Value[0],
		})
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return rows, nil
}

// parseRelated decodes a relatedsearches widget payload. The first ranked
// list is "top", the second "rising".
func parseRelated(data []byte, keyword string) (top, rising []dataset.RelatedQuery, err error) {
	var resp struct {
		Default struct {
			RankedList []struct {
				RankedKeyword []struct {
					Query string `json:"query"`
					Value int    `json:"value"`
				} `json:"rankedKeyword"`
			} `json:"rankedList"`
		} `json:"default"`
	}
	if err := json.Unmarshal(stripXSSIPrefix(data), &resp); err != nil {
		return nil, nil, fmt.Errorf("decoding related searches: %w", err)
	}

	lists := resp.Default.RankedList
	convert := func(i int) []dataset.RelatedQuery {
		if i >= len(lists) {
			return nil
		}
		var rows []dataset.RelatedQuery
		for _, rk := range lists[i].RankedKeyword {
			if rk.Query == "" {
				continue
			}
			rows = append(rows, dataset.RelatedQuery{Keyword: keyword, Query: rk.Query, Score: rk.Value})
		}
		return rows
	}

	top = convert(0)
	rising = convert(1)
	if len(top) == 0 && len(rising) == 0 {
		return nil, nil, ErrNoData
	}
	return top, rising, nil
}
