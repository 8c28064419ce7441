package trafficwatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// Client fetches from the traffic query API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL. A nil httpClient
// gets a default with a sane timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// FetchIncremental fetches events newer than since. A since of zero
// means "no cursor yet"; the response always carries a usable next
// cursor.
func (c *Client) FetchIncremental(ctx context.Context, since int64, limit int) (IncrementalResult, error) {
	var result IncrementalResult

	params := url.Values{}
	if since > 0 {
		params.Set("since", strconv.FormatInt(since, 10))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	if err := c.getJSON(ctx, "/api/traffic/incremental", params, &result); err != nil {
		return result, err
	}
	return result, nil
}

// FetchSeries fetches the bucketed counter series for the chart.
func (c *Client) FetchSeries(ctx context.Context, windowMinutes, intervalSeconds int) ([]SeriesPoint, error) {
	params := url.Values{}
	params.Set("windowMinutes", strconv.Itoa(windowMinutes))
	params.Set("intervalSeconds", strconv.Itoa(intervalSeconds))

	var series []SeriesPoint
	if err := c.getJSON(ctx, "/api/traffic/series", params, &series); err != nil {
		return nil, err
	}
	return series, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
