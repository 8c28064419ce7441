package integration

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/footfall-labs/footfall/internal/adapter/api"
	"github.com/footfall-labs/footfall/internal/adapter/clientip"
	"github.com/footfall-labs/footfall/internal/adapter/metrics"
	filerepo "github.com/footfall-labs/footfall/internal/adapter/repository/file"
	"github.com/footfall-labs/footfall/internal/domain"
	"github.com/footfall-labs/footfall/internal/pkg/config"
	"github.com/footfall-labs/footfall/internal/usecase"
	"github.com/footfall-labs/footfall/pkg/trafficwatch"
)

var testMetrics = metrics.NewTrafficMetrics()

// setupServer wires the whole serving stack over the file store, the
// way cmd/server does, and returns a test server plus the store for
// direct inspection.
func setupServer(t *testing.T) (*httptest.Server, *filerepo.TrafficStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := filerepo.NewTrafficStore(
		filepath.Join(t.TempDir(), "traffic.json"),
		logger, testMetrics,
		filerepo.Options{DetailCap: 1000, DetailTTL: 45 * time.Minute, CounterTTL: 15 * time.Minute},
	)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	cfg := &config.Config{DemoUser: "demo", DemoPass: "demo123", QueryMaxLimit: 500}
	resolver := clientip.NewResolver("CF-Connecting-IP", "X-Real-IP", 0)
	recorder := usecase.NewRecorder(store, resolver, testMetrics, logger, usecase.RecorderOptions{
		BotHeader:           "X-Is-Bot",
		HeaderSnapshotLimit: 8,
		Timeout:             time.Second,
	})
	queries := usecase.NewQueryService(store, testMetrics, logger, cfg.QueryMaxLimit)

	server := httptest.NewServer(api.NewRouter(cfg, logger, recorder, queries))
	t.Cleanup(server.Close)
	return server, store
}

func postJSON(t *testing.T, client *http.Client, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	return resp
}

func getJSON(t *testing.T, client *http.Client, url string, out any) int {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestTrafficFlow(t *testing.T) {
	server, _ := setupServer(t)
	client := server.Client()

	// One failed login from a bot, one good login, one checkout.
	resp := postJSON(t, client, server.URL+"/api/auth/login",
		`{"username": "demo", "password": "wrong"}`,
		map[string]string{"X-Is-Bot": "true", "CF-Connecting-IP": "203.0.113.9"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, client, server.URL+"/api/auth/login",
		`{"username": "demo", "password": "demo123"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("good login status = %d, want 200", resp.StatusCode)
	}

	resp = postJSON(t, client, server.URL+"/api/checkout",
		`{"items": [{"productId": "p-1", "quantity": 1}]}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("checkout status = %d, want 200", resp.StatusCode)
	}

	t.Run("full query sees every recorded event", func(t *testing.T) {
		var events []domain.TrafficEvent
		if code := getJSON(t, client, server.URL+"/api/traffic", &events); code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		if len(events) != 3 {
			t.Fatalf("expected 3 recorded events, got %d", len(events))
		}
		// Newest first: checkout, good login, bad login.
		if events[0].Endpoint != domain.EndpointCheckout {
			t.Errorf("newest event endpoint = %s, want checkout", events[0].Endpoint)
		}
		if events[2].StatusCode != http.StatusUnauthorized {
			t.Errorf("oldest event status = %d, want the handler's 401", events[2].StatusCode)
		}
		if events[2].IP != "203.0.113.9" {
			t.Errorf("oldest event ip = %s, want the edge header value", events[2].IP)
		}
	})

	t.Run("bot filter", func(t *testing.T) {
		var events []domain.TrafficEvent
		if code := getJSON(t, client, server.URL+"/api/traffic?isBot=true", &events); code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		if len(events) != 1 || !events[0].IsBot {
			t.Fatalf("expected exactly the bot event, got %d", len(events))
		}
	})

	t.Run("incremental polling sees each event exactly once", func(t *testing.T) {
		var first struct {
			Logs            []domain.TrafficEvent `json:"logs"`
			LatestTimestamp int64                 `json:"latestTimestamp"`
		}
		if code := getJSON(t, client, server.URL+"/api/traffic/incremental", &first); code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		if len(first.Logs) != 3 {
			t.Fatalf("expected 3 logs on first poll, got %d", len(first.Logs))
		}

		// Nothing new: empty logs, stable cursor.
		var second struct {
			Logs            []domain.TrafficEvent `json:"logs"`
			LatestTimestamp int64                 `json:"latestTimestamp"`
		}
		url := server.URL + "/api/traffic/incremental?since=" + strconv.FormatInt(first.LatestTimestamp, 10)
		if code := getJSON(t, client, url, &second); code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		if len(second.Logs) != 0 {
			t.Fatalf("expected no new logs, got %d", len(second.Logs))
		}
		if second.LatestTimestamp != first.LatestTimestamp {
			t.Errorf("cursor drifted: %d -> %d", first.LatestTimestamp, second.LatestTimestamp)
		}

		// A new event shows up on the next poll, and only that one.
		// The cursor bound is millisecond-exclusive, so step past the
		// cursor's millisecond before recording it.
		time.Sleep(5 * time.Millisecond)
		postJSON(t, client, server.URL+"/api/checkout", `{"items": [{"productId": "p-2", "quantity": 1}]}`, nil)
		var third struct {
			Logs            []domain.TrafficEvent `json:"logs"`
			LatestTimestamp int64                 `json:"latestTimestamp"`
		}
		if code := getJSON(t, client, url, &third); code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		if len(third.Logs) != 1 || third.Logs[0].Endpoint != domain.EndpointCheckout {
			t.Fatalf("expected exactly the new checkout event, got %d logs", len(third.Logs))
		}
	})

	t.Run("series totals match the recorded tracked events", func(t *testing.T) {
		var series []domain.SeriesPoint
		if code := getJSON(t, client, server.URL+"/api/traffic/series?windowMinutes=5&intervalSeconds=10", &series); code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		var logins, checkouts int64
		for _, point := range series {
			logins += point.LoginCount
			checkouts += point.CheckoutCount
		}
		if logins != 2 {
			t.Errorf("login total = %d, want 2", logins)
		}
		if checkouts != 2 {
			t.Errorf("checkout total = %d, want 2", checkouts)
		}
	})

	t.Run("snapshot splits by endpoint", func(t *testing.T) {
		var snapshot struct {
			Login    []domain.TrafficEvent `json:"login"`
			Checkout []domain.TrafficEvent `json:"checkout"`
			Recent   []domain.TrafficEvent `json:"recent"`
			Series   []domain.SeriesPoint  `json:"series"`
		}
		if code := getJSON(t, client, server.URL+"/api/traffic/snapshot", &snapshot); code != http.StatusOK {
			t.Fatalf("status = %d, want 200", code)
		}
		if len(snapshot.Login) != 2 || len(snapshot.Checkout) != 2 || len(snapshot.Recent) != 4 {
			t.Fatalf("unexpected snapshot split: login=%d checkout=%d recent=%d",
				len(snapshot.Login), len(snapshot.Checkout), len(snapshot.Recent))
		}
	})

	t.Run("invalid parameters get a 400", func(t *testing.T) {
		var body map[string]string
		if code := getJSON(t, client, server.URL+"/api/traffic?limit=nope", &body); code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", code)
		}
	})

	t.Run("public client decodes the server's wire shapes", func(t *testing.T) {
		tw := trafficwatch.NewClient(server.URL, client)
		ctx := context.Background()

		result, err := tw.FetchIncremental(ctx, 0, 10)
		if err != nil {
			t.Fatalf("incremental fetch failed: %v", err)
		}
		if len(result.Logs) != 4 || result.LatestTimestamp == 0 {
			t.Fatalf("expected 4 logs and a cursor, got %d logs cursor=%d", len(result.Logs), result.LatestTimestamp)
		}
		if result.Logs[0].ID == "" || result.Logs[0].Endpoint == "" || result.Logs[0].Timestamp == 0 {
			t.Errorf("event fields did not survive the round trip: %+v", result.Logs[0])
		}

		series, err := tw.FetchSeries(ctx, 5, 10)
		if err != nil {
			t.Fatalf("series fetch failed: %v", err)
		}
		var logins int64
		for _, point := range series {
			logins += point.LoginCount
		}
		if logins != 2 {
			t.Errorf("login total through the client = %d, want 2", logins)
		}
	})
}
