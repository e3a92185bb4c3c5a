package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ppiankov/verisum/internal/answer"
	"github.com/ppiankov/verisum/internal/app"
	"github.com/ppiankov/verisum/internal/model"
)

const espresso = "Espresso is brewed by forcing hot water through finely ground beans."

var parts = []model.Part{
	{ID: "h", Content: "Coffee", TagName: "h1", SectionID: "s1"},
	{ID: "p1", Content: "Coffee was first cultivated in Yemen during the fifteenth century.", TagName: "p", SectionID: "s1"},
	{ID: "p2", Content: espresso, TagName: "p", SectionID: "s1"},
}

func chatServer(t *testing.T, deltas ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			_, _ = fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"model\":\"gpt-4o-mini\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestServer(t *testing.T, chatURL string) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	cfg := model.DefaultConfig()
	cfg.Embedding.Provider = "hash"
	cfg.Cache.Driver = "memory"
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Claims.Path = filepath.Join(dir, "claims.json")
	cfg.Evidence.Encyclopedia = false
	cfg.Evidence.FactCheckAPIKey = ""
	cfg.LLM.Provider = ""
	cfg.Answer.APIKey = ""
	if chatURL != "" {
		cfg.Answer.APIKey = "test-key"
		cfg.Answer.BaseURL = chatURL
	}

	a, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	server := httptest.NewServer(NewServer(a, nil))
	t.Cleanup(server.Close)
	return server
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestServer_IndexAndRetrieve(t *testing.T) {
	server := newTestServer(t, "")

	resp := do(t, http.MethodPost, server.URL+"/v1/retrieve", QueryRequest{Query: espresso})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 before indexing, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, server.URL+"/v1/documents", IndexRequest{URL: "https://example.com/coffee", Parts: parts})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from index, got %d", resp.StatusCode)
	}
	indexed := decode[IndexResponse](t, resp)
	if indexed.Stats.EntryCount != 2 {
		t.Errorf("Expected 2 entries, got %d", indexed.Stats.EntryCount)
	}

	resp = do(t, http.MethodPost, server.URL+"/v1/retrieve", QueryRequest{Query: espresso})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from retrieve, got %d", resp.StatusCode)
	}
	result := decode[model.RetrievalResult](t, resp)
	if len(result.Sources) == 0 || result.Sources[0].ID != "p2" {
		t.Errorf("Expected p2 first, got %+v", result.Sources)
	}

	resp = do(t, http.MethodPost, server.URL+"/v1/retrieve", QueryRequest{Query: "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for blank query, got %d", resp.StatusCode)
	}
}

func TestServer_ClearCache(t *testing.T) {
	server := newTestServer(t, "")

	resp := do(t, http.MethodPost, server.URL+"/v1/documents", IndexRequest{URL: "https://example.com/coffee", Parts: parts})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from index, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodDelete, server.URL+"/v1/cache", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204 from cache clear, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, server.URL+"/v1/retrieve", QueryRequest{Query: espresso})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 after clearing the cache, got %d", resp.StatusCode)
	}
}

func TestServer_IndexRequiresURL(t *testing.T) {
	server := newTestServer(t, "")

	resp := do(t, http.MethodPost, server.URL+"/v1/documents", IndexRequest{Parts: parts})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/v1/documents", strings.NewReader("{not json"))
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", raw.StatusCode)
	}
	if e := decode[ErrorResponse](t, raw); e.Code != "bad_request" {
		t.Errorf("Expected bad_request code, got %q", e.Code)
	}
}

func TestServer_Claims(t *testing.T) {
	server := newTestServer(t, "")
	pageURL := "https://www.theonion.com/coffee"

	resp := do(t, http.MethodPost, server.URL+"/v1/claims", model.FlagRequest{
		Text:   "Coffee cures every known illness",
		URL:    pageURL,
		Reason: "sounds wrong",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	claim := decode[model.Claim](t, resp)
	if claim.UserReason != "sounds wrong" {
		t.Errorf("Expected user reason kept, got %q", claim.UserReason)
	}
	if claim.Verdict == "" {
		t.Error("Expected a verdict")
	}

	resp = do(t, http.MethodPost, server.URL+"/v1/claims", model.FlagRequest{Text: "x", URL: "not a url"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid url, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, server.URL+"/v1/claims?url="+pageURL, nil)
	if list := decode[[]model.Claim](t, resp); len(list) != 1 || list[0].ID != claim.ID {
		t.Errorf("Expected the flagged claim, got %+v", list)
	}

	resp = do(t, http.MethodDelete, server.URL+"/v1/claims", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, server.URL+"/v1/claims", nil)
	if list := decode[[]model.Claim](t, resp); len(list) != 0 {
		t.Errorf("Expected empty list after clear, got %d", len(list))
	}
}

func TestServer_AskDisabled(t *testing.T) {
	server := newTestServer(t, "")

	resp := do(t, http.MethodPost, server.URL+"/v1/ask", QueryRequest{Query: "why?"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, server.URL+"/v1/ask?q=why", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before upgrade, got %d", resp.StatusCode)
	}
}

func TestServer_Ask(t *testing.T) {
	chat := chatServer(t, "Hot water ", "under pressure [1].")
	server := newTestServer(t, chat.URL)

	do(t, http.MethodPost, server.URL+"/v1/documents", IndexRequest{URL: "https://example.com/coffee", Parts: parts})

	resp := do(t, http.MethodPost, server.URL+"/v1/ask", QueryRequest{Query: espresso, Title: "Coffee"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	snap := decode[answer.Snapshot](t, resp)
	if snap.Answer != "Hot water under pressure [1]." || !snap.Done {
		t.Errorf("Unexpected final snapshot %+v", snap)
	}
	if len(snap.Sources) != 1 || snap.Sources[0].ID != "p2" {
		t.Errorf("Expected cited source p2, got %+v", snap.Sources)
	}

	resp = do(t, http.MethodPost, server.URL+"/v1/ask", QueryRequest{Query: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty question, got %d", resp.StatusCode)
	}
}

func TestServer_AskStream(t *testing.T) {
	chat := chatServer(t, "Hot water ", "under pressure [1].")
	server := newTestServer(t, chat.URL)

	do(t, http.MethodPost, server.URL+"/v1/documents", IndexRequest{URL: "https://example.com/coffee", Parts: parts})

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ask?title=Coffee&q=" + strings.ReplaceAll(espresso, " ", "+")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snaps []answer.Snapshot
	for {
		var snap answer.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			break
		}
		snaps = append(snaps, snap)
	}

	if len(snaps) < 2 {
		t.Fatalf("Expected several snapshots, got %d", len(snaps))
	}
	last := snaps[len(snaps)-1]
	if !last.Done || last.Answer != "Hot water under pressure [1]." {
		t.Errorf("Unexpected last snapshot %+v", last)
	}
	for _, s := range snaps[:len(snaps)-1] {
		if s.Done {
			t.Error("Expected only the last snapshot to be done")
		}
	}
}

func TestServer_Scan(t *testing.T) {
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, "<html><body><h1>Coffee</h1><p>%s</p><p>According to some blogs, coffee cures every known illness overnight.</p></body></html>", espresso)
	}))
	defer pages.Close()
	server := newTestServer(t, "")

	resp := do(t, http.MethodPost, server.URL+"/v1/scan", ScanRequest{URL: pages.URL + "/coffee"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	report := decode[model.ScanReport](t, resp)
	if report.Candidates != 1 || len(report.Claims) != 1 {
		t.Errorf("Expected one checked sentence, got %d candidates, %d claims", report.Candidates, len(report.Claims))
	}

	resp = do(t, http.MethodPost, server.URL+"/v1/scan", ScanRequest{URL: pages.URL + "/private/page"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 for disallowed page, got %d", resp.StatusCode)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	server := newTestServer(t, "")

	resp := do(t, http.MethodGet, server.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from healthz, got %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", health["status"])
	}
	if _, ok := health["cache_bytes"]; !ok {
		t.Error("Expected cache_bytes in health response")
	}

	resp = do(t, http.MethodGet, server.URL+"/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from metrics, got %d", resp.StatusCode)
	}
}
