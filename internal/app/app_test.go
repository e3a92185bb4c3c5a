package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/verisum/internal/model"
)

const pageHTML = `<html><head><title>Coffee Facts</title></head><body>
<h1>Coffee Facts</h1>
<p>Coffee was first cultivated in Yemen during the fifteenth century.</p>
<p>According to some blogs, coffee cures every known illness overnight.</p>
<h2>Brewing</h2>
<p>Espresso is brewed by forcing hot water through finely ground beans.</p>
</body></html>`

func testConfig(t *testing.T) model.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := model.DefaultConfig()
	cfg.Embedding.Provider = "hash"
	cfg.Cache.Driver = "memory"
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Claims.Path = filepath.Join(dir, "claims.json")
	cfg.Evidence.Encyclopedia = false
	cfg.Evidence.FactCheckAPIKey = ""
	cfg.Answer.APIKey = ""
	cfg.LLM.Provider = ""
	return cfg
}

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, pageHTML)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestApp_IndexURLAndRetrieve(t *testing.T) {
	server := pageServer(t)
	a := newTestApp(t)

	if _, err := a.Retrieve(context.Background(), "coffee"); !errors.Is(err, model.ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized before indexing, got %v", err)
	}

	pg, stats, err := a.IndexURL(context.Background(), server.URL+"/coffee", nil)
	if err != nil {
		t.Fatalf("IndexURL failed: %v", err)
	}
	if pg.Subject == "" {
		t.Error("Expected a page subject")
	}
	if stats.EntryCount != 3 {
		t.Errorf("Expected 3 indexed paragraphs, got %d", stats.EntryCount)
	}

	result, err := a.Retrieve(context.Background(), "Espresso is brewed by forcing hot water through finely ground beans.")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(result.Sources) == 0 || result.Sources[0].Content != "Espresso is brewed by forcing hot water through finely ground beans." {
		t.Errorf("Expected espresso paragraph first, got %+v", result.Sources)
	}
}

func TestApp_ClearCache(t *testing.T) {
	server := pageServer(t)
	cfg := testConfig(t)
	cfg.Cache.Driver = "disk"
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if _, _, err := a.IndexURL(context.Background(), server.URL+"/coffee", nil); err != nil {
		t.Fatalf("IndexURL failed: %v", err)
	}
	if a.CacheBytes() == 0 {
		t.Error("Expected memory tier to hold the built index")
	}

	if err := a.ClearCache(); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	if a.CacheBytes() != 0 {
		t.Errorf("Expected empty memory tier, got %d bytes", a.CacheBytes())
	}
	if _, err := os.Stat(filepath.Join(cfg.Cache.Dir, "documents")); !os.IsNotExist(err) {
		t.Errorf("Expected durable documents removed, got %v", err)
	}
	if _, err := a.Retrieve(context.Background(), "coffee"); !errors.Is(err, model.ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized after clear, got %v", err)
	}
}

func TestApp_VerifyListClear(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	claim, err := a.Verify(ctx, model.FlagRequest{
		Text: "Coffee cures every known illness",
		URL:  "https://www.theonion.com/coffee",
	})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claim.Evidence.Domain == nil || claim.Evidence.Domain.Category != model.DomainSatire {
		t.Errorf("Expected satire domain evidence, got %+v", claim.Evidence.Domain)
	}
	if claim.Evidence.Encyclopedia != nil || claim.Evidence.FactCheck != nil {
		t.Errorf("Expected disabled sources absent, got %+v", claim.Evidence)
	}

	list, err := a.ListClaims("https://www.theonion.com/coffee")
	if err != nil || len(list) != 1 || list[0].ID != claim.ID {
		t.Fatalf("Expected stored claim, got %+v, %v", list, err)
	}

	if _, err := a.Verify(ctx, model.FlagRequest{Text: "", URL: "https://example.com"}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty text, got %v", err)
	}

	if err := a.ClearAllClaims(); err != nil {
		t.Fatalf("ClearAllClaims failed: %v", err)
	}
	if list, _ := a.ListClaims(""); len(list) != 0 {
		t.Errorf("Expected no claims after clear, got %d", len(list))
	}
}

func TestApp_Scan(t *testing.T) {
	server := pageServer(t)
	a := newTestApp(t)

	report, err := a.Scan(context.Background(), server.URL+"/coffee")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if report.Candidates != 2 {
		t.Errorf("Expected 2 candidate sentences, got %d", report.Candidates)
	}
	if len(report.Claims) != report.Candidates || len(report.Errors) != 0 {
		t.Errorf("Expected every candidate verified, got %d claims, errors %v", len(report.Claims), report.Errors)
	}
	total := 0
	for _, n := range report.Verdicts {
		total += n
	}
	if total != len(report.Claims) {
		t.Errorf("Expected verdict tally to match claims, got %v", report.Verdicts)
	}
	if report.Stats.EntryCount != 3 {
		t.Errorf("Expected scan to index the page, got %+v", report.Stats)
	}
}

func TestApp_AskDisabled(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.Ask(context.Background(), "t", "q"); !errors.Is(err, ErrAnswerDisabled) {
		t.Errorf("Expected ErrAnswerDisabled, got %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = "redis"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("Expected error for unknown cache driver")
	}
}

func TestNew_BadgerDrivers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = "badger"
	cfg.Claims.Driver = "badger"

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	if _, err := a.Verify(context.Background(), model.FlagRequest{Text: "x is y", URL: "https://example.com"}); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if list, _ := a.ListClaims(""); len(list) != 1 {
		t.Errorf("Expected 1 claim in badger store, got %d", len(list))
	}
}
