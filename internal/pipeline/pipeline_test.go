package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/verisum/internal/evidence"
	"github.com/ppiankov/verisum/internal/model"
)

type fakeDomain struct {
	category model.DomainCategory
}

func (f fakeDomain) Classify(rawURL string) model.DomainResult {
	return model.DomainResult{Domain: rawURL, Category: f.category, Score: f.category.Score()}
}

type fakeEncyclopedia struct {
	result *model.EncyclopediaResult
	err    error
	wait   func()
	panics bool
}

func (f *fakeEncyclopedia) Check(ctx context.Context, claim string) (*model.EncyclopediaResult, error) {
	if f.wait != nil {
		f.wait()
	}
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

type fakeFactCheck struct {
	result *model.FactCheckResult
	err    error
	wait   func()
}

func (f *fakeFactCheck) Enabled() bool { return true }

func (f *fakeFactCheck) Check(ctx context.Context, claim string) (*model.FactCheckResult, error) {
	if f.wait != nil {
		f.wait()
	}
	return f.result, f.err
}

type fakeAnalyzer struct {
	result *model.AnalysisResult
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req model.FlagRequest) (*model.AnalysisResult, error) {
	return f.result, nil
}

type memStore struct {
	mu     sync.Mutex
	claims []model.Claim
}

func (s *memStore) Put(c model.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims = append(s.claims, c)
	return nil
}

func flag() model.FlagRequest {
	return model.FlagRequest{
		Text:   "The Eiffel Tower was built in 1999",
		URL:    "https://example.com/article",
		Reason: "wrong date",
	}
}

func TestRun_RejectsInvalidRequest(t *testing.T) {
	p := NewPipeline(Options{Domain: fakeDomain{model.DomainReliable}})

	tests := map[string]model.FlagRequest{
		"empty text": {Text: "  ", URL: "https://example.com"},
		"empty url":  {Text: "claim"},
		"bad url":    {Text: "claim", URL: "not a url"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := p.Run(context.Background(), req); !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRun_NoSources(t *testing.T) {
	p := NewPipeline(Options{})
	bundle, err := p.Run(context.Background(), flag())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if bundle.PresentCount() != 0 {
		t.Errorf("Expected empty bundle, got %d sources", bundle.PresentCount())
	}

	claim := p.CreateClaim(flag(), bundle)
	if claim.Confidence != 50 || claim.Verdict != model.VerdictUnverified {
		t.Errorf("Expected 50/UNVERIFIED, got %d/%s", claim.Confidence, claim.Verdict)
	}
}

func TestRun_SourcesRunConcurrently(t *testing.T) {
	// Each source blocks until the other has started
	var started sync.WaitGroup
	started.Add(2)
	rendezvous := func() {
		started.Done()
		done := make(chan struct{})
		go func() { started.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Sources did not run concurrently")
		}
	}

	p := NewPipeline(Options{
		Encyclopedia: &fakeEncyclopedia{result: &model.EncyclopediaResult{Consistent: true}, wait: rendezvous},
		FactCheck:    &fakeFactCheck{result: &model.FactCheckResult{Found: true, Rating: "True"}, wait: rendezvous},
	})

	bundle, err := p.Run(context.Background(), flag())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if bundle.Encyclopedia == nil || bundle.FactCheck == nil {
		t.Errorf("Expected both sources present, got %+v", bundle)
	}
}

func TestRun_FailingSourcesAreAbsent(t *testing.T) {
	p := NewPipeline(Options{
		Domain:       fakeDomain{model.DomainUnreliable},
		Encyclopedia: &fakeEncyclopedia{panics: true},
		FactCheck:    &fakeFactCheck{err: errors.New("network down")},
	})

	bundle, err := p.Run(context.Background(), flag())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if bundle.Encyclopedia != nil || bundle.FactCheck != nil {
		t.Errorf("Expected failed sources absent, got %+v", bundle)
	}
	if bundle.Domain == nil || bundle.Domain.Category != model.DomainUnreliable {
		t.Errorf("Expected domain result present, got %+v", bundle.Domain)
	}

	claim := p.CreateClaim(flag(), bundle)
	if claim.Confidence != 70 || claim.Verdict != model.VerdictFalse {
		t.Errorf("Expected 70/FALSE from domain alone, got %d/%s", claim.Confidence, claim.Verdict)
	}
}

func TestCreateClaim_Fields(t *testing.T) {
	p := NewPipeline(Options{})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	req := flag()
	req.ElementID = "p7"
	req.Context = "surrounding paragraph"
	bundle := model.EvidenceBundle{FactCheck: &model.FactCheckResult{Found: true, Rating: "False"}}

	claim := p.CreateClaim(req, bundle)
	if !strings.HasPrefix(claim.ID, "flag-") {
		t.Errorf("Expected flag- id prefix, got %s", claim.ID)
	}
	if claim.Verdict != model.VerdictFalse || claim.Confidence != 95 {
		t.Errorf("Expected 95/FALSE, got %d/%s", claim.Confidence, claim.Verdict)
	}
	if claim.UserReason != "wrong date" {
		t.Errorf("Expected user reason kept, got %q", claim.UserReason)
	}
	if claim.ElementID != "p7" || claim.Context != "surrounding paragraph" || !claim.Timestamp.Equal(fixed) {
		t.Errorf("Request fields not carried over: %+v", claim)
	}

	other := p.CreateClaim(req, bundle)
	if other.ID == claim.ID {
		t.Error("Expected unique claim ids")
	}
}

func TestVerify_StoresClaim(t *testing.T) {
	store := &memStore{}
	p := NewPipeline(Options{
		Domain:   fakeDomain{model.DomainSatire},
		Analyzer: &fakeAnalyzer{result: &model.AnalysisResult{Verdict: model.VerdictTrue, Confidence: 20}},
		Store:    store,
	})

	claim, err := p.Verify(context.Background(), flag())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claim.Verdict != model.VerdictMisleading {
		t.Errorf("Expected satire to give MISLEADING, got %s", claim.Verdict)
	}
	if claim.Confidence != 35 {
		t.Errorf("Expected (50+20)/2 = 35, got %d", claim.Confidence)
	}
	if len(store.claims) != 1 || store.claims[0].ID != claim.ID {
		t.Errorf("Expected claim stored, got %+v", store.claims)
	}
}

func TestVerify_CancelledStoresNothing(t *testing.T) {
	store := &memStore{}
	ctx, cancel := context.WithCancel(context.Background())

	p := NewPipeline(Options{
		Encyclopedia: &fakeEncyclopedia{
			result: &model.EncyclopediaResult{},
			wait:   cancel,
		},
		Store: store,
	})

	if _, err := p.Verify(ctx, flag()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(store.claims) != 0 {
		t.Errorf("Expected nothing stored, got %d claims", len(store.claims))
	}
}

type prefixFilter struct {
	keep  string
	calls int
}

func (f *prefixFilter) Filter(ctx context.Context, urls []string) []string {
	f.calls++
	var kept []string
	for _, u := range urls {
		if strings.HasPrefix(u, f.keep) {
			kept = append(kept, u)
		}
	}
	return kept
}

func TestRun_FiltersSuggestedSources(t *testing.T) {
	links := &prefixFilter{keep: "https://www.nasa.gov"}
	p := NewPipeline(Options{
		Analyzer: &fakeAnalyzer{result: &model.AnalysisResult{
			SuggestedSources: []string{"https://www.nasa.gov/moon", "https://theonion.com/moon"},
		}},
		Links: links,
	})

	bundle, err := p.Run(context.Background(), flag())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if bundle.Analysis == nil {
		t.Fatal("Expected analysis in bundle")
	}
	if got := bundle.Analysis.SuggestedSources; len(got) != 1 || got[0] != "https://www.nasa.gov/moon" {
		t.Errorf("Expected only the nasa link, got %v", got)
	}

	// No suggestions, no link checks
	p = NewPipeline(Options{Analyzer: &fakeAnalyzer{result: &model.AnalysisResult{}}, Links: links})
	if _, err := p.Run(context.Background(), flag()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if links.calls != 1 {
		t.Errorf("Expected 1 filter call, got %d", links.calls)
	}
}

func TestVerify_UnreliableDomainOnly(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	client := evidence.NewClient(&http.Client{Timeout: 2 * time.Second}, nil, "verisum-test", nil)

	tests := []struct {
		name         string
		url          string
		encyclopedia EncyclopediaSource
	}{
		{"unreachable encyclopedia", "https://www.infowars.com/posts/flat", evidence.NewWikipedia(client, deadURL, nil)},
		{"encyclopedia disabled", "https://naturalnews.com/2024-01-01-earth.html", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			p := NewPipeline(Options{
				Domain:       evidence.NewDomainClassifier(nil),
				Encyclopedia: tt.encyclopedia,
				FactCheck:    evidence.NewFactChecker(client, "", ""),
				Store:        store,
			})

			start := time.Now()
			claim, err := p.Verify(context.Background(), model.FlagRequest{Text: "The Earth is flat", URL: tt.url})
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if claim.Verdict != model.VerdictFalse && claim.Verdict != model.VerdictMisleading {
				t.Errorf("Expected FALSE or MISLEADING, got %s", claim.Verdict)
			}
			if claim.Confidence < 60 {
				t.Errorf("Expected confidence >= 60, got %d", claim.Confidence)
			}
			if claim.Evidence.Domain == nil || claim.Evidence.Domain.Category != model.DomainUnreliable {
				t.Errorf("Expected unreliable domain evidence, got %+v", claim.Evidence.Domain)
			}
			if claim.Evidence.FactCheck != nil || claim.Evidence.Encyclopedia != nil {
				t.Errorf("Expected fact check and encyclopedia absent, got %+v", claim.Evidence)
			}
			if len(store.claims) != 1 {
				t.Errorf("Expected claim stored, got %d", len(store.claims))
			}
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Errorf("Expected dead encyclopedia to fail fast, took %v", elapsed)
			}
		})
	}
}
