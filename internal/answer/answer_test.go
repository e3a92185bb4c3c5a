package answer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/verisum/internal/model"
)

type fakeRetriever struct {
	result model.RetrievalResult
	err    error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) (model.RetrievalResult, error) {
	return f.result, f.err
}

func streamServer(t *testing.T, deltas []string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			_, _ = fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"model\":\"gpt-4o-mini\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server
}

var retrieved = model.RetrievalResult{
	Sources: []model.Source{
		{ID: "p1", Content: "Solar cells were first demonstrated in 1954."},
		{ID: "p2", Content: "Early panels converted six percent of sunlight."},
	},
	DocumentParts: []string{
		"Solar cells were first demonstrated in 1954.",
		"Early panels converted six percent of sunlight.",
	},
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt([]string{"alpha", "beta"}, "Solar Power", "When?")

	for _, want := range []string{
		`about the website "Solar Power"`,
		"DOCUMENT:\n[1] alpha\n\n[2] beta\n\nQUESTION:\nWhen?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q, got:\n%s", want, prompt)
		}
	}
}

func TestExtractCitedSources(t *testing.T) {
	sources := []model.Source{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	got := ExtractCitedSources("Fact [3]. Other [1]. Again [3]. Bogus [0] [9].", sources)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Expected [a c], got %+v", got)
	}

	if got := ExtractCitedSources("no citations", sources); len(got) != 0 {
		t.Errorf("Expected no sources, got %+v", got)
	}
}

func TestAnswerer_Ask_Streams(t *testing.T) {
	server := streamServer(t, []string{"Solar cells", " date to 1954", " [1]."})
	a, err := NewAnswerer(&fakeRetriever{result: retrieved}, Config{APIKey: "k", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("NewAnswerer failed: %v", err)
	}

	var snapshots []Snapshot
	for s := range a.Ask(context.Background(), "Solar Power", "When were solar cells invented?") {
		snapshots = append(snapshots, s)
	}

	if len(snapshots) != 4 {
		t.Fatalf("Expected 3 partial snapshots and 1 final, got %d", len(snapshots))
	}
	if snapshots[0].Answer != "Solar cells" || snapshots[0].Done {
		t.Errorf("Unexpected first snapshot: %+v", snapshots[0])
	}
	if len(snapshots[1].Sources) != 0 {
		t.Errorf("Expected no cited sources before the citation arrives, got %+v", snapshots[1].Sources)
	}

	final := snapshots[3]
	if !final.Done || final.Err != nil {
		t.Fatalf("Expected successful final snapshot, got %+v", final)
	}
	if final.Answer != "Solar cells date to 1954 [1]." {
		t.Errorf("Unexpected answer: %q", final.Answer)
	}
	if len(final.Sources) != 1 || final.Sources[0].ID != "p1" {
		t.Errorf("Expected source p1 cited, got %+v", final.Sources)
	}
	if !strings.Contains(final.Prompt, "[2] Early panels") {
		t.Errorf("Expected numbered passages in prompt")
	}

	if h := a.History(); len(h) != 1 || h[0] != "When were solar cells invented?" {
		t.Errorf("Unexpected history: %v", h)
	}
}

func TestAnswerer_Ask_RetrievalError(t *testing.T) {
	a, _ := NewAnswerer(&fakeRetriever{err: model.ErrNotInitialized}, Config{APIKey: "k"}, nil)

	final, err := Final(a.Ask(context.Background(), "t", "question"))
	if !errors.Is(err, model.ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if !final.Done || final.Error == "" {
		t.Errorf("Expected terminal error snapshot, got %+v", final)
	}
}

func TestAnswerer_Ask_EmptyQuestion(t *testing.T) {
	a, _ := NewAnswerer(&fakeRetriever{result: retrieved}, Config{APIKey: "k"}, nil)
	if _, err := Final(a.Ask(context.Background(), "t", "  ")); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestAnswerer_Ask_Cancelled(t *testing.T) {
	server := streamServer(t, []string{"a", "b", "c"})
	a, _ := NewAnswerer(&fakeRetriever{result: retrieved}, Config{APIKey: "k", BaseURL: server.URL}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := a.Ask(ctx, "t", "q")
	first, ok := <-ch
	if !ok || first.Done {
		t.Fatalf("Expected a partial snapshot, got %+v", first)
	}
	cancel()

	for s := range ch {
		if s.Done {
			t.Errorf("Expected no terminal snapshot after cancel, got %+v", s)
		}
	}
}

func TestAnswerer_History_Bounded(t *testing.T) {
	a, _ := NewAnswerer(&fakeRetriever{err: model.ErrNotInitialized}, Config{APIKey: "k", History: 3}, nil)
	for i := 0; i < 5; i++ {
		_, _ = Final(a.Ask(context.Background(), "t", fmt.Sprintf("q%d", i)))
	}
	h := a.History()
	if len(h) != 3 || h[0] != "q2" || h[2] != "q4" {
		t.Errorf("Expected last 3 questions, got %v", h)
	}
}

func TestNewAnswerer_RequiresKey(t *testing.T) {
	if _, err := NewAnswerer(&fakeRetriever{}, Config{}, nil); err == nil {
		t.Error("Expected error without API key")
	}
}
