package claims

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/verisum/internal/model"
)

// Store persists verified claims, one per (url, text)
type Store struct {
	mu   sync.Mutex
	blob Blob
}

// NewStore creates a claim store over blob
func NewStore(blob Blob) *Store {
	return &Store{blob: blob}
}

// Put inserts or overwrites the claim for its (url, text)
func (s *Store) Put(claim model.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[claim.Key()] = claim
	return s.save(all)
}

// Get returns the claim stored for (url, text)
func (s *Store) Get(url, text string) (model.Claim, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return model.Claim{}, false, err
	}
	claim, ok := all[model.ClaimKey(url, text)]
	return claim, ok, nil
}

// List returns claims newest first, only those for url when it is non-empty
func (s *Store) List(url string) ([]model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]model.Claim, 0, len(all))
	for _, c := range all {
		if url != "" && c.URL != url {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Clear removes every stored claim
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(map[string]model.Claim{})
}

func (s *Store) load() (map[string]model.Claim, error) {
	data, err := s.blob.Load()
	if err != nil {
		return nil, err
	}

	all := make(map[string]model.Claim)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return all, nil
}

func (s *Store) save(all map[string]model.Claim) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}
	if err := s.blob.Save(data); err != nil {
		return fmt.Errorf("save claims: %w", err)
	}
	return nil
}
