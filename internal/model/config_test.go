package model

import (
	"testing"
	"time"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to validate, got %v", err)
	}
	if cfg.Cache.DocumentTTL != time.Hour {
		t.Errorf("Expected document TTL 1h, got %v", cfg.Cache.DocumentTTL)
	}
	if cfg.Cache.QueryTTL != 30*time.Minute {
		t.Errorf("Expected query TTL 30m, got %v", cfg.Cache.QueryTTL)
	}
	if cfg.Cache.MaxDurableBytes != 5*1024*1024 {
		t.Errorf("Expected 5MB durable ceiling, got %d", cfg.Cache.MaxDurableBytes)
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Index.ChunkSize != 50 {
		t.Errorf("Expected chunk size 50, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Index.SearchK != 7 || cfg.Index.MinScore != 0.5 {
		t.Errorf("Expected search k=7 minScore=0.5, got k=%d minScore=%v", cfg.Index.SearchK, cfg.Index.MinScore)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaulted config to validate, got %v", err)
	}
}

func TestConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown cache driver", func(c *Config) { c.Cache.Driver = "redis" }},
		{"unknown claims driver", func(c *Config) { c.Claims.Driver = "sql" }},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "bard" }},
		{"min score out of range", func(c *Config) { c.Index.MinScore = 1.5 }},
		{"min score zero", func(c *Config) { c.Index.MinScore = 0 }},
		{"min score negative", func(c *Config) { c.Index.MinScore = -0.2 }},
		{"host rate without host", func(c *Config) {
			c.Evidence.HostRates = []HostRate{{RequestsPerSecond: 1}}
		}},
		{"host rate not positive", func(c *Config) {
			c.Evidence.HostRates = []HostRate{{Host: "en.wikipedia.org"}}
		}},
		{"unknown domain category", func(c *Config) {
			c.Evidence.ExtraDomains = map[string][]string{"trusted": {"example.com"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestConfig_Validate_HostRates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Evidence.HostRates = []HostRate{
		{Host: "en.wikipedia.org", RequestsPerSecond: 1},
		{Host: "factchecktools.googleapis.com", RequestsPerSecond: 0.5, Burst: 2},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected host rates to validate, got %v", err)
	}
}

func TestParseVerdict(t *testing.T) {
	tests := map[string]Verdict{
		"FALSE":      VerdictFalse,
		"true":       VerdictTrue,
		"Misleading": VerdictMisleading,
		"UNVERIFIED": VerdictUnverified,
		"maybe":      VerdictUnverified,
		"":           VerdictUnverified,
	}
	for in, want := range tests {
		if got := ParseVerdict(in); got != want {
			t.Errorf("ParseVerdict(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestEntriesFromParts_OnlyParagraphs(t *testing.T) {
	parts := []Part{
		{ID: "1", Content: "Title", TagName: "h1"},
		{ID: "2", Content: "Body text", TagName: "p"},
		{ID: "3", Content: "Item", TagName: "li"},
	}
	entries := EntriesFromParts(parts)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Metadata.ID != "2" {
		t.Errorf("Expected paragraph part 2, got %s", entries[0].Metadata.ID)
	}
}

func TestConfig_ApplyDefaults_MinScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.MinScore = 0
	cfg.ApplyDefaults()
	if cfg.Index.MinScore != 0.5 {
		t.Errorf("Expected unset min score to default to 0.5, got %v", cfg.Index.MinScore)
	}

	cfg.Index.MinScore = -0.2
	cfg.ApplyDefaults()
	if cfg.Index.MinScore != -0.2 {
		t.Errorf("Expected negative min score kept for validation, got %v", cfg.Index.MinScore)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for negative min score")
	}
}
