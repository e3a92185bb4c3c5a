package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/cache"
	"github.com/ppiankov/verisum/internal/metrics"
	"github.com/ppiankov/verisum/internal/model"
	"github.com/ppiankov/verisum/internal/vector"
)

const (
	// DefaultDocumentTTL is how long a built document index stays valid
	DefaultDocumentTTL = time.Hour
	// DefaultMaxDurableBytes is the largest record written to the durable tier
	DefaultMaxDurableBytes = 5 * 1024 * 1024
)

// Builder embeds entries into the index
type Builder func(ctx context.Context, entries []model.Entry) error

// documentRecord is the cached snapshot of one built page index
type documentRecord struct {
	URL         string              `json:"url"`
	Fingerprint string              `json:"fingerprint"`
	BuiltAt     time.Time           `json:"built_at"`
	Stats       model.Stats         `json:"stats"`
	Entries     []vector.Vectorized `json:"entries"`
}

// DocumentCache maps (url, content fingerprint) to a built index snapshot
type DocumentCache struct {
	index           *vector.Index
	store           *cache.LayeredCache
	ttl             time.Duration
	maxDurableBytes int
	now             func() time.Time
	logger          *zap.Logger

	current string // key of the snapshot loaded in index
	stats   model.Stats
	builtAt time.Time
}

// DocumentCacheOptions tunes a DocumentCache
type DocumentCacheOptions struct {
	TTL             time.Duration
	MaxDurableBytes int
	Logger          *zap.Logger
}

// NewDocumentCache creates a document cache that restores snapshots into index
func NewDocumentCache(index *vector.Index, store *cache.LayeredCache, opts DocumentCacheOptions) *DocumentCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultDocumentTTL
	}
	if opts.MaxDurableBytes <= 0 {
		opts.MaxDurableBytes = DefaultMaxDurableBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &DocumentCache{
		index:           index,
		store:           store,
		ttl:             opts.TTL,
		maxDurableBytes: opts.MaxDurableBytes,
		now:             time.Now,
		logger:          opts.Logger,
	}
}

// GetOrBuild returns stats for the page, restoring a cached index when one is
// valid and running builder otherwise.
func (d *DocumentCache) GetOrBuild(ctx context.Context, url string, parts []model.Part, builder Builder) (model.Stats, error) {
	if url == "" {
		return model.Stats{}, fmt.Errorf("build index: empty url: %w", model.ErrInvalidInput)
	}

	fingerprint := Fingerprint(parts)
	logical := url + ":" + fingerprint
	key := cache.Key(logical)
	log := d.logger.With(zap.String("url", url), zap.String("fingerprint", fingerprint))

	if d.current == key && d.index.Len() > 0 && d.fresh(d.builtAt) {
		metrics.CacheLookupsTotal.WithLabelValues("document", "loaded").Inc()
		log.Debug("document index already loaded")
		return d.stats, nil
	}

	if raw, tier := d.store.Lookup(key); tier != cache.TierMiss {
		var rec documentRecord
		switch err := json.Unmarshal(raw, &rec); {
		case err != nil:
			log.Warn("discarding unreadable document cache record", zap.Error(err))
			d.evict(key, log)
		case rec.URL != url || !d.fresh(rec.BuiltAt):
			log.Debug("discarding stale document cache record", zap.Time("built_at", rec.BuiltAt))
			d.evict(key, log)
		default:
			d.index.Restore(rec.Entries)
			d.remember(key, rec)
			metrics.CacheLookupsTotal.WithLabelValues("document", string(tier)).Inc()
			log.Debug("restored document index", zap.String("tier", string(tier)), zap.Int("entries", len(rec.Entries)))
			return rec.Stats, nil
		}
	}
	metrics.CacheLookupsTotal.WithLabelValues("document", string(cache.TierMiss)).Inc()

	d.index.Clear()
	d.current = ""

	entries := model.EntriesFromParts(parts)
	log.Info("building document index", zap.Int("parts", len(parts)), zap.Int("paragraphs", len(entries)))

	if err := builder(ctx, entries); err != nil {
		d.index.Clear()
		return model.Stats{}, fmt.Errorf("build index: %w", err)
	}

	rec := documentRecord{
		URL:         url,
		Fingerprint: fingerprint,
		BuiltAt:     d.now(),
		Stats:       computeStats(parts, d.index.Len()),
		Entries:     d.index.Entries(),
	}
	d.remember(key, rec)
	d.persist(key, rec, log)

	return rec.Stats, nil
}

// persist writes the record through to both tiers, skipping the durable tier
// for payloads over the size ceiling.
func (d *DocumentCache) persist(key string, rec documentRecord, log *zap.Logger) {
	payload, err := json.Marshal(rec)
	if err != nil {
		log.Warn("failed to encode document cache record", zap.Error(err))
		return
	}

	if err := d.store.SetMemory(key, payload, d.ttl); err != nil {
		log.Warn("memory cache write failed", zap.Error(err))
	}

	if len(payload) >= d.maxDurableBytes {
		log.Debug("durable cache write skipped",
			zap.Int("bytes", len(payload)),
			zap.Int("limit", d.maxDurableBytes))
		return
	}
	if err := d.store.SetDurable(key, payload, d.ttl); err != nil {
		log.Warn("durable cache write failed", zap.Error(err))
	}
}

// Clear drops the loaded index and every cached snapshot in both tiers
func (d *DocumentCache) Clear() error {
	d.index.Clear()
	d.current = ""
	d.stats = model.Stats{}
	d.builtAt = time.Time{}
	if err := d.store.Clear(); err != nil {
		return fmt.Errorf("clear document cache: %w", err)
	}
	return nil
}

func (d *DocumentCache) evict(key string, log *zap.Logger) {
	if err := d.store.Delete(key); err != nil {
		log.Warn("failed to evict document cache record", zap.Error(err))
	}
}

func (d *DocumentCache) remember(key string, rec documentRecord) {
	d.current = key
	d.stats = rec.Stats
	d.builtAt = rec.BuiltAt
}

func (d *DocumentCache) fresh(builtAt time.Time) bool {
	return d.now().Sub(builtAt) < d.ttl
}

// computeStats counts characters and sections over every part, entries over the index
func computeStats(parts []model.Part, entryCount int) model.Stats {
	sections := make(map[string]struct{})
	total := 0
	for _, p := range parts {
		total += utf8.RuneCountInString(p.Content)
		sections[p.SectionID] = struct{}{}
	}
	return model.Stats{
		TotalCharacters:      total,
		EntryCount:           entryCount,
		DistinctSectionCount: len(sections),
	}
}
