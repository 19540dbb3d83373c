package bayes

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/ppiankov/biaslens/internal/cache"
	"github.com/ppiankov/biaslens/internal/model"
)

// Store loads stats and params from a cache, computing and persisting them
// on a miss. Keys are fingerprints of their inputs, so a changed corpus or
// preprocessing chain never reuses a stale entry.
type Store struct {
	cache     cache.Cache
	chain     string
	force     bool
	logger    *slog.Logger
	aggregate func(map[string]model.Document) (Stats, error)
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithForce recomputes and overwrites cached entries
func WithForce(force bool) StoreOption {
	return func(s *Store) {
		s.force = force
	}
}

// WithLogger sets the logger for cache hits and misses
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAggregator replaces Aggregate, e.g. with a concurrent variant
func WithAggregator(fn func(map[string]model.Document) (Stats, error)) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.aggregate = fn
		}
	}
}

// NewStore creates a store over c for models trained on chainName text.
// A nil cache disables persistence.
func NewStore(c cache.Cache, chainName string, opts ...StoreOption) *Store {
	s := &Store{
		cache:     c,
		chain:     chainName,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		aggregate: Aggregate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadOrCreateStats returns the stats for docs, aggregating only when no
// entry exists for this corpus and chain
func (s *Store) LoadOrCreateStats(docs map[string]model.Document) (Stats, error) {
	key := cache.Key("stats", CorpusFingerprint(s.chain, docs))

	stats, hit, err := cache.GetOrComputeJSON(s.cache, key, s.force, func() (Stats, error) {
		s.logger.Info("aggregating stats", "documents", len(docs), "chain", s.chain)
		return s.aggregate(docs)
	})
	if err != nil {
		return nil, fmt.Errorf("load or create stats: %w", err)
	}
	if hit {
		s.logger.Info("loaded stats from cache", "key", key)
		if err := stats.Validate(); err != nil {
			return nil, fmt.Errorf("cached stats %s: %w", key, err)
		}
		for _, c := range model.Classes {
			if stats[c] == nil {
				stats[c] = make(map[string]int)
			}
		}
	}
	return stats, nil
}

// LoadOrTrain returns params for stats, training only on a cache miss
func (s *Store) LoadOrTrain(stats Stats) (Params, error) {
	fp, err := StatsFingerprint(stats)
	if err != nil {
		return nil, err
	}
	key := cache.Key("params", fp)

	params, hit, err := cache.GetOrComputeJSON(s.cache, key, s.force, func() (Params, error) {
		s.logger.Info("training classifier", "vocabulary", stats.Vocabulary())
		return Train(stats), nil
	})
	if err != nil {
		return nil, fmt.Errorf("load or train params: %w", err)
	}
	if hit {
		s.logger.Info("loaded params from cache", "key", key)
		if err := params.Validate(); err != nil {
			return nil, fmt.Errorf("cached params %s: %w", key, err)
		}
	}
	return params, nil
}

// CorpusFingerprint hashes the chain name and every document's ID, label
// and content in ID order
func CorpusFingerprint(chain string, docs map[string]model.Document) string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	f := cache.NewFingerprinter()
	f.Add(chain)
	for _, id := range ids {
		doc := docs[id]
		f.Add(id, string(doc.Bias), doc.Content)
	}
	return f.Sum()
}

// StatsFingerprint hashes the canonical JSON form of stats (map keys are
// sorted by encoding/json)
func StatsFingerprint(stats Stats) (string, error) {
	blob, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	f := cache.NewFingerprinter()
	f.AddBytes(blob)
	return f.Sum(), nil
}
