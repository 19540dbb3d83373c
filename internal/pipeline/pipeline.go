// Package pipeline wires the corpus, the naive Bayes model, the search
// index and the bias re-ranker into the operations the CLI and the MCP
// server expose.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/biaslens/internal/bayes"
	"github.com/ppiankov/biaslens/internal/cache"
	"github.com/ppiankov/biaslens/internal/corpus"
	"github.com/ppiankov/biaslens/internal/fetch"
	"github.com/ppiankov/biaslens/internal/llm"
	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/rank"
	"github.com/ppiankov/biaslens/internal/search"
	"github.com/ppiankov/biaslens/internal/textproc"
	"github.com/ppiankov/biaslens/internal/worker"
)

// searchFingerprintKind separates index fingerprints from model fingerprints
const searchFingerprintKind = "search"

// Pipeline orchestrates training, classification and search
type Pipeline struct {
	config  *model.Config
	chain   textproc.Chain
	reader  *corpus.Reader
	cache   cache.Cache
	fetcher *fetch.Fetcher
	advisor *llm.Advisor // Optional LLM second opinion (disabled when nil)
	logger  *slog.Logger
	force   bool

	trainMu    sync.Mutex // Serializes lazy training
	mu         sync.Mutex
	classifier *bayes.Classifier
	index      *search.Index
	limiter    *worker.Limiter
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger passed to every component
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithForce recomputes cached stats, params and the search index
func WithForce(force bool) Option {
	return func(p *Pipeline) {
		p.force = force
	}
}

// WithCache replaces the cache built from configuration
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithFetcher replaces the fetcher built from configuration
func WithFetcher(f *fetch.Fetcher) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.fetcher = f
		}
	}
}

// WithAdvisor replaces the LLM advisor built from configuration
func WithAdvisor(a *llm.Advisor) Option {
	return func(p *Pipeline) {
		p.advisor = a
	}
}

// WithClassifier uses an already trained classifier instead of the corpus
func WithClassifier(c *bayes.Classifier) Option {
	return func(p *Pipeline) {
		p.classifier = c
	}
}

// New creates a pipeline from configuration
func New(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	chain, err := textproc.ParseChain(cfg.Chain)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:  cfg,
		chain:   chain,
		fetcher: fetch.NewFetcherFromConfig(cfg.HTTP),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if cfg.Cache.Enabled {
		p.cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.advisor == nil && cfg.LLM.Provider != "" {
		advisor, err := llm.NewAdvisor(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			// The opinion is optional; scoring still works without it
			p.logger.Warn("LLM provider disabled", "error", err)
		} else {
			p.advisor = advisor
		}
	}

	p.reader = corpus.NewReader(cfg.Corpus.Root, cfg.Corpus.Scheme, p.workers(), p.logger)
	return p, nil
}

// Close releases the search index
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index == nil {
		return nil
	}
	err := p.index.Close()
	p.index = nil
	return err
}

// Chain returns the preprocessing chain
func (p *Pipeline) Chain() textproc.Chain {
	return p.chain
}

// Reader returns the corpus reader
func (p *Pipeline) Reader() *corpus.Reader {
	return p.reader
}

// Advisor returns the LLM advisor, nil when disabled
func (p *Pipeline) Advisor() *llm.Advisor {
	return p.advisor
}

func (p *Pipeline) workers() int {
	if p.config.Concurrency.Workers > 0 {
		return p.config.Concurrency.Workers
	}
	return 1
}

// LoadSplit reads a named split, or the whole corpus when split is empty
func (p *Pipeline) LoadSplit(ctx context.Context, split string) (corpus.Set, error) {
	if split == "" {
		return p.reader.ReadAll(ctx)
	}
	return p.reader.ReadSplit(ctx, split)
}

// TrainResult summarizes a training run
type TrainResult struct {
	Split      string
	Summary    corpus.Summary
	Vocabulary int
	Classifier *bayes.Classifier
	Elapsed    time.Duration
}

// Train loads or creates stats and params for the training split. Both are
// cached under fingerprints of the raw corpus and the chain name, so a warm
// cache skips preprocessing as well as aggregation.
func (p *Pipeline) Train(ctx context.Context) (*TrainResult, error) {
	start := time.Now()
	split := p.config.Corpus.TrainSplit

	docs, err := p.LoadSplit(ctx, split)
	if err != nil {
		return nil, fmt.Errorf("load training corpus: %w", err)
	}

	workers := p.workers()
	store := bayes.NewStore(p.cache, p.chain.Name(),
		bayes.WithForce(p.force),
		bayes.WithLogger(p.logger),
		bayes.WithAggregator(func(raw map[string]model.Document) (bayes.Stats, error) {
			prepared, err := p.chain.ApplyAll(ctx, raw, workers)
			if err != nil {
				return nil, fmt.Errorf("preprocess corpus: %w", err)
			}
			return bayes.AggregateConcurrent(ctx, prepared, workers)
		}),
	)

	stats, err := store.LoadOrCreateStats(docs)
	if err != nil {
		return nil, err
	}
	params, err := store.LoadOrTrain(stats)
	if err != nil {
		return nil, err
	}

	classifier := bayes.NewClassifier(params, p.chain)

	p.mu.Lock()
	p.classifier = classifier
	p.mu.Unlock()

	return &TrainResult{
		Split:      split,
		Summary:    docs.Summarize(),
		Vocabulary: stats.Vocabulary(),
		Classifier: classifier,
		Elapsed:    time.Since(start),
	}, nil
}

// Classifier returns the trained classifier, training on first use
func (p *Pipeline) Classifier(ctx context.Context) (*bayes.Classifier, error) {
	p.trainMu.Lock()
	defer p.trainMu.Unlock()

	p.mu.Lock()
	classifier := p.classifier
	p.mu.Unlock()

	if classifier != nil {
		return classifier, nil
	}

	result, err := p.Train(ctx)
	if err != nil {
		return nil, err
	}
	return result.Classifier, nil
}

// ClassifyDocument scores doc and asks the LLM advisor for a second opinion
// when one is configured. An advisor failure is logged, never returned.
func (p *Pipeline) ClassifyDocument(ctx context.Context, doc model.Document) (*model.Report, error) {
	classifier, err := p.Classifier(ctx)
	if err != nil {
		return nil, err
	}

	chain := classifier.Chain()
	text := chain.ApplyText(doc.Content)
	pred, err := classifier.Score(text)
	if err != nil {
		return nil, err
	}
	tokens := len(strings.Fields(text))
	predicted := pred.Best()

	report := &model.Report{
		Subject:   model.SubjectFromDocument(doc),
		SourceURL: doc.URL,
		FetchedAt: time.Now().UTC(),
		Chain:     chain.Name(),
		Tokens:    tokens,
		Predicted: predicted,
		Scores:    pred,
		Scale:     bayes.ScaleOf(pred, tokens),
	}

	// The opinion is requested after scoring and never alters it
	if p.advisor.IsEnabled() {
		opinion, err := p.advisor.Opinion(ctx, doc, predicted)
		if err != nil {
			p.logger.Warn("LLM opinion failed", "subject", report.Subject, "error", err)
		} else {
			report.LLM = opinion
		}
	}

	return report, nil
}

// ClassifyText classifies inline text
func (p *Pipeline) ClassifyText(ctx context.Context, text string) (*model.Report, error) {
	return p.ClassifyDocument(ctx, model.Document{Content: text})
}

// ClassifyURL fetches an article and classifies its text
func (p *Pipeline) ClassifyURL(ctx context.Context, rawURL string) (*model.Report, error) {
	doc, result, err := p.fetcher.Document(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	p.mu.Lock()
	limiter := p.limiter
	p.mu.Unlock()
	if limiter != nil && result.CrawlDelay > 0 {
		limiter.ApplyCrawlDelay(result.FinalURL, result.CrawlDelay)
	}

	report, err := p.ClassifyDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	report.SourceURL = result.FinalURL
	meta := result.Meta
	report.FetchMeta = &meta
	return report, nil
}

// ClassifyURLs fetches and classifies many articles concurrently with
// per-host rate limiting. Results keep input order.
func (p *Pipeline) ClassifyURLs(ctx context.Context, urls []string) ([]*worker.ClassifyResult, error) {
	// Train once up front instead of racing inside the workers
	if _, err := p.Classifier(ctx); err != nil {
		return nil, err
	}

	batch := worker.NewBatchProcessor(p, p.workers(), p.config.RateLimiting.RequestsPerSecond, p.config.RateLimiting.BurstSize)

	p.mu.Lock()
	p.limiter = batch.Limiter()
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.limiter = nil
		p.mu.Unlock()
	}()

	return batch.ProcessURLs(ctx, urls), nil
}

// Index opens the search index on first use
func (p *Pipeline) Index() (*search.Index, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index != nil {
		return p.index, nil
	}
	ix, err := search.Open(p.config.Search.IndexPath, p.config.Search.MaxResults, p.logger)
	if err != nil {
		return nil, err
	}
	p.index = ix
	return ix, nil
}

// BuildIndex indexes the whole corpus. An index whose stored fingerprint
// matches the corpus is reused unless force is set.
func (p *Pipeline) BuildIndex(ctx context.Context, force bool) (bool, search.Stats, error) {
	ix, err := p.Index()
	if err != nil {
		return false, search.Stats{}, err
	}

	docs, err := p.reader.ReadAll(ctx)
	if err != nil {
		return false, search.Stats{}, fmt.Errorf("load corpus: %w", err)
	}

	built, err := ix.Build(ctx, docs, bayes.CorpusFingerprint(searchFingerprintKind, docs), force || p.force)
	if err != nil {
		return false, search.Stats{}, err
	}

	stats, err := ix.Stats(ctx)
	return built, stats, err
}

// ensureIndex builds the index when it is still empty
func (p *Pipeline) ensureIndex(ctx context.Context) (*search.Index, error) {
	ix, err := p.Index()
	if err != nil {
		return nil, err
	}
	stats, err := ix.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.Documents == 0 {
		p.logger.Info("search index is empty, building")
		if _, _, err := p.BuildIndex(ctx, false); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// Query searches the corpus and re-ranks hits toward opts.Prefer
func (p *Pipeline) Query(ctx context.Context, text string, opts rank.Options) ([]model.RankedHit, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Limit == 0 {
		opts.Limit = p.config.Ranking.Limit
	}

	classifier, err := p.Classifier(ctx)
	if err != nil {
		return nil, err
	}
	ix, err := p.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	adjuster := rank.NewAdjuster(classifier).WithBoost(p.config.Ranking.Boost)
	return adjuster.Query(ctx, ix, text, opts)
}

// Document returns a corpus document by ID
func (p *Pipeline) Document(ctx context.Context, id string) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return model.Document{}, err
	}
	return p.reader.ReadDocument(id)
}

// Evaluate reports accuracy on a labeled split
func (p *Pipeline) Evaluate(ctx context.Context, split string) (*bayes.Evaluation, error) {
	if split == "" {
		split = p.config.Corpus.TestSplit
	}

	classifier, err := p.Classifier(ctx)
	if err != nil {
		return nil, err
	}

	docs, err := p.reader.ReadSplit(ctx, split)
	if err != nil {
		return nil, fmt.Errorf("load evaluation split: %w", err)
	}
	if len(docs) == 0 {
		return nil, errors.New("evaluation split is empty")
	}

	return classifier.Accuracy(ctx, docs, p.workers())
}
