package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/biaslens/internal/model"
)

// URLClassifier fetches and classifies a single article
type URLClassifier interface {
	ClassifyURL(ctx context.Context, url string) (*model.Report, error)
}

// ClassifyJob classifies the article behind one URL
type ClassifyJob struct {
	Index      int
	URL        string
	Classifier URLClassifier
	Limiter    *Limiter
}

// Execute waits for the per-host limiter and classifies the URL
func (j *ClassifyJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.URL); err != nil {
			return &ClassifyResult{Index: j.Index, URL: j.URL, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}

	report, err := j.Classifier.ClassifyURL(ctx, j.URL)
	if err != nil {
		return &ClassifyResult{Index: j.Index, URL: j.URL, Error: err}
	}
	return &ClassifyResult{Index: j.Index, URL: j.URL, Report: report}
}

// ClassifyResult is the outcome of a ClassifyJob
type ClassifyResult struct {
	Index  int
	URL    string
	Report *model.Report
	Error  error
}

// GetError returns the error from the classification
func (r *ClassifyResult) GetError() error {
	return r.Error
}

// BatchProcessor classifies many article URLs concurrently
type BatchProcessor struct {
	classifier  URLClassifier
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a batch processor. A non-positive
// requestsPerSecond disables per-host rate limiting.
func NewBatchProcessor(classifier URLClassifier, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	return &BatchProcessor{
		classifier:  classifier,
		concurrency: concurrency,
		limiter:     NewLimiter(requestsPerSecond, burst),
	}
}

// Limiter exposes the per-host limiter so callers can apply crawl delays
func (b *BatchProcessor) Limiter() *Limiter {
	return b.limiter
}

// ProcessURLs classifies every URL and returns one result per URL in input
// order. URLs left unprocessed because ctx ended carry the context error.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*ClassifyResult {
	out := make([]*ClassifyResult, len(urls))
	if len(urls) == 0 {
		return out
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, u := range urls {
			if !pool.Submit(&ClassifyJob{Index: i, URL: u, Classifier: b.classifier, Limiter: b.limiter}) {
				return
			}
		}
	}()

	var panics []error
	for r := range pool.Results() {
		res, ok := r.(*ClassifyResult)
		if !ok {
			panics = append(panics, r.GetError())
			continue
		}
		out[res.Index] = res
	}

	for i, res := range out {
		if res != nil {
			continue
		}
		err := ctx.Err()
		if len(panics) > 0 {
			err, panics = panics[0], panics[1:]
		}
		if err == nil {
			err = errors.New("not processed")
		}
		out[i] = &ClassifyResult{Index: i, URL: urls[i], Error: err}
	}

	return out
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
