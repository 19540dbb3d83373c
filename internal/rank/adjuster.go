// Package rank re-ranks search hits toward a preferred bias class.
package rank

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/biaslens/internal/model"
)

// BoostFactor multiplies the relevance of hits predicted as the preferred class
const BoostFactor = 1.1

// Searcher returns hits sorted by descending relevance
type Searcher interface {
	Query(ctx context.Context, text string) ([]model.Hit, error)
}

// Predictor classifies a document
type Predictor interface {
	PredictClass(doc model.Document) (model.Class, model.Prediction, error)
}

// Options controls adjustment. Zero values disable each feature: no
// preferred class, no filter and no limit.
type Options struct {
	Prefer  model.Class
	Only    model.Class
	Exclude model.Class
	Limit   int
}

// Validate rejects labels outside the class set and negative limits
func (o Options) Validate() error {
	for _, c := range []model.Class{o.Prefer, o.Only, o.Exclude} {
		if c != model.ClassNone && !c.Valid() {
			return &model.InvalidLabelError{Label: string(c)}
		}
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit must not be negative: %d", o.Limit)
	}
	return nil
}

// Adjuster fuses classifier predictions with search relevance
type Adjuster struct {
	predictor Predictor
	boost     float64
}

// NewAdjuster creates an adjuster using BoostFactor
func NewAdjuster(predictor Predictor) *Adjuster {
	return &Adjuster{predictor: predictor, boost: BoostFactor}
}

// WithBoost returns a copy of a using a different boost. Non-positive
// values keep the current boost.
func (a *Adjuster) WithBoost(boost float64) *Adjuster {
	out := *a
	if boost > 0 {
		out.boost = boost
	}
	return &out
}

// Adjust classifies every hit, boosts the preferred class, re-sorts by
// adjusted score (ties keep search order), filters and truncates
func (a *Adjuster) Adjust(hits []model.Hit, opts Options) ([]model.RankedHit, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ranked := make([]model.RankedHit, 0, len(hits))
	for _, hit := range hits {
		class, pred, err := a.predictor.PredictClass(hit.Document)
		if err != nil {
			return nil, fmt.Errorf("classify %s: %w", hit.Document.ID, err)
		}

		score := hit.Score
		if opts.Prefer != model.ClassNone && class == opts.Prefer {
			score *= a.boost
		}

		ranked = append(ranked, model.RankedHit{
			Document:  hit.Document,
			Predicted: class,
			Score:     score,
			Relevance: hit.Score,
			Scores:    pred,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	filtered := ranked[:0]
	for _, r := range ranked {
		if opts.Only != model.ClassNone && r.Predicted != opts.Only {
			continue
		}
		if opts.Exclude != model.ClassNone && r.Predicted == opts.Exclude {
			continue
		}
		filtered = append(filtered, r)
	}

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}

// Query runs text through searcher and adjusts the hits
func (a *Adjuster) Query(ctx context.Context, searcher Searcher, text string, opts Options) ([]model.RankedHit, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	hits, err := searcher.Query(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return a.Adjust(hits, opts)
}
