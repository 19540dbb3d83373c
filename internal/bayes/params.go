package bayes

import (
	"fmt"

	"github.com/ppiankov/biaslens/internal/model"
)

// ClassParams holds the add-one smoothed counts of one class.
// Denom is the total word mass plus the vocabulary size; Counts holds
// raw+1 for every word observed in the class.
type ClassParams struct {
	Denom  int            `json:"denom"`
	Counts map[string]int `json:"counts"`
}

// Params is a trained model. It is never modified after Train returns.
type Params map[model.Class]ClassParams

// Train applies add-one smoothing to aggregated stats
func Train(stats Stats) Params {
	params := make(Params, model.NumClasses)
	for _, c := range model.Classes {
		raw := stats[c]
		counts := make(map[string]int, len(raw))
		total := 0
		for w, n := range raw {
			counts[w] = n + 1
			total += n
		}
		params[c] = ClassParams{
			Denom:  total + len(raw),
			Counts: counts,
		}
	}
	return params
}

// Probability returns the smoothed P(word | class). Words never seen for
// the class get 1/Denom. A class trained on no words at all has no mass
// to spread and returns 1, so it contributes nothing to a score.
func (p Params) Probability(word string, c model.Class) float64 {
	cp := p[c]
	if cp.Denom <= 0 {
		return 1
	}
	if n, ok := cp.Counts[word]; ok {
		return float64(n) / float64(cp.Denom)
	}
	return 1 / float64(cp.Denom)
}

// Validate checks that a loaded parameter blob is well formed
func (p Params) Validate() error {
	for c, cp := range p {
		if !c.Valid() {
			return &model.InvalidLabelError{Label: string(c)}
		}
		if cp.Denom < len(cp.Counts) {
			return fmt.Errorf("params for %s: denom %d below vocabulary size %d", c, cp.Denom, len(cp.Counts))
		}
	}
	for _, c := range model.Classes {
		if _, ok := p[c]; !ok {
			return fmt.Errorf("params missing class %s", c)
		}
	}
	return nil
}
