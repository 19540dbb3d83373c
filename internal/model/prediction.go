package model

import (
	"encoding/json"
	"math"
)

// Prediction holds a base-10 log-probability score per class. Scores are
// not normalized; compare them with Best, never by summing across documents.
type Prediction [NumClasses]float64

// Get returns the score for class c, or negative infinity when c is not
// one of Classes
func (p Prediction) Get(c Class) float64 {
	i := c.Index()
	if i < 0 {
		return math.Inf(-1)
	}
	return p[i]
}

// Best returns the highest scoring class. Ties go to the class listed
// first in Classes.
func (p Prediction) Best() Class {
	best := 0
	for i := 1; i < NumClasses; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return Classes[best]
}

// Ranked returns the classes ordered by descending score
func (p Prediction) Ranked() []Class {
	ranked := append([]Class(nil), Classes[:]...)
	// Insertion sort keeps tie order stable
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && p.Get(ranked[j]) > p.Get(ranked[j-1]); j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked
}

// Shares converts log scores into rough percentages for display. This is
// not a posterior; it exponentiates and renormalizes the log scores.
func (p Prediction) Shares() map[Class]float64 {
	maxScore := p[0]
	for _, v := range p[1:] {
		if v > maxScore {
			maxScore = v
		}
	}

	var total float64
	var weights [NumClasses]float64
	for i, v := range p {
		weights[i] = math.Pow(10, v-maxScore)
		total += weights[i]
	}

	shares := make(map[Class]float64, NumClasses)
	for i, c := range Classes {
		shares[c] = weights[i] / total * 100
	}
	return shares
}

// MarshalJSON renders the prediction as {"left":..,"center":..,"right":..}
func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{
		string(ClassLeft):   p[0],
		string(ClassCenter): p[1],
		string(ClassRight):  p[2],
	})
}

// UnmarshalJSON reads the map form written by MarshalJSON
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for i, c := range Classes {
		p[i] = m[string(c)]
	}
	return nil
}

// Scale describes how strongly a document leans toward its predicted class
type Scale struct {
	Class        Class   `json:"class"`
	Opposing     Class   `json:"opposing"`
	Centeredness float64 `json:"centeredness"` // score[class]/score[opposing], 1 = tie
	TermWeight   float64 `json:"term_weight"`  // Per-token log margin over the opposing class
	Degenerate   bool    `json:"degenerate,omitempty"`
}
