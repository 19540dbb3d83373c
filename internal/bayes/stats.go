// Package bayes implements an add-one smoothed naive Bayes classifier over
// the three bias classes.
//
// Training is split in two cached steps: Aggregate turns a labeled corpus
// into per-class word counts (Stats), and Train turns the counts into
// smoothed parameters (Params). A Classifier scores new text against
// Params in the base-10 log domain.
package bayes

import (
	"context"
	"sort"
	"strings"

	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/worker"
)

// Stats maps each class to raw word occurrence counts. Words are
// whitespace-delimited and case-sensitive.
type Stats map[model.Class]map[string]int

// NewStats returns stats with an empty count table for every class
func NewStats() Stats {
	s := make(Stats, model.NumClasses)
	for _, c := range model.Classes {
		s[c] = make(map[string]int)
	}
	return s
}

// Total returns the number of word occurrences seen for class c
func (s Stats) Total(c model.Class) int {
	total := 0
	for _, n := range s[c] {
		total += n
	}
	return total
}

// Distinct returns the vocabulary size of class c
func (s Stats) Distinct(c model.Class) int {
	return len(s[c])
}

// Vocabulary returns the number of distinct words across all classes
func (s Stats) Vocabulary() int {
	seen := make(map[string]struct{})
	for _, counts := range s {
		for w := range counts {
			seen[w] = struct{}{}
		}
	}
	return len(seen)
}

// Validate checks that only the three known classes are present
func (s Stats) Validate() error {
	for c := range s {
		if !c.Valid() {
			return &model.InvalidLabelError{Label: string(c)}
		}
	}
	return nil
}

func (s Stats) merge(c model.Class, counts map[string]int) {
	dst := s[c]
	for w, n := range counts {
		dst[w] += n
	}
}

// countWords splits content on whitespace and counts each word
func countWords(content string) map[string]int {
	counts := make(map[string]int)
	for _, w := range strings.Fields(content) {
		counts[w]++
	}
	return counts
}

// checkLabels rejects the first document (by ID) that carries an unknown label
func checkLabels(docs map[string]model.Document) error {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if doc := docs[id]; !doc.Bias.Valid() {
			return &model.InvalidLabelError{DocID: id, Label: string(doc.Bias)}
		}
	}
	return nil
}

// Aggregate counts word occurrences per class over a labeled corpus. Every
// document must carry one of the three class labels.
func Aggregate(docs map[string]model.Document) (Stats, error) {
	if err := checkLabels(docs); err != nil {
		return nil, err
	}

	stats := NewStats()
	for _, doc := range docs {
		stats.merge(doc.Bias, countWords(doc.Content))
	}
	return stats, nil
}

// AggregateConcurrent is Aggregate with per-document counting spread over
// a worker pool and a single-threaded merge. The result equals Aggregate's.
func AggregateConcurrent(ctx context.Context, docs map[string]model.Document, workers int) (Stats, error) {
	if err := checkLabels(docs); err != nil {
		return nil, err
	}

	list := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		list = append(list, doc)
	}

	counted, err := worker.Map(ctx, workers, list, func(_ context.Context, doc model.Document) (map[string]int, error) {
		return countWords(doc.Content), nil
	})
	if err != nil {
		return nil, err
	}

	stats := NewStats()
	for i, counts := range counted {
		stats.merge(list[i].Bias, counts)
	}
	return stats, nil
}
