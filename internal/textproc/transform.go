// Package textproc normalizes article text before it reaches the classifier.
//
// Each Transform rewrites a document's content and leaves every other field
// alone. Transforms compose into a Chain; the chain's name is recorded with
// every trained model because a model must only score text produced by the
// same chain it was trained on.
package textproc

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kljensen/snowball/english"

	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/worker"
)

// Transform maps a document to a new document with rewritten content
type Transform func(model.Document) model.Document

// Step is a named Transform
type Step struct {
	Name      string
	Transform Transform
}

// Built-in steps
var (
	StepTokenize  = Step{Name: "tokenize", Transform: Tokenize}
	StepStem      = Step{Name: "stem", Transform: Stem}
	StepStopwords = Step{Name: "stopwords", Transform: RemoveStopwords}
)

// Tokenize splits content into word and punctuation tokens joined by single spaces
func Tokenize(doc model.Document) model.Document {
	return doc.WithContent(strings.Join(Tokens(doc.Content), " "))
}

// Stem reduces each whitespace token to its Snowball English stem
func Stem(doc model.Document) model.Document {
	fields := strings.Fields(doc.Content)
	for i, word := range fields {
		fields[i] = english.Stem(word, true)
	}
	return doc.WithContent(strings.Join(fields, " "))
}

// RemoveStopwords drops tokens whose lower-cased form is an English stopword
func RemoveStopwords(doc model.Document) model.Document {
	fields := strings.Fields(doc.Content)
	kept := fields[:0]
	for _, word := range fields {
		if IsStopword(word) {
			continue
		}
		kept = append(kept, word)
	}
	return doc.WithContent(strings.Join(kept, " "))
}

// Chain is an ordered composition of steps
type Chain struct {
	steps []Step
}

// NewChain builds a chain from steps applied in order
func NewChain(steps ...Step) Chain {
	return Chain{steps: append([]Step(nil), steps...)}
}

// Preset chains matching the corpus variants
var presets = map[string][]Step{
	"vanilla":   nil,
	"stemmed":   {StepTokenize, StepStem},
	"stopword":  {StepTokenize, StepStopwords},
	"stop_stem": {StepTokenize, StepStopwords, StepStem},
}

var stepsByName = map[string]Step{
	StepTokenize.Name:  StepTokenize,
	StepStem.Name:      StepStem,
	StepStopwords.Name: StepStopwords,
}

// ParseChain accepts a preset name (vanilla, stemmed, stopword, stop_stem)
// or a comma-separated list of step names (tokenize,stopwords,stem)
func ParseChain(spec string) (Chain, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Chain{}, nil
	}
	if steps, ok := presets[spec]; ok {
		return NewChain(steps...), nil
	}

	var steps []Step
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		step, ok := stepsByName[name]
		if !ok {
			return Chain{}, fmt.Errorf("unknown preprocessing step %q (known: tokenize, stem, stopwords; presets: vanilla, stemmed, stopword, stop_stem)", name)
		}
		steps = append(steps, step)
	}
	return NewChain(steps...), nil
}

// Name identifies the chain. It is stable for equal step lists and is used
// in cache fingerprints.
func (c Chain) Name() string {
	if len(c.steps) == 0 {
		return "vanilla"
	}
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name
	}
	return strings.Join(names, ",")
}

// Apply runs every step in order
func (c Chain) Apply(doc model.Document) model.Document {
	for _, s := range c.steps {
		doc = s.Transform(doc)
	}
	return doc
}

// ApplyText runs the chain over bare text
func (c Chain) ApplyText(text string) string {
	return c.Apply(model.Document{Content: text}).Content
}

// ApplyAll preprocesses a corpus on a worker pool and returns a new map.
// The input map is not modified.
func (c Chain) ApplyAll(ctx context.Context, docs map[string]model.Document, workers int) (map[string]model.Document, error) {
	out := make(map[string]model.Document, len(docs))
	if len(c.steps) == 0 {
		for id, doc := range docs {
			out[id] = doc
		}
		return out, nil
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	processed, err := worker.Map(ctx, workers, ids, func(ctx context.Context, id string) (model.Document, error) {
		if err := ctx.Err(); err != nil {
			return model.Document{}, err
		}
		return c.Apply(docs[id]), nil
	})
	if err != nil {
		return nil, err
	}

	for i, id := range ids {
		out[id] = processed[i]
	}
	return out, nil
}
