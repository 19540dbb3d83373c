package bayes

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/textproc"
	"github.com/ppiankov/biaslens/internal/worker"
)

// ErrNotTrained is returned when scoring without trained parameters
var ErrNotTrained = errors.New("classifier not trained")

// logPrior is the uniform prior over the three classes
var logPrior = math.Log10(1.0 / model.NumClasses)

// Classifier scores text against trained parameters. It is read-only and
// safe for concurrent use.
type Classifier struct {
	params Params
	chain  textproc.Chain
}

// NewClassifier creates a classifier. chain must be the preprocessing chain
// the params were trained on; Predict applies it before scoring.
func NewClassifier(params Params, chain textproc.Chain) *Classifier {
	return &Classifier{params: params, chain: chain}
}

// Chain returns the preprocessing chain
func (c *Classifier) Chain() textproc.Chain {
	return c.chain
}

// Score sums per-token log10 probabilities onto the prior. text must
// already be preprocessed by the classifier's chain.
func (c *Classifier) Score(text string) (model.Prediction, error) {
	if c == nil || c.params == nil {
		return model.Prediction{}, ErrNotTrained
	}

	var pred model.Prediction
	for i := range pred {
		pred[i] = logPrior
	}

	for _, word := range strings.Fields(text) {
		for i, class := range model.Classes {
			pred[i] += math.Log10(c.params.Probability(word, class))
		}
	}
	return pred, nil
}

// Predict preprocesses doc.Content with the chain and scores it
func (c *Classifier) Predict(doc model.Document) (model.Prediction, error) {
	if c == nil || c.params == nil {
		return model.Prediction{}, ErrNotTrained
	}
	return c.Score(c.chain.ApplyText(doc.Content))
}

// PredictClass returns the argmax class along with the full prediction
func (c *Classifier) PredictClass(doc model.Document) (model.Class, model.Prediction, error) {
	pred, err := c.Predict(doc)
	if err != nil {
		return model.ClassNone, pred, err
	}
	return pred.Best(), pred, nil
}

// PredictScale reports how strongly doc leans toward its predicted class
func (c *Classifier) PredictScale(doc model.Document) (model.Scale, error) {
	if c == nil || c.params == nil {
		return model.Scale{}, ErrNotTrained
	}
	text := c.chain.ApplyText(doc.Content)
	pred, err := c.Score(text)
	if err != nil {
		return model.Scale{}, err
	}
	return ScaleOf(pred, len(strings.Fields(text))), nil
}

// ScaleOf derives the lean of a prediction over tokens scored words.
//
// The opposing class is right for left, left for right and the stronger
// of the two for center. Centeredness is score[winner]/score[opposing]:
// both are non-positive, so the ratio lies in (0, 1] with 1 meaning a tie.
// TermWeight is the per-token log margin of the winner over the opposing
// class. A zero opposing score leaves the ratio undefined; Centeredness is
// then 0 and Degenerate is set.
func ScaleOf(pred model.Prediction, tokens int) model.Scale {
	winner := pred.Best()

	var opposing model.Class
	switch winner {
	case model.ClassLeft:
		opposing = model.ClassRight
	case model.ClassRight:
		opposing = model.ClassLeft
	default:
		opposing = model.ClassLeft
		if pred.Get(model.ClassRight) > pred.Get(model.ClassLeft) {
			opposing = model.ClassRight
		}
	}

	scale := model.Scale{Class: winner, Opposing: opposing}

	win, opp := pred.Get(winner), pred.Get(opposing)
	if opp == 0 {
		scale.Degenerate = true
	} else {
		scale.Centeredness = win / opp
	}
	if tokens > 0 {
		scale.TermWeight = (win - opp) / float64(tokens)
	}
	return scale
}

// Evaluation summarizes classifier accuracy on a labeled split
type Evaluation struct {
	Total     int                                    `json:"total"`
	Correct   int                                    `json:"correct"`
	Accuracy  float64                                `json:"accuracy"`
	Confusion [model.NumClasses][model.NumClasses]int `json:"confusion"` // [actual][predicted]
}

// Recall returns the fraction of documents labeled c that were predicted as c
func (e *Evaluation) Recall(c model.Class) float64 {
	i := c.Index()
	if i < 0 {
		return 0
	}
	row := 0
	for _, n := range e.Confusion[i] {
		row += n
	}
	if row == 0 {
		return 0
	}
	return float64(e.Confusion[i][i]) / float64(row)
}

// Accuracy classifies every labeled document on a worker pool and compares
// the prediction with the label
func (c *Classifier) Accuracy(ctx context.Context, docs map[string]model.Document, workers int) (*Evaluation, error) {
	if c == nil || c.params == nil {
		return nil, ErrNotTrained
	}
	if err := checkLabels(docs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	predicted, err := worker.Map(ctx, workers, ids, func(_ context.Context, id string) (model.Class, error) {
		class, _, err := c.PredictClass(docs[id])
		return class, err
	})
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{Total: len(ids)}
	for i, id := range ids {
		actual, got := docs[id].Bias, predicted[i]
		if actual == got {
			eval.Correct++
		}
		eval.Confusion[actual.Index()][got.Index()]++
	}
	if eval.Total > 0 {
		eval.Accuracy = float64(eval.Correct) / float64(eval.Total)
	}
	return eval, nil
}
