package bayes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/biaslens/internal/cache"
	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/textproc"
)

const epsilon = 1e-9

func doc(id string, bias model.Class, content string) model.Document {
	return model.Document{ID: id, Bias: bias, Content: content}
}

// taxCorpus has "tax" only in left documents plus one filler word per class
func taxCorpus() map[string]model.Document {
	return map[string]model.Document{
		"l1": doc("l1", model.ClassLeft, "tax tax"),
		"l2": doc("l2", model.ClassLeft, "tax tax"),
		"l3": doc("l3", model.ClassLeft, "welfare"),
		"c1": doc("c1", model.ClassCenter, "budget"),
		"r1": doc("r1", model.ClassRight, "border"),
	}
}

func mustAggregate(t *testing.T, docs map[string]model.Document) Stats {
	t.Helper()
	stats, err := Aggregate(docs)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	return stats
}

func TestAggregate(t *testing.T) {
	stats := mustAggregate(t, taxCorpus())

	if stats[model.ClassLeft]["tax"] != 4 {
		t.Errorf("left tax = %d, want 4", stats[model.ClassLeft]["tax"])
	}
	if _, ok := stats[model.ClassRight]["tax"]; ok {
		t.Error("tax must not appear under right")
	}
	if stats.Total(model.ClassLeft) != 5 || stats.Distinct(model.ClassLeft) != 2 {
		t.Errorf("left total/distinct = %d/%d", stats.Total(model.ClassLeft), stats.Distinct(model.ClassLeft))
	}
	if stats.Vocabulary() != 4 {
		t.Errorf("Vocabulary = %d, want 4", stats.Vocabulary())
	}
}

func TestAggregate_CaseSensitive(t *testing.T) {
	stats := mustAggregate(t, map[string]model.Document{
		"a": doc("a", model.ClassLeft, "Tax tax TAX"),
	})
	if len(stats[model.ClassLeft]) != 3 {
		t.Errorf("expected 3 distinct words, got %v", stats[model.ClassLeft])
	}
}

func TestAggregate_InvalidLabel(t *testing.T) {
	docs := taxCorpus()
	docs["x"] = doc("x", model.Class("libertarian"), "freedom")

	_, err := Aggregate(docs)
	if !errors.Is(err, model.ErrInvalidLabel) {
		t.Fatalf("expected ErrInvalidLabel, got %v", err)
	}
	var labelErr *model.InvalidLabelError
	if !errors.As(err, &labelErr) || labelErr.DocID != "x" {
		t.Errorf("error should name document x: %v", err)
	}

	docs["x"] = doc("x", model.ClassNone, "unlabeled")
	if _, err := Aggregate(docs); !errors.Is(err, model.ErrInvalidLabel) {
		t.Errorf("unlabeled document should be rejected, got %v", err)
	}
}

func TestAggregateConcurrent_MatchesAggregate(t *testing.T) {
	docs := make(map[string]model.Document)
	words := []string{"tax", "border", "climate", "budget", "vote"}
	for i := 0; i < 300; i++ {
		id := fmt.Sprintf("d%d", i)
		docs[id] = doc(id, model.Classes[i%3], strings.Join(words[:1+i%len(words)], " "))
	}

	want := mustAggregate(t, docs)
	got, err := AggregateConcurrent(context.Background(), docs, 8)
	if err != nil {
		t.Fatalf("AggregateConcurrent: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("concurrent aggregation differs from sequential")
	}
}

func TestTrain_SmoothedRatioIdentity(t *testing.T) {
	stats := mustAggregate(t, taxCorpus())
	params := Train(stats)

	for _, c := range model.Classes {
		total, distinct := stats.Total(c), stats.Distinct(c)
		if params[c].Denom != total+distinct {
			t.Errorf("%s denom = %d, want %d", c, params[c].Denom, total+distinct)
		}
		for w, raw := range stats[c] {
			got := float64(params[c].Counts[w]) / float64(params[c].Denom)
			want := float64(raw+1) / float64(total+distinct)
			if math.Abs(got-want) > epsilon {
				t.Errorf("%s/%s ratio = %v, want %v", c, w, got, want)
			}
		}
	}

	// The stats passed in are left untouched
	if stats[model.ClassLeft]["tax"] != 4 {
		t.Error("Train modified its input")
	}
}

func TestTrain_TaxScenario(t *testing.T) {
	params := Train(mustAggregate(t, taxCorpus()))

	// left: tax=4, welfare=1 -> denom = 5 + 2
	if params[model.ClassLeft].Denom != 7 {
		t.Errorf("left denom = %d, want 7", params[model.ClassLeft].Denom)
	}
	if p := params.Probability("tax", model.ClassLeft); math.Abs(p-5.0/7) > epsilon {
		t.Errorf("P(tax|left) = %v, want 5/7", p)
	}
	// right: border=1 -> denom = 1 + 1, tax unseen
	if p := params.Probability("tax", model.ClassRight); math.Abs(p-0.5) > epsilon {
		t.Errorf("P(tax|right) = %v, want 1/2", p)
	}
}

func TestProbability_Bounds(t *testing.T) {
	params := Train(mustAggregate(t, taxCorpus()))
	for _, c := range model.Classes {
		for _, w := range []string{"tax", "welfare", "budget", "border", "never-seen"} {
			p := params.Probability(w, c)
			if p <= 0 || p > 1 {
				t.Errorf("P(%s|%s) = %v out of (0, 1]", w, c, p)
			}
		}
	}
}

func TestParams_JSONShape(t *testing.T) {
	params := Train(mustAggregate(t, taxCorpus()))
	blob, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		t.Fatalf("unexpected shape: %v", err)
	}
	for _, c := range []string{"left", "center", "right"} {
		if _, ok := raw[c]["denom"]; !ok {
			t.Errorf("%s missing denom", c)
		}
		if _, ok := raw[c]["counts"]; !ok {
			t.Errorf("%s missing counts", c)
		}
	}
}

func TestParams_Validate(t *testing.T) {
	params := Train(mustAggregate(t, taxCorpus()))
	if err := params.Validate(); err != nil {
		t.Errorf("trained params invalid: %v", err)
	}

	delete(params, model.ClassCenter)
	if err := params.Validate(); err == nil {
		t.Error("missing class should fail validation")
	}
}

func TestClassifier_NotTrained(t *testing.T) {
	c := NewClassifier(nil, textproc.Chain{})

	if _, err := c.Score("tax"); !errors.Is(err, ErrNotTrained) {
		t.Errorf("Score: expected ErrNotTrained, got %v", err)
	}
	if _, _, err := c.PredictClass(doc("a", "", "tax")); !errors.Is(err, ErrNotTrained) {
		t.Errorf("PredictClass: expected ErrNotTrained, got %v", err)
	}
	if _, err := c.PredictScale(doc("a", "", "tax")); !errors.Is(err, ErrNotTrained) {
		t.Errorf("PredictScale: expected ErrNotTrained, got %v", err)
	}
}

func TestClassifier_EmptyText(t *testing.T) {
	c := NewClassifier(Train(mustAggregate(t, taxCorpus())), textproc.Chain{})

	pred, err := c.Predict(doc("e", "", ""))
	if err != nil {
		t.Fatal(err)
	}
	want := math.Log10(1.0 / 3)
	for _, class := range model.Classes {
		if pred.Get(class) != want {
			t.Errorf("%s = %v, want %v", class, pred.Get(class), want)
		}
	}
}

func TestClassifier_TokenOrderInvariance(t *testing.T) {
	c := NewClassifier(Train(mustAggregate(t, taxCorpus())), textproc.Chain{})

	words := strings.Fields("tax budget tax border welfare unknown tax")
	base, err := c.Score(strings.Join(words, " "))
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(words), func(a, b int) { words[a], words[b] = words[b], words[a] })
		got, _ := c.Score(strings.Join(words, " "))
		for j := range got {
			if math.Abs(got[j]-base[j]) > epsilon {
				t.Fatalf("shuffle %d changed %s: %v vs %v", i, model.Classes[j], got[j], base[j])
			}
		}
	}
}

func TestClassifier_TaxPredictsLeft(t *testing.T) {
	c := NewClassifier(Train(mustAggregate(t, taxCorpus())), textproc.Chain{})

	class, pred, err := c.PredictClass(doc("q", "", "tax"))
	if err != nil {
		t.Fatal(err)
	}
	if class != model.ClassLeft {
		t.Errorf("predicted %s, want left (scores %v)", class, pred)
	}

	want := math.Log10(1.0/3) + math.Log10(5.0/7)
	if math.Abs(pred.Get(model.ClassLeft)-want) > epsilon {
		t.Errorf("left score = %v, want %v", pred.Get(model.ClassLeft), want)
	}
}

func TestClassifier_AllUnseenTieBreaksLeft(t *testing.T) {
	// Equal denominators make every unseen word equally likely in each class
	docs := map[string]model.Document{
		"l": doc("l", model.ClassLeft, "alpha"),
		"c": doc("c", model.ClassCenter, "beta"),
		"r": doc("r", model.ClassRight, "gamma"),
	}
	c := NewClassifier(Train(mustAggregate(t, docs)), textproc.Chain{})

	class, pred, err := c.PredictClass(doc("q", "", "zeta eta theta"))
	if err != nil {
		t.Fatal(err)
	}
	if pred[0] != pred[1] || pred[1] != pred[2] {
		t.Fatalf("expected a three-way tie, got %v", pred)
	}
	if class != model.ClassLeft {
		t.Errorf("tie should resolve to left, got %s", class)
	}
}

func TestClassifier_AppliesChain(t *testing.T) {
	chain, err := textproc.ParseChain("stemmed")
	if err != nil {
		t.Fatal(err)
	}

	train := map[string]model.Document{
		"l": doc("l", model.ClassLeft, "taxes taxing"),
		"c": doc("c", model.ClassCenter, "budgets"),
		"r": doc("r", model.ClassRight, "borders"),
	}
	for id, d := range train {
		train[id] = chain.Apply(d)
	}

	c := NewClassifier(Train(mustAggregate(t, train)), chain)
	class, _, err := c.PredictClass(doc("q", "", "Taxed"))
	if err != nil {
		t.Fatal(err)
	}
	if class != model.ClassLeft {
		t.Errorf("stemmed query should match stemmed training text, got %s", class)
	}
}

func TestScaleOf(t *testing.T) {
	tests := []struct {
		name         string
		pred         model.Prediction
		tokens       int
		class        model.Class
		opposing     model.Class
		centeredness float64
		termWeight   float64
		degenerate   bool
	}{
		{
			name:         "left against right",
			pred:         model.Prediction{-2, -5, -4},
			tokens:       2,
			class:        model.ClassLeft,
			opposing:     model.ClassRight,
			centeredness: 0.5,
			termWeight:   1,
		},
		{
			name:         "right against left",
			pred:         model.Prediction{-8, -6, -4},
			tokens:       4,
			class:        model.ClassRight,
			opposing:     model.ClassLeft,
			centeredness: 0.5,
			termWeight:   1,
		},
		{
			name:         "center against stronger side",
			pred:         model.Prediction{-6, -3, -4},
			tokens:       1,
			class:        model.ClassCenter,
			opposing:     model.ClassRight,
			centeredness: 0.75,
			termWeight:   1,
		},
		{
			name:         "tie",
			pred:         model.Prediction{-3, -3, -3},
			tokens:       0,
			class:        model.ClassLeft,
			opposing:     model.ClassRight,
			centeredness: 1,
			termWeight:   0,
		},
		{
			name:       "zero opposing score",
			pred:       model.Prediction{0, -1, 0},
			tokens:     3,
			class:      model.ClassLeft,
			opposing:   model.ClassRight,
			degenerate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ScaleOf(tt.pred, tt.tokens)
			if s.Class != tt.class || s.Opposing != tt.opposing {
				t.Errorf("class/opposing = %s/%s, want %s/%s", s.Class, s.Opposing, tt.class, tt.opposing)
			}
			if math.Abs(s.Centeredness-tt.centeredness) > epsilon {
				t.Errorf("Centeredness = %v, want %v", s.Centeredness, tt.centeredness)
			}
			if math.Abs(s.TermWeight-tt.termWeight) > epsilon {
				t.Errorf("TermWeight = %v, want %v", s.TermWeight, tt.termWeight)
			}
			if s.Degenerate != tt.degenerate {
				t.Errorf("Degenerate = %v, want %v", s.Degenerate, tt.degenerate)
			}
			if math.IsNaN(s.Centeredness) || math.IsInf(s.Centeredness, 0) {
				t.Errorf("Centeredness must be finite, got %v", s.Centeredness)
			}
		})
	}
}

func TestClassifier_PredictScale(t *testing.T) {
	c := NewClassifier(Train(mustAggregate(t, taxCorpus())), textproc.Chain{})

	s, err := c.PredictScale(doc("q", "", "tax tax"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Class != model.ClassLeft || s.Opposing != model.ClassRight {
		t.Errorf("unexpected scale %+v", s)
	}
	if s.Centeredness <= 0 || s.Centeredness > 1 {
		t.Errorf("Centeredness %v outside (0, 1]", s.Centeredness)
	}
	if s.TermWeight <= 0 {
		t.Errorf("TermWeight should be positive for the winner, got %v", s.TermWeight)
	}
}

func TestClassifier_Accuracy(t *testing.T) {
	c := NewClassifier(Train(mustAggregate(t, taxCorpus())), textproc.Chain{})

	test := map[string]model.Document{
		"t1": doc("t1", model.ClassLeft, "tax"),
		"t2": doc("t2", model.ClassRight, "border"),
		"t3": doc("t3", model.ClassCenter, "tax"),
		"t4": doc("t4", model.ClassCenter, "budget"),
	}

	eval, err := c.Accuracy(context.Background(), test, 2)
	if err != nil {
		t.Fatal(err)
	}
	if eval.Total != 4 || eval.Correct != 3 {
		t.Errorf("total/correct = %d/%d, want 4/3", eval.Total, eval.Correct)
	}
	if math.Abs(eval.Accuracy-0.75) > epsilon {
		t.Errorf("Accuracy = %v, want 0.75", eval.Accuracy)
	}
	if eval.Confusion[model.ClassCenter.Index()][model.ClassLeft.Index()] != 1 {
		t.Errorf("confusion = %v", eval.Confusion)
	}
	if eval.Recall(model.ClassCenter) != 0.5 {
		t.Errorf("center recall = %v, want 0.5", eval.Recall(model.ClassCenter))
	}
}

func countingStore(t *testing.T, c cache.Cache, chain string, calls *int, opts ...StoreOption) *Store {
	t.Helper()
	opts = append(opts, WithAggregator(func(docs map[string]model.Document) (Stats, error) {
		*calls++
		return Aggregate(docs)
	}))
	return NewStore(c, chain, opts...)
}

func TestStore_StatsIdempotent(t *testing.T) {
	dir := t.TempDir()
	docs := taxCorpus()

	calls := 0
	first, err := countingStore(t, cache.NewDiskCache(dir, 0), "vanilla", &calls).LoadOrCreateStats(docs)
	if err != nil {
		t.Fatal(err)
	}

	// New store and cache instance over the same directory, as on a second run
	second, err := countingStore(t, cache.NewDiskCache(dir, 0), "vanilla", &calls).LoadOrCreateStats(docs)
	if err != nil {
		t.Fatal(err)
	}

	if calls != 1 {
		t.Errorf("aggregator called %d times, want 1", calls)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("second call returned different stats:\n%s\n%s", a, b)
	}
}

func TestStore_Invalidation(t *testing.T) {
	c := cache.NewLayeredCache(time.Minute, t.TempDir(), 0)
	docs := taxCorpus()

	calls := 0
	if _, err := countingStore(t, c, "vanilla", &calls).LoadOrCreateStats(docs); err != nil {
		t.Fatal(err)
	}

	// Different chain
	if _, err := countingStore(t, c, "tokenize,stem", &calls).LoadOrCreateStats(docs); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("chain change should recompute, calls = %d", calls)
	}

	// Changed corpus
	docs["c2"] = doc("c2", model.ClassCenter, "budget deficit")
	if _, err := countingStore(t, c, "vanilla", &calls).LoadOrCreateStats(docs); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("corpus change should recompute, calls = %d", calls)
	}

	// Force
	if _, err := countingStore(t, c, "vanilla", &calls, WithForce(true)).LoadOrCreateStats(docs); err != nil {
		t.Fatal(err)
	}
	if calls != 4 {
		t.Errorf("force should recompute, calls = %d", calls)
	}
}

func TestStore_LoadOrTrain(t *testing.T) {
	dir := t.TempDir()
	stats := mustAggregate(t, taxCorpus())

	first, err := NewStore(cache.NewDiskCache(dir, 0), "vanilla").LoadOrTrain(stats)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewStore(cache.NewDiskCache(dir, 0), "vanilla").LoadOrTrain(stats)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached params differ from trained params")
	}
	if !reflect.DeepEqual(first, Train(stats)) {
		t.Error("params differ from Train output")
	}
}

func TestStore_InvalidLabelNotCached(t *testing.T) {
	c := cache.NewMemoryCache(0, time.Minute)
	docs := taxCorpus()
	docs["bad"] = doc("bad", model.Class("far-left"), "x")

	if _, err := NewStore(c, "vanilla").LoadOrCreateStats(docs); !errors.Is(err, model.ErrInvalidLabel) {
		t.Fatalf("expected ErrInvalidLabel, got %v", err)
	}
	if _, ok := c.Get(cache.Key("stats", CorpusFingerprint("vanilla", docs))); ok {
		t.Error("failed aggregation must not be cached")
	}
}

func TestCorpusFingerprint_OrderIndependent(t *testing.T) {
	a := taxCorpus()
	b := make(map[string]model.Document)
	for id, d := range a {
		b[id] = d
	}
	if CorpusFingerprint("vanilla", a) != CorpusFingerprint("vanilla", b) {
		t.Error("fingerprint depends on map iteration order")
	}

	b["l1"] = doc("l1", model.ClassRight, "tax tax")
	if CorpusFingerprint("vanilla", a) == CorpusFingerprint("vanilla", b) {
		t.Error("label change should change the fingerprint")
	}
}
