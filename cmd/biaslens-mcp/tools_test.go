package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/biaslens/internal/corpus"
	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/rank"
)

type fakeBackend struct {
	lastOpts rank.Options
	docs     corpus.Set
}

func (f *fakeBackend) ClassifyText(ctx context.Context, text string) (*model.Report, error) {
	return &model.Report{
		Predicted: model.ClassRight,
		Scores:    model.Prediction{-3, -2.5, -1},
		Tokens:    len(strings.Fields(text)),
		Chain:     "vanilla",
	}, nil
}

func (f *fakeBackend) Query(ctx context.Context, text string, opts rank.Options) ([]model.RankedHit, error) {
	f.lastOpts = opts
	return []model.RankedHit{{
		Document:  model.Document{ID: "r1", Title: "Border", Content: strings.Repeat("word ", 200), Bias: model.ClassRight},
		Predicted: model.ClassRight,
		Score:     2.2,
		Relevance: 2,
	}}, nil
}

func (f *fakeBackend) Document(ctx context.Context, id string) (model.Document, error) {
	return f.docs.Lookup(id)
}

func (f *fakeBackend) LoadSplit(ctx context.Context, split string) (corpus.Set, error) {
	if split == "missing" {
		return nil, errors.New("read split: no such file")
	}
	return f.docs, nil
}

func newFake() *fakeBackend {
	return &fakeBackend{docs: corpus.Set{
		"l1": {ID: "l1", Content: "tax", Bias: model.ClassLeft},
		"r1": {ID: "r1", Content: "border", Bias: model.ClassRight},
		"r2": {ID: "r2", Content: "wall", Bias: model.ClassRight},
	}}
}

// decode unmarshals the single text content of a tool result
func decode(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	if result == nil || len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %+v", result)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	if err := json.Unmarshal([]byte(text.Text), v); err != nil {
		t.Fatalf("decode result: %v\n%s", err, text.Text)
	}
}

func TestClassifyText(t *testing.T) {
	result, _, err := classifyText(context.Background(), newFake(), classifyTextArgs{Text: "border wall now"})
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Predicted string             `json:"predicted"`
		Scores    map[string]float64 `json:"scores"`
		Tokens    int                `json:"tokens"`
	}
	decode(t, result, &out)
	if out.Predicted != "right" || out.Tokens != 3 || out.Scores["right"] != -1 {
		t.Errorf("unexpected result %+v", out)
	}

	if _, _, err := classifyText(context.Background(), newFake(), classifyTextArgs{}); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestSearchArticles(t *testing.T) {
	fake := newFake()
	result, _, err := searchArticles(context.Background(), fake, searchArticlesArgs{Query: "border", Bias: "right", Exclude: "left"})
	if err != nil {
		t.Fatal(err)
	}

	if fake.lastOpts.Prefer != model.ClassRight || fake.lastOpts.Exclude != model.ClassLeft || fake.lastOpts.Limit != 10 {
		t.Errorf("options not passed through: %+v", fake.lastOpts)
	}

	var out struct {
		Results []searchHit `json:"results"`
		Count   int         `json:"count"`
	}
	decode(t, result, &out)
	if out.Count != 1 || out.Results[0].ID != "r1" || out.Results[0].Label != model.ClassRight {
		t.Fatalf("unexpected results %+v", out)
	}
	if n := len([]rune(out.Results[0].Snippet)); n != snippetRunes+1 {
		t.Errorf("snippet should be truncated, got %d runes", n)
	}
}

func TestSearchArticles_InvalidArgs(t *testing.T) {
	tests := []searchArticlesArgs{
		{},
		{Query: "x", Bias: "liberal"},
		{Query: "x", Only: "far-left"},
		{Query: "x", Exclude: "up"},
	}
	for _, args := range tests {
		if _, _, err := searchArticles(context.Background(), newFake(), args); err == nil {
			t.Errorf("expected error for %+v", args)
		}
	}
}

func TestGetDocument(t *testing.T) {
	result, _, err := getDocument(context.Background(), newFake(), getDocumentArgs{ID: "l1"})
	if err != nil {
		t.Fatal(err)
	}
	var doc model.Document
	decode(t, result, &doc)
	if doc.ID != "l1" || doc.Bias != model.ClassLeft {
		t.Errorf("unexpected document %+v", doc)
	}

	if _, _, err := getDocument(context.Background(), newFake(), getDocumentArgs{ID: "zz"}); !errors.Is(err, corpus.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestCorpusStats(t *testing.T) {
	result, _, err := corpusStats(context.Background(), newFake(), corpusStatsArgs{})
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Split   string         `json:"split"`
		Summary corpus.Summary `json:"summary"`
	}
	decode(t, result, &out)
	if out.Split != "all" || out.Summary.Total != 3 || out.Summary.PerClass[model.ClassRight] != 2 {
		t.Errorf("unexpected stats %+v", out)
	}

	if _, _, err := corpusStats(context.Background(), newFake(), corpusStatsArgs{Split: "missing"}); err == nil {
		t.Error("expected error for missing split")
	}
}
