package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/biaslens/internal/corpus"
	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/rank"
)

// snippetRunes bounds the content returned with each search hit
const snippetRunes = 300

// backend is the part of the pipeline the tools use
type backend interface {
	ClassifyText(ctx context.Context, text string) (*model.Report, error)
	Query(ctx context.Context, text string, opts rank.Options) ([]model.RankedHit, error)
	Document(ctx context.Context, id string) (model.Document, error)
	LoadSplit(ctx context.Context, split string) (corpus.Set, error)
}

func addTools(server *mcp.Server, b backend) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_text",
		Description: "Predict whether a news text leans left, center or right. Returns base-10 log-probability scores per class and how strongly the text leans.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args classifyTextArgs) (*mcp.CallToolResult, any, error) {
		return classifyText(ctx, b, args)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_articles",
		Description: "Full-text search over the labeled news corpus. Hits are re-ranked by predicted leaning: bias boosts one class, only keeps one class, exclude drops one class.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchArticlesArgs) (*mcp.CallToolResult, any, error) {
		return searchArticles(ctx, b, args)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_document",
		Description: "Get the full text and metadata of a corpus article by ID",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getDocumentArgs) (*mcp.CallToolResult, any, error) {
		return getDocument(ctx, b, args)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "corpus_stats",
		Description: "Count corpus articles per labeled leaning, for the whole corpus or one split (train, valid, test)",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args corpusStatsArgs) (*mcp.CallToolResult, any, error) {
		return corpusStats(ctx, b, args)
	})
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	resultJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(resultJSON)},
		},
	}, nil, nil
}

// Tool 1: classify_text
type classifyTextArgs struct {
	Text string `json:"text" jsonschema:"Article text to classify"`
}

func classifyText(ctx context.Context, b backend, args classifyTextArgs) (*mcp.CallToolResult, any, error) {
	if args.Text == "" {
		return nil, nil, fmt.Errorf("text is required")
	}

	report, err := b.ClassifyText(ctx, args.Text)
	if err != nil {
		return nil, nil, err
	}

	return textResult(map[string]any{
		"predicted": report.Predicted,
		"scores":    report.Scores,
		"scale":     report.Scale,
		"tokens":    report.Tokens,
		"chain":     report.Chain,
	})
}

// Tool 2: search_articles
type searchArticlesArgs struct {
	Query   string `json:"query" jsonschema:"Search text"`
	Bias    string `json:"bias,omitempty" jsonschema:"Preferred leaning to boost: left, center or right"`
	Only    string `json:"only,omitempty" jsonschema:"Keep only hits predicted as this leaning"`
	Exclude string `json:"exclude,omitempty" jsonschema:"Drop hits predicted as this leaning"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10)"`
}

type searchHit struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Source    string      `json:"source,omitempty"`
	Date      string      `json:"date,omitempty"`
	URL       string      `json:"url,omitempty"`
	Label     model.Class `json:"label,omitempty"`
	Predicted model.Class `json:"predicted"`
	Score     float64     `json:"score"`
	Relevance float64     `json:"relevance"`
	Snippet   string      `json:"snippet"`
}

func searchArticles(ctx context.Context, b backend, args searchArticlesArgs) (*mcp.CallToolResult, any, error) {
	if args.Query == "" {
		return nil, nil, fmt.Errorf("query is required")
	}
	if args.Limit == 0 {
		args.Limit = 10
	}

	var opts rank.Options
	var err error
	if opts.Prefer, err = model.ParseClass(args.Bias); err != nil {
		return nil, nil, fmt.Errorf("bias: %w", err)
	}
	if opts.Only, err = model.ParseClass(args.Only); err != nil {
		return nil, nil, fmt.Errorf("only: %w", err)
	}
	if opts.Exclude, err = model.ParseClass(args.Exclude); err != nil {
		return nil, nil, fmt.Errorf("exclude: %w", err)
	}
	opts.Limit = args.Limit

	hits, err := b.Query(ctx, args.Query, opts)
	if err != nil {
		return nil, nil, err
	}

	out := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, searchHit{
			ID:        h.Document.ID,
			Title:     h.Document.Title,
			Source:    h.Document.Source,
			Date:      h.Document.Date,
			URL:       h.Document.URL,
			Label:     h.Document.Bias,
			Predicted: h.Predicted,
			Score:     h.Score,
			Relevance: h.Relevance,
			Snippet:   snippet(h.Document.Content, snippetRunes),
		})
	}

	return textResult(map[string]any{
		"results": out,
		"count":   len(out),
	})
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Tool 3: get_document
type getDocumentArgs struct {
	ID string `json:"id" jsonschema:"Document ID as returned by search_articles"`
}

func getDocument(ctx context.Context, b backend, args getDocumentArgs) (*mcp.CallToolResult, any, error) {
	if args.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}
	doc, err := b.Document(ctx, args.ID)
	if err != nil {
		return nil, nil, err
	}
	return textResult(doc)
}

// Tool 4: corpus_stats
type corpusStatsArgs struct {
	Split string `json:"split,omitempty" jsonschema:"Split name (train, valid, test). Leave empty for the whole corpus."`
}

func corpusStats(ctx context.Context, b backend, args corpusStatsArgs) (*mcp.CallToolResult, any, error) {
	set, err := b.LoadSplit(ctx, args.Split)
	if err != nil {
		return nil, nil, err
	}

	split := args.Split
	if split == "" {
		split = "all"
	}
	return textResult(map[string]any{
		"split":   split,
		"summary": set.Summarize(),
	})
}
