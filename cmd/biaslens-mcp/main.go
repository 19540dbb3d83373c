// Package main implements an MCP (Model Context Protocol) server that lets
// AI assistants classify article text and search the labeled news corpus
// with bias-aware ranking.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/biaslens/internal/cli"
	"github.com/ppiankov/biaslens/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	// stdout carries the protocol, so everything else goes to stderr
	log.SetOutput(os.Stderr)

	cfg, err := cli.LoadConfig(os.Getenv("BIASLENS_CONFIG"))
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	p, err := pipeline.New(cfg, pipeline.WithLogger(logger))
	if err != nil {
		log.Fatalf("Pipeline error: %v", err)
	}
	defer func() { _ = p.Close() }()

	opts := &mcp.ServerOptions{
		Instructions: "This server classifies the political leaning (left, center, right) of news text with a naive Bayes model and searches a labeled news corpus, re-ranking results toward a preferred leaning.",
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "biaslens-mcp",
		Version: "0.1.0",
	}, opts)

	addTools(server, p)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Printf("Server error: %v", err)
	}
}
