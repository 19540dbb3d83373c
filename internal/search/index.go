// Package search is a BM25 full-text index over the article corpus, stored
// in SQLite. Title, topic and content are indexed together; every document
// attribute is stored so hits carry the full document.
package search

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ppiankov/biaslens/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// DefaultMaxResults caps the hits returned by Query
const DefaultMaxResults = 1000

// maxVars keeps IN lists under SQLite's bound-parameter limit
const maxVars = 500

// Index manages the search index
type Index struct {
	db         *sql.DB
	path       string
	maxResults int
	logger     *slog.Logger
}

// Stats describes the indexed collection
type Stats struct {
	Documents    int     `json:"documents"`
	Terms        int     `json:"terms"`
	AvgDocLength float64 `json:"avg_doc_length"`
	Fingerprint  string  `json:"fingerprint"`
}

// Open opens or creates the index database at path. A non-positive
// maxResults uses DefaultMaxResults.
func Open(path string, maxResults int, logger *slog.Logger) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	// A single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize index schema: %w", err)
	}

	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Index{db: db, path: path, maxResults: maxResults, logger: logger}, nil
}

// Close closes the database connection
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Fingerprint returns the fingerprint of the collection last built into the index
func (ix *Index) Fingerprint(ctx context.Context) (string, error) {
	return ix.meta(ctx, "fingerprint")
}

// Build indexes docs unless the index already holds a collection with the
// same fingerprint. force rebuilds regardless. It reports whether a build ran.
func (ix *Index) Build(ctx context.Context, docs map[string]model.Document, fingerprint string, force bool) (bool, error) {
	if !force {
		current, err := ix.Fingerprint(ctx)
		if err != nil {
			return false, err
		}
		if current != "" && current == fingerprint {
			ix.logger.Info("search index up to date", "path", ix.path)
			return false, nil
		}
	}

	ix.logger.Info("building search index", "path", ix.path, "documents", len(docs))

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin index transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM term_index", "DELETE FROM documents"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("clear index: %w", err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, title, topic, content, source, bias, url, date, authors, doc_length)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return false, fmt.Errorf("prepare document insert: %w", err)
	}
	defer func() { _ = docStmt.Close() }()

	termStmt, err := tx.PrepareContext(ctx, "INSERT INTO term_index (term, doc_id, term_frequency) VALUES (?, ?, ?)")
	if err != nil {
		return false, fmt.Errorf("prepare term insert: %w", err)
	}
	defer func() { _ = termStmt.Close() }()

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var totalLength int64
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		doc := docs[id]
		tokens := Terms(doc.Title + "\n" + doc.Topic + "\n" + doc.Content)
		totalLength += int64(len(tokens))

		if _, err := docStmt.ExecContext(ctx, doc.ID, doc.Title, doc.Topic, doc.Content, doc.Source,
			string(doc.Bias), doc.URL, doc.Date, doc.Authors, len(tokens)); err != nil {
			return false, fmt.Errorf("index document %s: %w", doc.ID, err)
		}
		for term, freq := range TermFrequency(tokens) {
			if _, err := termStmt.ExecContext(ctx, term, doc.ID, freq); err != nil {
				return false, fmt.Errorf("index term for %s: %w", doc.ID, err)
			}
		}
	}

	avg := 0.0
	if len(ids) > 0 {
		avg = float64(totalLength) / float64(len(ids))
	}
	meta := map[string]string{
		"fingerprint":    fingerprint,
		"total_docs":     strconv.Itoa(len(ids)),
		"avg_doc_length": strconv.FormatFloat(avg, 'g', -1, 64),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx, "UPDATE index_meta SET value = ? WHERE key = ?", value, key); err != nil {
			return false, fmt.Errorf("update index stats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit index: %w", err)
	}
	return true, nil
}

// Stats reports collection statistics
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&st.Documents); err != nil {
		return st, fmt.Errorf("count documents: %w", err)
	}
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT term) FROM term_index").Scan(&st.Terms); err != nil {
		return st, fmt.Errorf("count terms: %w", err)
	}

	avg, err := ix.meta(ctx, "avg_doc_length")
	if err != nil {
		return st, err
	}
	st.AvgDocLength, _ = strconv.ParseFloat(avg, 64)

	st.Fingerprint, err = ix.Fingerprint(ctx)
	return st, err
}

// Query returns documents matching any term of text, ranked by BM25.
// Text without word terms matches nothing.
func (ix *Index) Query(ctx context.Context, text string) ([]model.Hit, error) {
	terms := uniqueTerms(Terms(text))
	if len(terms) == 0 {
		return []model.Hit{}, nil
	}

	totalDocs, avgLength, err := ix.corpusStats(ctx)
	if err != nil {
		return nil, err
	}
	scorer := NewBM25Scorer(avgLength, totalDocs)

	type candidate struct {
		id        string
		docLength int
		freqs     map[string]int
	}
	candidates := make(map[string]*candidate)
	docFreqs := make(map[string]int)

	for _, chunk := range chunks(terms, maxVars) {
		rows, err := ix.db.QueryContext(ctx, `
			SELECT ti.doc_id, ti.term, ti.term_frequency, d.doc_length
			FROM term_index ti
			JOIN documents d ON d.id = ti.doc_id
			WHERE ti.term IN (`+placeholders(len(chunk))+`)`, anySlice(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}

		for rows.Next() {
			var id, term string
			var freq, length int
			if err := rows.Scan(&id, &term, &freq, &length); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan search row: %w", err)
			}
			c, ok := candidates[id]
			if !ok {
				c = &candidate{id: id, docLength: length, freqs: make(map[string]int)}
				candidates[id] = c
			}
			c.freqs[term] = freq
			docFreqs[term]++
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
	}

	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{id: c.id, score: scorer.Score(terms, c.freqs, c.docLength, docFreqs)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > ix.maxResults {
		ranked = ranked[:ix.maxResults]
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}
	docs, err := ix.documents(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]model.Hit, 0, len(ranked))
	for _, r := range ranked {
		doc, ok := docs[r.id]
		if !ok {
			continue
		}
		hits = append(hits, model.Hit{Document: doc, Score: r.score})
	}
	return hits, nil
}

// Document returns a stored document by ID
func (ix *Index) Document(ctx context.Context, id string) (model.Document, error) {
	docs, err := ix.documents(ctx, []string{id})
	if err != nil {
		return model.Document{}, err
	}
	doc, ok := docs[id]
	if !ok {
		return model.Document{}, fmt.Errorf("document %s: %w", id, sql.ErrNoRows)
	}
	return doc, nil
}

func (ix *Index) documents(ctx context.Context, ids []string) (map[string]model.Document, error) {
	out := make(map[string]model.Document, len(ids))
	for _, chunk := range chunks(ids, maxVars) {
		rows, err := ix.db.QueryContext(ctx, `
			SELECT id, title, topic, content, source, bias, url, date, authors
			FROM documents WHERE id IN (`+placeholders(len(chunk))+`)`, anySlice(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}

		for rows.Next() {
			var doc model.Document
			var bias string
			if err := rows.Scan(&doc.ID, &doc.Title, &doc.Topic, &doc.Content, &doc.Source,
				&bias, &doc.URL, &doc.Date, &doc.Authors); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan document: %w", err)
			}
			doc.Bias = model.Class(bias)
			out[doc.ID] = doc
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}
	}
	return out, nil
}

func (ix *Index) corpusStats(ctx context.Context) (int, float64, error) {
	total, err := ix.meta(ctx, "total_docs")
	if err != nil {
		return 0, 0, err
	}
	avg, err := ix.meta(ctx, "avg_doc_length")
	if err != nil {
		return 0, 0, err
	}
	n, _ := strconv.Atoi(total)
	a, _ := strconv.ParseFloat(avg, 64)
	return n, a, nil
}

func (ix *Index) meta(ctx context.Context, key string) (string, error) {
	var value string
	err := ix.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read index %s: %w", key, err)
	}
	return value, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func chunks(values []string, size int) [][]string {
	var out [][]string
	for len(values) > size {
		out = append(out, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}
