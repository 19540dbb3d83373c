// Package corpus reads the Article-Bias-Prediction dataset layout:
//
//	<root>/jsons/<ID>.json
//	<root>/splits/<scheme>/{train,valid,test}.tsv
//
// Split files start with an "ID\tbias" header row followed by one
// document ID and numeric bias code per line.
package corpus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/worker"
)

// ErrDocumentNotFound is returned when a document ID is not in the set
var ErrDocumentNotFound = errors.New("document not found")

// Set is a loaded collection keyed by document ID
type Set map[string]model.Document

// Lookup returns the document with the given ID
func (s Set) Lookup(id string) (model.Document, error) {
	doc, ok := s[id]
	if !ok {
		return model.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

// Summary counts documents per class
type Summary struct {
	Total     int                 `json:"total"`
	Unlabeled int                 `json:"unlabeled"`
	PerClass  map[model.Class]int `json:"per_class"`
}

// Summarize counts the documents of s per class
func (s Set) Summarize() Summary {
	sum := Summary{PerClass: make(map[model.Class]int, model.NumClasses)}
	for _, c := range model.Classes {
		sum.PerClass[c] = 0
	}
	for _, doc := range s {
		sum.Total++
		if doc.Bias.Valid() {
			sum.PerClass[doc.Bias]++
		} else {
			sum.Unlabeled++
		}
	}
	return sum
}

// Reader loads documents from a dataset root
type Reader struct {
	root    string
	scheme  string
	workers int
	logger  *slog.Logger
}

// NewReader creates a reader. scheme selects the splits subdirectory
// ("random" or "media"); workers bounds concurrent file reads.
func NewReader(root, scheme string, workers int, logger *slog.Logger) *Reader {
	if scheme == "" {
		scheme = "random"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reader{root: root, scheme: scheme, workers: workers, logger: logger}
}

// Root returns the dataset root
func (r *Reader) Root() string {
	return r.root
}

func (r *Reader) jsonPath(id string) string {
	return filepath.Join(r.root, "jsons", id+".json")
}

// ReadDocument loads a single document by ID
func (r *Reader) ReadDocument(id string) (model.Document, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return model.Document{}, fmt.Errorf("%w: %q", ErrDocumentNotFound, id)
	}
	doc, err := ReadFile(r.jsonPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return model.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, err
}

// SplitPath returns the TSV file for a split name
func (r *Reader) SplitPath(split string) string {
	return filepath.Join(r.root, "splits", r.scheme, split+".tsv")
}

// ReadAll loads every JSON document under <root>/jsons
func (r *Reader) ReadAll(ctx context.Context) (Set, error) {
	dir := filepath.Join(r.root, "jsons")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	r.logger.Info("reading corpus", "dir", dir, "files", len(paths))
	return r.readFiles(ctx, paths, nil)
}

// SplitEntry is one row of a split file
type SplitEntry struct {
	ID    string
	Class model.Class
}

// ReadSplitIndex parses a split TSV without loading the documents
func (r *Reader) ReadSplitIndex(split string) ([]SplitEntry, error) {
	path := r.SplitPath(split)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read split %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var entries []SplitEntry
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 {
			continue // header
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Split(text, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("read split %s:%d: expected 2 tab-separated fields, got %d", path, line, len(fields))
		}
		code, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("read split %s:%d: bias code: %w", path, line, err)
		}
		class, err := model.ClassFromCode(code)
		if err != nil {
			return nil, fmt.Errorf("read split %s:%d: %w", path, line, err)
		}
		entries = append(entries, SplitEntry{ID: strings.TrimSpace(fields[0]), Class: class})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read split %s: %w", path, err)
	}
	return entries, nil
}

// ReadSplit loads the documents listed in a split ("train", "valid" or
// "test"). A document whose label disagrees with the split file is rejected.
func (r *Reader) ReadSplit(ctx context.Context, split string) (Set, error) {
	entries, err := r.ReadSplitIndex(split)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(entries))
	expected := make(map[string]model.Class, len(entries))
	for i, e := range entries {
		paths[i] = r.jsonPath(e.ID)
		expected[paths[i]] = e.Class
	}

	r.logger.Info("reading split", "split", split, "path", r.SplitPath(split), "documents", len(entries))
	return r.readFiles(ctx, paths, expected)
}

func (r *Reader) readFiles(ctx context.Context, paths []string, expected map[string]model.Class) (Set, error) {
	docs, err := worker.Map(ctx, r.workers, paths, func(_ context.Context, path string) (model.Document, error) {
		return readLabeled(path, expected[path])
	})
	if err != nil {
		return nil, err
	}

	set := make(Set, len(docs))
	for _, doc := range docs {
		set[doc.ID] = doc
	}
	return set, nil
}

// readLabeled reads one document and reconciles it with the label the split
// file assigns. An unlabeled document takes the split label.
func readLabeled(path string, want model.Class) (model.Document, error) {
	doc, err := ReadFile(path)
	if err != nil || want == model.ClassNone {
		return doc, err
	}

	switch doc.Bias {
	case model.ClassNone:
		doc.Bias = want
	case want:
	default:
		return model.Document{}, &RecordError{
			Path:   path,
			Reason: fmt.Sprintf("label %s disagrees with split label %s", doc.Bias, want),
		}
	}
	return doc, nil
}
