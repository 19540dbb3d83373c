package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/biaslens/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// fixture lays out a tiny dataset with three documents and a train split
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "jsons", "a1.json"),
		`{"ID":"a1","content":"tax cuts","bias_text":"left","bias":0,"title":"Taxes","topic":"economy","content_original":"x","source_url":"y"}`)
	writeFile(t, filepath.Join(root, "jsons", "b2.json"),
		`{"ID":"b2","content":"border wall","bias":2,"title":"Border"}`)
	writeFile(t, filepath.Join(root, "jsons", "c3.json"),
		`{"ID":"c3","content":"budget","bias_text":"center"}`)
	writeFile(t, filepath.Join(root, "splits", "random", "train.tsv"),
		"ID\tbias\na1\t0\nb2\t2\n")
	writeFile(t, filepath.Join(root, "splits", "random", "test.tsv"),
		"ID\tbias\nc3\t1\n")
	return root
}

func TestReadAll(t *testing.T) {
	r := NewReader(fixture(t), "random", 2, nil)

	set, err := r.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(set) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(set))
	}

	doc, err := set.Lookup("a1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Bias != model.ClassLeft || doc.Title != "Taxes" || doc.Topic != "economy" {
		t.Errorf("unexpected document %+v", doc)
	}
	if set["b2"].Bias != model.ClassRight {
		t.Errorf("numeric bias code should map to right, got %s", set["b2"].Bias)
	}
	if _, err := set.Lookup("c3"); err != nil {
		t.Errorf("Lookup(c3): %v", err)
	}
}

func TestReadSplit(t *testing.T) {
	r := NewReader(fixture(t), "", 2, nil)

	train, err := r.ReadSplit(context.Background(), "train")
	if err != nil {
		t.Fatalf("ReadSplit: %v", err)
	}
	if len(train) != 2 {
		t.Fatalf("expected 2 train documents, got %d", len(train))
	}

	sum := train.Summarize()
	if sum.Total != 2 || sum.PerClass[model.ClassLeft] != 1 || sum.PerClass[model.ClassRight] != 1 || sum.PerClass[model.ClassCenter] != 0 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestReadSplit_Missing(t *testing.T) {
	r := NewReader(fixture(t), "media", 1, nil)

	_, err := r.ReadSplit(context.Background(), "train")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if !strings.Contains(err.Error(), filepath.Join("splits", "media", "train.tsv")) {
		t.Errorf("error should name the split path: %v", err)
	}
}

func TestReadSplit_LabelConflict(t *testing.T) {
	root := fixture(t)
	writeFile(t, filepath.Join(root, "splits", "random", "valid.tsv"), "ID\tbias\na1\t2\n")

	_, err := NewReader(root, "random", 1, nil).ReadSplit(context.Background(), "valid")
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestReadSplit_BadRow(t *testing.T) {
	root := fixture(t)
	writeFile(t, filepath.Join(root, "splits", "random", "valid.tsv"), "ID\tbias\na1\tseven\n")

	if _, err := NewReader(root, "random", 1, nil).ReadSplit(context.Background(), "valid"); err == nil {
		t.Fatal("expected error for non-numeric bias code")
	}
}

func TestParseDocument_Validation(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
		bias    model.Class
	}{
		{"valid text label", `{"ID":"x","content":"c","bias_text":"right"}`, false, model.ClassRight},
		{"valid code", `{"ID":"x","content":"c","bias":1}`, false, model.ClassCenter},
		{"unlabeled", `{"ID":"x","content":"c"}`, false, model.ClassNone},
		{"missing ID", `{"content":"c"}`, true, ""},
		{"missing content", `{"ID":"x"}`, true, ""},
		{"numeric ID", `{"ID":7,"content":"c"}`, true, ""},
		{"unknown label", `{"ID":"x","content":"c","bias_text":"green"}`, true, ""},
		{"code out of range", `{"ID":"x","content":"c","bias":3}`, true, ""},
		{"conflict", `{"ID":"x","content":"c","bias_text":"left","bias":2}`, true, ""},
		{"not JSON", `{`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument("doc.json", []byte(tt.json))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var recErr *RecordError
				if !errors.As(err, &recErr) || recErr.Path != "doc.json" {
					t.Errorf("expected RecordError naming doc.json, got %v", err)
				}
				return
			}
			if doc.Bias != tt.bias {
				t.Errorf("Bias = %s, want %s", doc.Bias, tt.bias)
			}
		})
	}
}

func TestReadAll_MalformedFile(t *testing.T) {
	root := fixture(t)
	writeFile(t, filepath.Join(root, "jsons", "bad.json"), `{"content":"no id"}`)

	_, err := NewReader(root, "random", 2, nil).ReadAll(context.Background())
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad.json") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestLookup_NotFound(t *testing.T) {
	set := Set{}
	if _, err := set.Lookup("nope"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestReadJSONContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.json")
	writeFile(t, path, `{"content":"only content here"}`)

	content, err := ReadJSONContent(path)
	if err != nil {
		t.Fatal(err)
	}
	if content != "only content here" {
		t.Errorf("content = %q", content)
	}

	writeFile(t, path, `{"title":"no content"}`)
	if _, err := ReadJSONContent(path); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestReader_ReadDocument(t *testing.T) {
	r := NewReader(fixture(t), "random", 1, nil)

	doc, err := r.ReadDocument("c3")
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if doc.Bias != model.ClassCenter || doc.Content != "budget" {
		t.Errorf("unexpected document %+v", doc)
	}

	for _, id := range []string{"zz9", "", "../jsons/a1"} {
		if _, err := r.ReadDocument(id); !errors.Is(err, ErrDocumentNotFound) {
			t.Errorf("ReadDocument(%q): expected ErrDocumentNotFound, got %v", id, err)
		}
	}
}
