package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/biaslens/internal/model"
)

// ErrMalformedRecord is matched by every RecordError
var ErrMalformedRecord = errors.New("malformed corpus record")

// RecordError reports a corpus file that failed schema validation
type RecordError struct {
	Path   string
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is matches ErrMalformedRecord
func (e *RecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// record is one Article-Bias-Prediction JSON file. Pointers distinguish
// missing fields from empty ones.
type record struct {
	ID       *string `json:"ID"`
	Content  *string `json:"content"`
	BiasText *string `json:"bias_text"`
	Bias     *int    `json:"bias"`
	Topic    string  `json:"topic"`
	Source   string  `json:"source"`
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Date     string  `json:"date"`
	Authors  string  `json:"authors"`
}

func (r *record) document(path string) (model.Document, error) {
	if r.ID == nil || *r.ID == "" {
		return model.Document{}, &RecordError{Path: path, Reason: `missing "ID"`}
	}
	if r.Content == nil {
		return model.Document{}, &RecordError{Path: path, Reason: `missing "content"`}
	}

	bias, err := r.class()
	if err != nil {
		return model.Document{}, &RecordError{Path: path, Reason: "bad bias label", Err: err}
	}

	return model.Document{
		ID:      *r.ID,
		Content: *r.Content,
		Topic:   r.Topic,
		Source:  r.Source,
		Bias:    bias,
		URL:     r.URL,
		Title:   r.Title,
		Date:    r.Date,
		Authors: r.Authors,
	}, nil
}

// class resolves bias_text, falling back to the numeric bias code
func (r *record) class() (model.Class, error) {
	var fromText, fromCode model.Class
	var err error

	if r.BiasText != nil {
		if fromText, err = model.ParseClass(*r.BiasText); err != nil {
			return model.ClassNone, err
		}
	}
	if r.Bias != nil {
		if fromCode, err = model.ClassFromCode(*r.Bias); err != nil {
			return model.ClassNone, err
		}
	}

	switch {
	case fromText != model.ClassNone && fromCode != model.ClassNone && fromText != fromCode:
		return model.ClassNone, fmt.Errorf("bias_text %q disagrees with bias code %d", *r.BiasText, *r.Bias)
	case fromText != model.ClassNone:
		return fromText, nil
	default:
		return fromCode, nil
	}
}

// ReadFile reads and validates one JSON article
func ReadFile(path string) (model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("read document %s: %w", path, err)
	}
	return ParseDocument(path, data)
}

// ParseDocument validates a JSON article. path is only used in errors.
func ParseDocument(path string, data []byte) (model.Document, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return model.Document{}, &RecordError{Path: path, Reason: "invalid JSON", Err: err}
	}
	return r.document(path)
}

// ReadJSONContent returns only the content field of a JSON article, for
// classifying a single file that need not carry the full schema
func ReadJSONContent(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	var r struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return "", &RecordError{Path: path, Reason: "invalid JSON", Err: err}
	}
	if r.Content == nil {
		return "", &RecordError{Path: path, Reason: `missing "content"`}
	}
	return *r.Content, nil
}
