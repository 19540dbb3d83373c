package model

import "time"

// Report is the result of classifying one article
type Report struct {
	Subject   string      `json:"subject"`              // Title or short description of the article
	SourceURL string      `json:"source_url,omitempty"` // URL the article was fetched from
	FetchedAt time.Time   `json:"fetched_at"`           // When the classification ran
	FetchMeta *FetchMeta  `json:"fetch_meta,omitempty"` // HTTP metadata when fetched
	Chain     string      `json:"chain"`                // Preprocessing chain used for scoring
	Tokens    int         `json:"tokens"`               // Tokens scored after preprocessing
	Predicted Class       `json:"predicted"`
	Scores    Prediction  `json:"scores"`
	Scale     Scale       `json:"scale"`
	LLM       *LLMOpinion `json:"llm,omitempty"` // Optional LLM opinion (never affects scores)
}

// FetchMeta contains HTTP metadata from fetching the source
type FetchMeta struct {
	StatusCode   int               `json:"status_code"`
	ContentType  string            `json:"content_type,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// LLMOpinion is an LLM's independent bias label for an article.
// It is reported next to the naive Bayes prediction and is never mixed into it.
type LLMOpinion struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Class     Class  `json:"class"`
	Rationale string `json:"rationale,omitempty"`
	Agrees    bool   `json:"agrees"` // Whether it matches the naive Bayes prediction
	Tokens    int    `json:"tokens_used,omitempty"`
}

// SubjectFromDocument picks a display subject for a document
func SubjectFromDocument(doc Document) string {
	switch {
	case doc.Title != "":
		return doc.Title
	case doc.URL != "":
		return doc.URL
	case doc.ID != "":
		return doc.ID
	}
	return "(inline text)"
}
