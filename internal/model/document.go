package model

// Document is a single news article. Content is the only field the
// classifier reads; everything else is carried through untouched.
type Document struct {
	ID      string `json:"ID"`
	Content string `json:"content"`
	Topic   string `json:"topic,omitempty"`
	Source  string `json:"source,omitempty"`
	Bias    Class  `json:"bias_text,omitempty"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Date    string `json:"date,omitempty"`
	Authors string `json:"authors,omitempty"`
}

// WithContent returns a copy of d with its content replaced
func (d Document) WithContent(content string) Document {
	d.Content = content
	return d
}

// Hit is a search result as returned by the full-text index
type Hit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"` // Relevance, higher is better
}

// RankedHit is a search result after bias adjustment
type RankedHit struct {
	Document  Document   `json:"document"`
	Predicted Class      `json:"predicted"`
	Score     float64    `json:"score"`     // Adjusted relevance
	Relevance float64    `json:"relevance"` // Relevance before adjustment
	Scores    Prediction `json:"scores"`
}
