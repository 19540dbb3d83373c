package search

import (
	"math"
	"strings"
	"unicode"

	"github.com/ppiankov/biaslens/internal/textproc"
)

// BM25 parameters (standard values)
const (
	k1 = 1.5  // Term frequency saturation
	b  = 0.75 // Length normalization
)

// BM25Scorer calculates relevance scores using the BM25 algorithm
type BM25Scorer struct {
	avgDocLength float64
	totalDocs    int
}

// NewBM25Scorer creates a new BM25 scorer with corpus statistics
func NewBM25Scorer(avgDocLength float64, totalDocs int) *BM25Scorer {
	return &BM25Scorer{
		avgDocLength: avgDocLength,
		totalDocs:    totalDocs,
	}
}

// IDF is log(1 + (N - df + 0.5) / (df + 0.5)). The +1 keeps it positive
// for terms found in more than half of the documents.
func (s *BM25Scorer) IDF(df int) float64 {
	n := float64(s.totalDocs)
	d := float64(df)
	return math.Log(1 + (n-d+0.5)/(d+0.5))
}

// Score calculates BM25 score for a document given query terms
// termFreqs: map of term -> frequency in document
// docLength: total number of terms in document
// docFreqs: map of term -> number of documents containing term
func (s *BM25Scorer) Score(queryTerms []string, termFreqs map[string]int, docLength int, docFreqs map[string]int) float64 {
	score := 0.0

	avg := s.avgDocLength
	if avg <= 0 {
		avg = 1
	}

	for _, term := range queryTerms {
		tf := float64(termFreqs[term])
		if tf == 0 {
			continue
		}

		df := docFreqs[term]
		if df == 0 {
			continue
		}

		tfNorm := (tf * (k1 + 1)) / (tf + k1*(1-b+b*float64(docLength)/avg))
		score += s.IDF(df) * tfNorm
	}

	return score
}

// Terms lower-cases text and returns its word tokens, dropping punctuation
func Terms(text string) []string {
	var terms []string
	for _, tok := range textproc.Tokens(text) {
		if !hasWordRune(tok) {
			continue
		}
		terms = append(terms, strings.ToLower(tok))
	}
	return terms
}

// uniqueTerms returns terms without duplicates, first occurrence order kept
func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func hasWordRune(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// TermFrequency counts occurrences of each term in tokens
func TermFrequency(tokens []string) map[string]int {
	freqs := make(map[string]int)
	for _, token := range tokens {
		freqs[token]++
	}
	return freqs
}
