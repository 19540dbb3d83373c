package textproc

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

// clitics are split off the end of a word the way Penn Treebank
// tokenization does ("don't" -> "do n't", "she's" -> "she 's")
var clitics = []string{"n't", "'s", "'re", "'ve", "'ll", "'d", "'m"}

// Tokens segments text on Unicode word boundaries (UAX #29). Whitespace is
// dropped, punctuation becomes its own token and contractions are split.
func Tokens(text string) []string {
	var out []string

	segments := words.FromString(text)
	for segments.Next() {
		token := segments.Value()
		if isSpace(token) {
			continue
		}
		out = append(out, splitClitic(token)...)
	}

	return out
}

func isSpace(token string) bool {
	for _, r := range token {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func splitClitic(token string) []string {
	// Normalize the typographic apostrophe so "don’t" and "don't" agree
	normalized := strings.ReplaceAll(token, "’", "'")
	lower := strings.ToLower(normalized)

	for _, clitic := range clitics {
		if len(lower) > len(clitic) && strings.HasSuffix(lower, clitic) {
			cut := len(normalized) - len(clitic)
			return []string{normalized[:cut], normalized[cut:]}
		}
	}
	return []string{token}
}
