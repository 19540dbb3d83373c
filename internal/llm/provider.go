package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/biaslens/internal/model"
)

// ErrNoLabel is returned when a response carries no recognizable class
var ErrNoLabel = errors.New("llm response has no bias label")

// maxPromptChars bounds the article text sent to the provider
const maxPromptChars = 8000

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Classify asks the model for its own bias label of an article
	Classify(ctx context.Context, req OpinionRequest) (*OpinionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// OpinionRequest contains the article to label
type OpinionRequest struct {
	Title string
	Text  string

	// Prompt overrides the default prompt when set
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// OpinionResponse contains the model's label
type OpinionResponse struct {
	Class      model.Class
	Rationale  string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai" or "" (disabled)
	Provider string

	// Model name (provider-specific)
	Model string

	APIKey string

	// BaseURL for OpenAI-compatible endpoints
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 300,
	}
}

// BuildPrompt constructs the default labeling prompt
func BuildPrompt(title, text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxPromptChars {
		text = truncateUTF8(text, maxPromptChars) + "\n[truncated]"
	}
	if title == "" {
		title = "(untitled)"
	}

	return fmt.Sprintf(`Classify the political leaning of the news article below as exactly one of: left, center, right.

Judge the framing, word choice and sourcing of the article itself, not the topic.

Answer with a single JSON object and nothing else:
{"label": "left|center|right", "rationale": "one or two sentences"}

Title: %s

Article:
%s
`, title, text)
}

type opinionJSON struct {
	Label     string `json:"label"`
	Rationale string `json:"rationale"`
}

var labelPattern = regexp.MustCompile(`(?i)\b(left|center|centre|right)\b`)

// ParseOpinion extracts the label and rationale from a model reply. It
// accepts the requested JSON object, optionally wrapped in a code fence,
// and falls back to the first class name found in free text.
func ParseOpinion(reply string) (model.Class, string, error) {
	body := strings.TrimSpace(reply)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		var parsed opinionJSON
		if err := json.Unmarshal([]byte(body[start:end+1]), &parsed); err == nil {
			if class, ok := labelClass(parsed.Label); ok {
				return class, strings.TrimSpace(parsed.Rationale), nil
			}
		}
	}

	if m := labelPattern.FindStringSubmatch(body); m != nil {
		if class, ok := labelClass(m[1]); ok {
			return class, body, nil
		}
	}

	return model.ClassNone, "", ErrNoLabel
}

func labelClass(label string) (model.Class, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "centre" {
		label = "center"
	}
	class, err := model.ParseClass(label)
	if err != nil || class == model.ClassNone {
		return model.ClassNone, false
	}
	return class, true
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Step back to a rune boundary
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
