package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	openAIDefaultModel = openai.GPT4oMini
	openAISystemPrompt = "You label the political leaning of news articles. You reply with JSON only."
)

// ErrEmptyReply is returned when the API answers without a choice
var ErrEmptyReply = errors.New("openai: empty reply")

// OpenAIProvider labels articles with the chat completions API. BaseURL
// points it at any compatible endpoint.
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a provider. The API key is required.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required (set llm.api_key or OPENAI_API_KEY)")
	}

	cc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cc.BaseURL = config.BaseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cc), config: config}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable lists models, the cheapest call that proves the key works
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Classify asks for a {"label", "rationale"} object and parses it
func (p *OpenAIProvider) Classify(ctx context.Context, req OpinionRequest) (*OpinionResponse, error) {
	chat := p.chatRequest(req)

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return nil, describeAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyReply
	}

	class, rationale, err := ParseOpinion(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return &OpinionResponse{
		Class:      class,
		Rationale:  rationale,
		Model:      chat.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// chatRequest fills request fields from the provider config. Temperature is
// zero so the same article gets the same label.
func (p *OpenAIProvider) chatRequest(req OpinionRequest) openai.ChatCompletionRequest {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Title, req.Text)
	}
	maxTokens := firstPositive(req.MaxTokens, p.config.MaxTokens, DefaultConfig().MaxTokens)

	return openai.ChatCompletionRequest{
		Model: firstNonEmpty(req.Model, p.config.Model, openAIDefaultModel),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
}

func (p *OpenAIProvider) timeout() time.Duration {
	return time.Duration(firstPositive(p.config.Timeout, DefaultConfig().Timeout)) * time.Second
}

// describeAPIError keeps the HTTP status visible for API failures
func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai: %s (%d %s): %w", apiErr.Message, apiErr.HTTPStatusCode, http.StatusText(apiErr.HTTPStatusCode), err)
	}
	return fmt.Errorf("openai: %w", err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
