package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/biaslens/internal/model"
)

// Advisor asks an LLM for a second opinion on an article's leaning. The
// opinion is reported next to the naive Bayes prediction and never changes it.
type Advisor struct {
	provider Provider
	config   Config
}

// NewAdvisor creates an advisor. An empty provider yields a disabled advisor.
func NewAdvisor(config Config) (*Advisor, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Advisor{provider: provider, config: config}, nil
}

// NewAdvisorWithProvider wraps an existing provider
func NewAdvisorWithProvider(provider Provider, config Config) *Advisor {
	return &Advisor{provider: provider, config: config}
}

// IsEnabled reports whether a provider is configured
func (a *Advisor) IsEnabled() bool {
	return a != nil && a.provider != nil
}

// ProviderName returns the configured provider name
func (a *Advisor) ProviderName() string {
	if !a.IsEnabled() {
		return ""
	}
	return a.provider.Name()
}

// Check verifies the provider is reachable
func (a *Advisor) Check(ctx context.Context) error {
	if !a.IsEnabled() {
		return nil
	}
	if !a.provider.IsAvailable(ctx) {
		return fmt.Errorf("LLM provider %s is not available (check API key and network)", a.provider.Name())
	}
	return nil
}

// Opinion labels doc and compares the label with predicted. It returns nil
// without error when the advisor is disabled.
func (a *Advisor) Opinion(ctx context.Context, doc model.Document, predicted model.Class) (*model.LLMOpinion, error) {
	if !a.IsEnabled() {
		return nil, nil
	}

	resp, err := a.provider.Classify(ctx, OpinionRequest{
		Title:     doc.Title,
		Text:      doc.Content,
		Model:     a.config.Model,
		MaxTokens: a.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s opinion failed: %w", a.provider.Name(), err)
	}

	return &model.LLMOpinion{
		Provider:  a.provider.Name(),
		Model:     resp.Model,
		Class:     resp.Class,
		Rationale: resp.Rationale,
		Agrees:    resp.Class == predicted,
		Tokens:    resp.TokensUsed,
	}, nil
}
