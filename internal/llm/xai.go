package llm

const (
	xaiAPIURL = "https://api.x.ai/v1/chat/completions"
)

// NewXAIProvider creates a provider for X.AI's Grok models, which speak the
// OpenAI chat completions protocol.
func NewXAIProvider(config Config) *OpenAIProvider {
	return &OpenAIProvider{
		Config:       config,
		httpClient:   config.httpClient(),
		name:         ProviderXAI,
		label:        "X.AI",
		defaultURL:   xaiAPIURL,
		defaultModel: "grok-3-mini",
	}
}
