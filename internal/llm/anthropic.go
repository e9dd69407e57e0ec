package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicAPIURL = "https://api.anthropic.com/v1/messages"
)

// AnthropicProvider implements the Provider interface for Anthropic's Claude.
// The messages API has no response schema parameter, so the schema is
// appended to the system prompt and the reply is expected to be bare JSON.
type AnthropicProvider struct {
	Config
	httpClient *http.Client
	version    string
}

// AnthropicMessage represents the request structure for Anthropic's API
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicRequest represents a request to Anthropic's API
type AnthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []AnthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

// AnthropicResponse represents a response from Anthropic's API
type AnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicProvider creates a new instance of the Anthropic provider
func NewAnthropicProvider(config Config) *AnthropicProvider {
	return &AnthropicProvider{
		Config:     config,
		httpClient: config.httpClient(),
		version:    "2023-06-01",
	}
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// Generate implements the Provider interface for Anthropic
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key not provided")
	}

	system := req.System
	if req.Schema.Body != nil {
		schemaJSON, err := json.Marshal(req.Schema.Body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling schema: %v", err)
		}
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else. " +
			"It must match this JSON schema:\n" + string(schemaJSON))
	}

	reqBody := AnthropicRequest{
		Model:     p.model(req, "claude-3-5-haiku-latest"),
		System:    system,
		Messages:  []AnthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens: maxOutputTokens(req),
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %v", err)
	}

	apiURL := p.BaseURL
	if apiURL == "" {
		apiURL = anthropicAPIURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.APIKey)
	httpReq.Header.Set("anthropic-version", p.version)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request to Anthropic API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %v", err)
	}

	var anthropicResponse AnthropicResponse
	if err := json.Unmarshal(respBody, &anthropicResponse); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &StatusError{Provider: "Anthropic", StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), Message: string(respBody)}
		}
		return nil, fmt.Errorf("error unmarshaling response: %v", err)
	}

	if anthropicResponse.Error != nil || resp.StatusCode >= http.StatusBadRequest {
		statusErr := &StatusError{Provider: "Anthropic", StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
		if anthropicResponse.Error != nil {
			statusErr.Status = anthropicResponse.Error.Type
			statusErr.Message = anthropicResponse.Error.Message
		}
		return nil, statusErr
	}

	var text strings.Builder
	for _, block := range anthropicResponse.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Anthropic API")
	}

	out := &Response{Text: text.String()}
	if anthropicResponse.Usage != nil {
		out.Usage = Usage{
			InputTokens:  anthropicResponse.Usage.InputTokens,
			OutputTokens: anthropicResponse.Usage.OutputTokens,
		}
	}
	return out, nil
}
