package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	openaiAPIURL = "https://api.openai.com/v1/chat/completions"
)

// OpenAIProvider implements the Provider interface for OpenAI's models and
// for OpenAI-compatible endpoints.
type OpenAIProvider struct {
	Config
	httpClient   *http.Client
	name         string
	label        string
	defaultURL   string
	defaultModel string
}

// OpenAIMessage represents a message in OpenAI's chat format
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIJSONSchema is the json_schema block of response_format
type OpenAIJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// OpenAIResponseFormat requests structured output
type OpenAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *OpenAIJSONSchema `json:"json_schema,omitempty"`
}

// OpenAIRequest represents a request to OpenAI's API
type OpenAIRequest struct {
	Model          string                `json:"model"`
	Messages       []OpenAIMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens"`
	ResponseFormat *OpenAIResponseFormat `json:"response_format,omitempty"`
}

// OpenAIResponse represents a response from OpenAI's API
type OpenAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// NewOpenAIProvider creates a new instance of the OpenAI provider
func NewOpenAIProvider(config Config) *OpenAIProvider {
	return &OpenAIProvider{
		Config:       config,
		httpClient:   config.httpClient(),
		name:         ProviderOpenAI,
		label:        "OpenAI",
		defaultURL:   openaiAPIURL,
		defaultModel: "gpt-4o-mini",
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Generate implements the Provider interface for OpenAI
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("%s API key not provided", p.label)
	}

	messages := make([]OpenAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, OpenAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, OpenAIMessage{Role: "user", Content: req.Prompt})

	reqBody := OpenAIRequest{
		Model:     p.model(req, p.defaultModel),
		Messages:  messages,
		MaxTokens: maxOutputTokens(req),
	}
	if req.Schema.Body != nil {
		reqBody.ResponseFormat = &OpenAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &OpenAIJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Body,
			},
		}
	} else {
		reqBody.ResponseFormat = &OpenAIResponseFormat{Type: "json_object"}
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %v", err)
	}

	apiURL := p.BaseURL
	if apiURL == "" {
		apiURL = p.defaultURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.APIKey))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request to %s API: %w", p.label, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %v", err)
	}

	var openaiResponse OpenAIResponse
	if err := json.Unmarshal(respBody, &openaiResponse); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &StatusError{Provider: p.label, StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), Message: string(respBody)}
		}
		return nil, fmt.Errorf("error unmarshaling response: %v", err)
	}

	if openaiResponse.Error != nil || resp.StatusCode >= http.StatusBadRequest {
		statusErr := &StatusError{Provider: p.label, StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
		if openaiResponse.Error != nil {
			statusErr.Status = openaiResponse.Error.Type
			statusErr.Message = openaiResponse.Error.Message
		}
		return nil, statusErr
	}

	if len(openaiResponse.Choices) == 0 || openaiResponse.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty response from %s API", p.label)
	}

	out := &Response{Text: openaiResponse.Choices[0].Message.Content}
	if openaiResponse.Usage != nil {
		out.Usage = Usage{
			InputTokens:  openaiResponse.Usage.PromptTokens,
			OutputTokens: openaiResponse.Usage.CompletionTokens,
		}
	}
	return out, nil
}
