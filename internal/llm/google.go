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
	googleAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"
)

// GoogleProvider implements the Provider interface for Google's Gemini models
// using the generateContent structured output mode.
type GoogleProvider struct {
	Config
	httpClient *http.Client
}

// GooglePart is a single text part
type GooglePart struct {
	Text string `json:"text"`
}

// GoogleContent represents content in Google's Gemini API format
type GoogleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GooglePart `json:"parts"`
}

// GoogleGenerationConfig carries the structured output settings
type GoogleGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
	MaxOutputTokens  int            `json:"maxOutputTokens"`
}

// GoogleRequest represents a request to Google's Gemini API
type GoogleRequest struct {
	SystemInstruction *GoogleContent         `json:"systemInstruction,omitempty"`
	Contents          []GoogleContent        `json:"contents"`
	GenerationConfig  GoogleGenerationConfig `json:"generationConfig"`
}

// GoogleResponse represents a response from Google's Gemini API
type GoogleResponse struct {
	Candidates []struct {
		Content      GoogleContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGoogleProvider creates a new instance of the Google provider
func NewGoogleProvider(config Config) *GoogleProvider {
	return &GoogleProvider{
		Config:     config,
		httpClient: config.httpClient(),
	}
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return ProviderGoogle
}

// Generate implements the Provider interface for Google
func (p *GoogleProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("Google API key not provided")
	}

	model := p.model(req, "gemini-2.0-flash")

	reqBody := GoogleRequest{
		Contents: []GoogleContent{
			{Role: "user", Parts: []GooglePart{{Text: req.Prompt}}},
		},
		GenerationConfig: GoogleGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   toGoogleSchema(req.Schema.Body),
			MaxOutputTokens:  maxOutputTokens(req),
		},
	}
	if req.System != "" {
		reqBody.SystemInstruction = &GoogleContent{Parts: []GooglePart{{Text: req.System}}}
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %v", err)
	}

	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = googleAPIURL
	}
	apiURL := fmt.Sprintf("%s/%s:generateContent", strings.TrimRight(baseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request to Google API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %v", err)
	}

	var googleResponse GoogleResponse
	if err := json.Unmarshal(respBody, &googleResponse); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &StatusError{Provider: "Google", StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), Message: string(respBody)}
		}
		return nil, fmt.Errorf("error unmarshaling response: %v", err)
	}

	if googleResponse.Error != nil {
		code := googleResponse.Error.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &StatusError{
			Provider:   "Google",
			StatusCode: code,
			Status:     googleResponse.Error.Status,
			Message:    googleResponse.Error.Message,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{Provider: "Google", StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), Message: string(respBody)}
	}

	if len(googleResponse.Candidates) == 0 || len(googleResponse.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Google API")
	}

	var text strings.Builder
	for _, part := range googleResponse.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Google API")
	}

	out := &Response{Text: text.String()}
	if googleResponse.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  googleResponse.UsageMetadata.PromptTokenCount,
			OutputTokens: googleResponse.UsageMetadata.CandidatesTokenCount,
		}
	}
	return out, nil
}

// googleSchemaKeys lists the OpenAPI schema keywords Gemini accepts.
var googleSchemaKeys = map[string]bool{
	"type": true, "description": true, "enum": true, "properties": true,
	"required": true, "items": true, "minimum": true, "maximum": true,
	"nullable": true, "format": true,
}

// toGoogleSchema converts a JSON schema to Gemini's OpenAPI subset:
// upper-case type names and no unsupported keywords.
func toGoogleSchema(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if !googleSchemaKeys[k] {
			continue
		}
		switch k {
		case "type":
			if s, ok := v.(string); ok {
				out[k] = strings.ToUpper(s)
				continue
			}
		case "properties":
			if props, ok := v.(map[string]any); ok {
				converted := make(map[string]any, len(props))
				for name, prop := range props {
					if pm, ok := prop.(map[string]any); ok {
						converted[name] = toGoogleSchema(pm)
					}
				}
				out[k] = converted
				continue
			}
		case "items":
			if items, ok := v.(map[string]any); ok {
				out[k] = toGoogleSchema(items)
				continue
			}
		}
		out[k] = v
	}
	return out
}
