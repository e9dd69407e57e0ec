package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/localrivet/summbench/internal/schema"
)

func testRequest() Request {
	return Request{
		System: "You are a summarizer.",
		Prompt: "Summarize this.",
		Schema: schema.SummaryDefinition(1500),
	}
}

func TestGoogleProviderGenerate(t *testing.T) {
	var captured GoogleRequest
	var capturedPath, capturedKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path + "?" + r.URL.RawQuery
		capturedKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"candidates": [{"content": {"parts": [{"text": "{\"content\": "}, {"text": "\"short\"}"}]}}],
			"usageMetadata": {"promptTokenCount": 120, "candidatesTokenCount": 30}
		}`)
	}))
	defer server.Close()

	p := NewGoogleProvider(Config{APIKey: "k", ModelID: "gemini-2.0-flash", BaseURL: server.URL})
	resp, err := p.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != `{"content": "short"}` {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.OutputTokens != 30 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if capturedPath != "/gemini-2.0-flash:generateContent?" {
		t.Errorf("unexpected path %s", capturedPath)
	}
	if capturedKey != "k" {
		t.Errorf("expected API key header, got %q", capturedKey)
	}
	if captured.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("expected JSON mime type, got %q", captured.GenerationConfig.ResponseMimeType)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "You are a summarizer." {
		t.Errorf("system instruction not sent: %+v", captured.SystemInstruction)
	}
	if captured.GenerationConfig.ResponseSchema["type"] != "OBJECT" {
		t.Errorf("expected upper-case schema type, got %v", captured.GenerationConfig.ResponseSchema["type"])
	}
}

func TestGoogleProviderRateLimit(t *testing.T) {
	server := MockServer(t, MockResponseConfig{
		StatusCode: http.StatusTooManyRequests,
		ResponseBody: map[string]any{
			"error": map[string]any{
				"code":    429,
				"message": "Resource has been exhausted (e.g. check quota).",
				"status":  "RESOURCE_EXHAUSTED",
			},
		},
	})
	defer server.Close()

	p := NewGoogleProvider(Config{APIKey: "k", BaseURL: server.URL})
	_, err := p.Generate(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if statusErr.StatusCode != 429 {
		t.Errorf("expected 429, got %d", statusErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(strings.ToLower(err.Error()), "quota") {
		t.Errorf("rate limit markers missing from %q", err.Error())
	}
}

func TestGoogleProviderKeyStaysOutOfErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	p := NewGoogleProvider(Config{APIKey: "SECRETKEY", ModelID: "gemini-2.0-flash", BaseURL: baseURL})
	_, err := p.Generate(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected a transport error from a closed server")
	}
	if strings.Contains(err.Error(), "SECRETKEY") {
		t.Errorf("API key leaked into error: %v", err)
	}
}

func TestGoogleProviderMissingKey(t *testing.T) {
	p := NewGoogleProvider(Config{})
	if _, err := p.Generate(context.Background(), testRequest()); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestToGoogleSchema(t *testing.T) {
	converted := toGoogleSchema(schema.SummaryDefinition(1500).Body)

	props := converted["properties"].(map[string]any)
	content := props["content"].(map[string]any)
	if content["type"] != "STRING" {
		t.Errorf("expected STRING, got %v", content["type"])
	}
	if _, ok := content["maxLength"]; ok {
		t.Errorf("maxLength should be dropped for Gemini")
	}
	if content["description"] == nil {
		t.Errorf("description should be kept")
	}
}

func TestOpenAIProviderGenerate(t *testing.T) {
	var captured OpenAIRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		io.WriteString(w, `{
			"choices": [{"message": {"content": "{\"status\":\"PASS\",\"score_accuracy\":0.9}"}}],
			"usage": {"prompt_tokens": 50, "completion_tokens": 8}
		}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider(Config{APIKey: "secret", BaseURL: server.URL})
	req := testRequest()
	req.Schema = schema.JudgeDefinition()
	resp, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if auth != "Bearer secret" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if captured.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %s", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("expected system and user messages, got %+v", captured.Messages)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.JSONSchema.Name != "JudgeFeedback" {
		t.Errorf("expected json_schema response format, got %+v", captured.ResponseFormat)
	}
	if resp.Usage.InputTokens != 50 || resp.Usage.OutputTokens != 8 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
}

func TestOpenAIProviderError(t *testing.T) {
	server := MockServer(t, MockResponseConfig{
		StatusCode: http.StatusUnauthorized,
		ResponseBody: map[string]any{
			"error": map[string]any{"message": "Incorrect API key", "type": "invalid_request_error"},
		},
	})
	defer server.Close()

	p := NewOpenAIProvider(Config{APIKey: "bad", BaseURL: server.URL})
	_, err := p.Generate(context.Background(), testRequest())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
}

func TestXAIProviderName(t *testing.T) {
	p := NewXAIProvider(Config{APIKey: "k"})
	if p.Name() != ProviderXAI {
		t.Errorf("expected xai, got %s", p.Name())
	}
	if p.defaultURL != xaiAPIURL {
		t.Errorf("expected xai endpoint, got %s", p.defaultURL)
	}
}

func TestAnthropicProviderGenerate(t *testing.T) {
	var captured AnthropicRequest
	var version string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version = r.Header.Get("anthropic-version")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		io.WriteString(w, `{
			"content": [{"type": "text", "text": "{\"content\": \"ok\"}"}],
			"usage": {"input_tokens": 11, "output_tokens": 4}
		}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL})
	resp, err := p.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if version != "2023-06-01" {
		t.Errorf("unexpected version header %q", version)
	}
	if !strings.Contains(captured.System, "JSON schema") {
		t.Errorf("schema instruction missing from system prompt: %q", captured.System)
	}
	if resp.Text != `{"content": "ok"}` || resp.Usage.InputTokens != 11 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestProviderFactory(t *testing.T) {
	f := NewProviderFactory(map[string]Config{
		ProviderGoogle: {APIKey: "g"},
		ProviderOpenAI: {APIKey: "o"},
		ProviderXAI:    {},
	})

	p, err := f.GetProvider(ProviderGoogle)
	if err != nil || p.Name() != ProviderGoogle {
		t.Fatalf("expected google provider, got %v, %v", p, err)
	}
	if _, err := f.GetProvider(ProviderAnthropic); err == nil {
		t.Errorf("expected error for unconfigured provider")
	}

	all := f.GetAllProviders()
	if len(all) != 2 || all[0].Name() != ProviderGoogle || all[1].Name() != ProviderOpenAI {
		t.Errorf("expected google and openai, got %d providers", len(all))
	}
}

func TestCheckHealth(t *testing.T) {
	ok := NewScriptedProvider("ok", Reply(`{"ok": true}`, 1, 1))
	broken := NewScriptedProvider("broken", Fail(errors.New("connection refused")))

	report := CheckHealth(context.Background(), "m", ok, broken)
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	if !report.Providers["ok"] || report.Providers["broken"] {
		t.Errorf("unexpected provider map %v", report.Providers)
	}
	if report.Errors["broken"] == "" {
		t.Errorf("expected error for broken provider")
	}

	if got := CheckHealth(context.Background(), "m").Status; got != StatusUnhealthy {
		t.Errorf("no providers should be unhealthy, got %s", got)
	}
}
