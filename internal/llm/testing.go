package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// MockResponseConfig holds configuration for mock API responses
type MockResponseConfig struct {
	StatusCode   int
	ResponseBody interface{}
	Headers      map[string]string
}

// MockServer creates a test server that returns the configured response
func MockServer(t *testing.T, config MockResponseConfig) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range config.Headers {
			w.Header().Set(k, v)
		}

		if _, exists := config.Headers["Content-Type"]; !exists {
			w.Header().Set("Content-Type", "application/json")
		}

		w.WriteHeader(config.StatusCode)

		if config.ResponseBody != nil {
			var respBytes []byte
			var err error

			switch body := config.ResponseBody.(type) {
			case string:
				respBytes = []byte(body)
			case []byte:
				respBytes = body
			default:
				respBytes, err = json.Marshal(body)
				if err != nil {
					t.Errorf("Failed to marshal mock response: %v", err)
					return
				}
			}

			if _, err := w.Write(respBytes); err != nil {
				t.Errorf("Failed to write response body: %v", err)
			}
		}
	}))
}

// Step is one scripted outcome of a ScriptedProvider call
type Step struct {
	Response *Response
	Err      error
}

// Reply is a shorthand for a successful step
func Reply(text string, input, output int) Step {
	return Step{Response: &Response{Text: text, Usage: Usage{InputTokens: input, OutputTokens: output}}}
}

// Fail is a shorthand for a failing step
func Fail(err error) Step {
	return Step{Err: err}
}

// ErrScriptExhausted is returned when a ScriptedProvider runs out of steps
var ErrScriptExhausted = errors.New("scripted provider has no more steps")

// ScriptedProvider is a Provider for tests. It replays steps in order, or
// delegates to Handler when set, and records every request it receives.
type ScriptedProvider struct {
	name    string
	steps   []Step
	Handler func(req Request) (*Response, error)
	Delay   time.Duration

	mu          sync.Mutex
	requests    []Request
	inFlight    int
	maxInFlight int
}

// NewScriptedProvider creates a ScriptedProvider with the given steps
func NewScriptedProvider(name string, steps ...Step) *ScriptedProvider {
	return &ScriptedProvider{name: name, steps: steps}
}

// Name returns the provider name
func (p *ScriptedProvider) Name() string {
	return p.name
}

// Generate replays the next step
func (p *ScriptedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	var step *Step
	if p.Handler == nil && len(p.steps) > 0 {
		step = &p.steps[0]
		p.steps = p.steps[1:]
	}
	handler := p.Handler
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if handler != nil {
		return handler(req)
	}
	if step == nil {
		return nil, ErrScriptExhausted
	}
	return step.Response, step.Err
}

// Requests returns a copy of the received requests
func (p *ScriptedProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}

// Calls returns the number of Generate calls
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// MaxInFlight returns the highest number of concurrent Generate calls seen
func (p *ScriptedProvider) MaxInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}
