package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/summbench/internal/benchmark"
	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/resultstore"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation error",
			err:        errortypes.ValidationError(errors.New("invalid input"), "validation failed"),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "rate limit error",
			err:        errortypes.RateLimitError(errors.New("429 Too Many Requests"), "rate limit persisted"),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   CodeRateLimited,
		},
		{
			name:       "schema error",
			err:        errortypes.SchemaError(errors.New("bad json"), "decode summary"),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeSchema,
		},
		{
			name:       "network error",
			err:        errortypes.NetworkError(errors.New("timeout"), "network error"),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeUpstream,
		},
		{
			name:       "run not found",
			err:        fmt.Errorf("run x: %w", resultstore.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeNotFound,
		},
		{
			name:       "not found wrapped in database error",
			err:        errortypes.DatabaseError(resultstore.ErrNotFound, "get run"),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeNotFound,
		},
		{
			name:       "persistence disabled",
			err:        benchmark.ErrNoStore,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeUnavailable,
		},
		{
			name:       "run in progress",
			err:        benchmark.ErrRunInProgress,
			wantStatus: http.StatusConflict,
			wantCode:   CodeConflict,
		},
		{
			name:       "database error",
			err:        errortypes.DatabaseError(errors.New("db connection failed"), "database error"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeDatabase,
		},
		{
			name:       "unknown error",
			err:        errors.New("generic error"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(w, nil, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.err.Error(), resp.Message)
			assert.Empty(t, resp.StackTrace)
		})
	}
}

func TestErrorToResponse(t *testing.T) {
	err := errortypes.DatabaseError(errors.New("locked"), "failed to save run").WithField("run_id", "r1")
	resp := errorToResponse(err)
	assert.Equal(t, CodeDatabase, resp.Code)
	assert.Equal(t, "r1", resp.Details["run_id"])
	assert.NotEmpty(t, resp.StackTrace)

	resp = errorToResponse(errors.New("plain"))
	assert.Equal(t, CodeInternal, resp.Code)
	assert.Equal(t, "plain", resp.Message)
	assert.Nil(t, resp.Details)
}

func TestToolError(t *testing.T) {
	msg := toolError(nil, errortypes.ValidationError(errors.New("empty text"), "invalid summarize_sample request"))
	assert.True(t, strings.HasPrefix(msg, CodeInvalidRequest+": "))
	assert.Contains(t, msg, "empty text")
}
