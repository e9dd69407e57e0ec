package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/localrivet/summbench/internal/benchmark"
	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/resultstore"
)

// ErrorResponse is the body of every failed HTTP request
type ErrorResponse struct {
	Status     string                 `json:"status"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
}

// Error codes shared by the HTTP routes and the MCP tools
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeUnavailable    = "UNAVAILABLE"
	CodeRateLimited    = "RATE_LIMITED"
	CodeSchema         = "SCHEMA_ERROR"
	CodeUpstream       = "UPSTREAM_ERROR"
	CodeDatabase       = "DATABASE_ERROR"
	CodeConfig         = "CONFIG_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

// failure is how an error is reported to a client.
type failure struct {
	status int
	code   string
}

var sentinelFailures = []struct {
	target error
	failure
}{
	{resultstore.ErrNotFound, failure{http.StatusNotFound, CodeNotFound}},
	{benchmark.ErrNoStore, failure{http.StatusServiceUnavailable, CodeUnavailable}},
	{benchmark.ErrRunInProgress, failure{http.StatusConflict, CodeConflict}},
}

var typeFailures = map[errortypes.ErrorType]failure{
	errortypes.ErrorTypeValidation: {http.StatusBadRequest, CodeInvalidRequest},
	errortypes.ErrorTypeRateLimit:  {http.StatusTooManyRequests, CodeRateLimited},
	errortypes.ErrorTypeSchema:     {http.StatusBadGateway, CodeSchema},
	errortypes.ErrorTypeAPI:        {http.StatusBadGateway, CodeUpstream},
	errortypes.ErrorTypeNetwork:    {http.StatusBadGateway, CodeUpstream},
	errortypes.ErrorTypeDatabase:   {http.StatusInternalServerError, CodeDatabase},
	errortypes.ErrorTypeConfig:     {http.StatusInternalServerError, CodeConfig},
}

// classify maps err to a status and code. Sentinels win over error types.
func classify(err error) failure {
	for _, s := range sentinelFailures {
		if errors.Is(err, s.target) {
			return s.failure
		}
	}
	if f, ok := typeFailures[errortypes.TypeOf(err)]; ok {
		return f
	}
	return failure{http.StatusInternalServerError, CodeInternal}
}

// errorToResponse converts an error to a standardized ErrorResponse
func errorToResponse(err error) ErrorResponse {
	resp := ErrorResponse{
		Status:  "error",
		Code:    classify(err).code,
		Message: err.Error(),
	}

	var appErr *errortypes.AppError
	if errors.As(err, &appErr) {
		if len(appErr.Fields) > 0 {
			resp.Details = appErr.Fields
		}
		resp.StackTrace = appErr.StackInfo
	}
	return resp
}

// HandleError writes err as a JSON error response. Internal errors keep
// their stack trace out of the body.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	errortypes.LogError(logger, err)

	f := classify(err)
	resp := errorToResponse(err)
	resp.StackTrace = ""

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}

// toolError logs err and returns the code-prefixed message placed in a tool
// response.
func toolError(logger *slog.Logger, err error) string {
	errortypes.LogError(logger, err)
	resp := errorToResponse(err)
	return fmt.Sprintf("%s: %s", resp.Code, resp.Message)
}
