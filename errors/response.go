package errors

import (
	"encoding/json"
	"time"
)

// DetailRetryAfter is the detail key holding a server-requested delay.
const DetailRetryAfter = "retry_after"

// ErrorResponse is the JSON body for a failed request. The mock server
// writes it and httpclient reads it back from non-2xx responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details sent to clients.
type ErrorBody struct {
	Code         ErrorCode      `json:"code"`
	Message      string         `json:"message"`
	Retryable    bool           `json:"retryable"`
	RetryAfterMs int64          `json:"retry_after_ms,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// ToResponse converts an Error to an ErrorResponse. A retry-after detail is
// lifted into RetryAfterMs.
func (e *Error) ToResponse() ErrorResponse {
	body := ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
	}
	for k, v := range e.Details {
		if k == DetailRetryAfter {
			if d, ok := v.(time.Duration); ok {
				body.RetryAfterMs = d.Milliseconds()
			}
			continue
		}
		if body.Details == nil {
			body.Details = make(map[string]any, len(e.Details))
		}
		body.Details[k] = v
	}
	return ErrorResponse{Error: body}
}

// ParseResponse decodes an ErrorResponse body. It reports false for bodies
// in any other shape, including JSON without an error code.
func ParseResponse(data []byte) (ErrorBody, bool) {
	var resp ErrorResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Error.Code == "" {
		return ErrorBody{}, false
	}
	return resp.Error, true
}

// WithRetryAfter records a server-requested delay before the next attempt.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	if d <= 0 {
		return e
	}
	return e.WithDetail(DetailRetryAfter, d)
}

// RetryAfter returns the delay recorded with WithRetryAfter anywhere in
// err's chain.
func RetryAfter(err error) (time.Duration, bool) {
	e, ok := As(err)
	if !ok {
		return 0, false
	}
	d, ok := e.Details[DetailRetryAfter].(time.Duration)
	return d, ok && d > 0
}
