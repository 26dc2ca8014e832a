package esclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidBaseURL is returned when a base URL option is invalid.
	ErrInvalidBaseURL = errors.New("esclient: invalid base URL")
	// ErrNilHTTPClient indicates a nil HTTP client was provided.
	ErrNilHTTPClient = errors.New("esclient: http client cannot be nil")
	// ErrNilRequest is returned when a compiled request or mutation is missing.
	ErrNilRequest = errors.New("esclient: nil request")
	// ErrCursorConsumed is yielded when a cursor is ranged over a second time.
	ErrCursorConsumed = errors.New("esclient: cursor already consumed")
)

// ErrorCause is one entry of an Elasticsearch error payload.
type ErrorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Index  string `json:"index,omitempty"`
}

// APIError represents an Elasticsearch error payload or HTTP failure.
type APIError struct {
	Status    int
	Type      string
	Reason    string
	RootCause []ErrorCause
	Raw       []byte
}

type errorEnvelope struct {
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

type errorBody struct {
	ErrorCause
	RootCause []ErrorCause `json:"root_cause"`
}

// decodeAPIError reads both the object form {"error":{...}} and the legacy
// string form {"error":"..."} of an error response.
func decodeAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{Status: status, Raw: data}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil || len(env.Error) == 0 {
		apiErr.Reason = string(data)
		return apiErr
	}
	var body errorBody
	if err := json.Unmarshal(env.Error, &body); err == nil {
		apiErr.Type = body.Type
		apiErr.Reason = body.Reason
		apiErr.RootCause = body.RootCause
		return apiErr
	}
	var msg string
	if err := json.Unmarshal(env.Error, &msg); err == nil {
		apiErr.Reason = msg
	}
	return apiErr
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Type == "" && e.Reason == "":
		return fmt.Sprintf("esclient: api error status=%d", e.Status)
	case e.Type != "" && e.Reason != "":
		return fmt.Sprintf("esclient: %s (%s) status=%d", e.Type, e.Reason, e.Status)
	case e.Type != "":
		return fmt.Sprintf("esclient: %s status=%d", e.Type, e.Status)
	}
	return fmt.Sprintf("esclient: %s status=%d", e.Reason, e.Status)
}

// Temporary reports whether the error may be retried by the caller.
func (e *APIError) Temporary() bool {
	if e == nil {
		return false
	}
	return e.Status == 429 || (e.Status >= 500 && e.Status < 600)
}
