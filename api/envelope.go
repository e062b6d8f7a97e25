// Package api defines the JSON wire contract of the flight recorder API.
// Both the server and the client speak these shapes.
package api

import "encoding/json"

// BasePath is the path prefix of every versioned endpoint.
const BasePath = "/api/v1"

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error codes used in ErrorBody.Code.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeAuthRequired          = "AUTH_REQUIRED"
	CodeAuthForbidden         = "AUTH_FORBIDDEN"
	CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	CodeInternal              = "INTERNAL_ERROR"
)

// Envelope wraps every API response.
type Envelope struct {
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Error     *ErrorBody      `json:"error"`
}

// ErrorBody is the error half of an envelope.
type ErrorBody struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details"`
	Retryable bool                   `json:"retryable"`
}

// Success builds a success envelope around data.
func Success(requestID string, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{RequestID: requestID, Status: StatusSuccess, Data: raw}, nil
}

// Failure builds an error envelope.
func Failure(requestID string, body ErrorBody) *Envelope {
	if body.Details == nil {
		body.Details = map[string]interface{}{}
	}
	return &Envelope{
		RequestID: requestID,
		Status:    StatusError,
		Data:      json.RawMessage("null"),
		Error:     &body,
	}
}
