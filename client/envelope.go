package client

import (
	"encoding/json"
	"fmt"

	"github.com/xiaot623/gogo/flightdeck/api"
)

type wireEnvelope struct {
	RequestID string          `json:"request_id"`
	Status    *string         `json:"status"`
	Data      json.RawMessage `json:"data"`
	Error     *api.ErrorBody  `json:"error"`
}

// Unwrap interprets an HTTP response body as an envelope. A non-2xx status
// or an envelope status of "error" is a failure whether or not data is
// present. On success the envelope's data is decoded into out; request_id
// and error are discarded. A nil out only checks the envelope.
func Unwrap(statusCode int, body []byte, out interface{}) error {
	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &ProtocolError{StatusCode: statusCode, Reason: "response is not a JSON envelope", Err: err}
	}
	if env.Status == nil {
		return &ProtocolError{StatusCode: statusCode, Reason: "envelope has no status"}
	}

	ok := statusCode >= 200 && statusCode < 300
	if !ok || *env.Status == api.StatusError {
		appErr := &ApplicationError{
			StatusCode: statusCode,
			RequestID:  env.RequestID,
			Message:    DefaultMessage,
		}
		if env.Error != nil {
			appErr.Code = env.Error.Code
			appErr.Details = env.Error.Details
			appErr.Retryable = env.Error.Retryable
			if env.Error.Message != "" {
				appErr.Message = env.Error.Message
			}
		}
		return appErr
	}
	if *env.Status != api.StatusSuccess {
		return &ProtocolError{StatusCode: statusCode, Reason: fmt.Sprintf("unknown envelope status %q", *env.Status)}
	}

	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &ProtocolError{StatusCode: statusCode, Reason: "envelope has no data"}
	}
	if raw, isRaw := out.(*json.RawMessage); isRaw {
		*raw = append((*raw)[:0], env.Data...)
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &ProtocolError{StatusCode: statusCode, Reason: "unexpected data shape", Err: err}
	}
	return nil
}

// requireKeys fails when data is not an object holding every key.
func requireKeys(data json.RawMessage, keys ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &ProtocolError{Reason: "data is not an object", Err: err}
	}
	for _, key := range keys {
		if _, ok := fields[key]; !ok {
			return &ProtocolError{Reason: fmt.Sprintf("data is missing %q", key)}
		}
	}
	return nil
}
