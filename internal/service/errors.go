package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// Error is a domain failure that maps onto an API error envelope.
type Error struct {
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Body converts the error to its wire shape.
func (e *Error) Body() api.ErrorBody {
	return api.ErrorBody{Code: e.Code, Message: e.Message, Details: e.Details, Retryable: e.Retryable}
}

func notFound(entity, id string) *Error {
	return &Error{
		Code:    api.CodeNotFound,
		Message: entity + " not found",
		Details: map[string]interface{}{"entity": entity, "id": id},
	}
}

func validation(message string, details map[string]interface{}) *Error {
	return &Error{Code: api.CodeValidation, Message: message, Details: details}
}

func conflict(message string, details map[string]interface{}) *Error {
	return &Error{Code: api.CodeConflict, Message: message, Details: details}
}

// AsError returns the domain error wrapped in err, if any.
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

func uuid8() string {
	return uuid.New().String()[:8]
}
