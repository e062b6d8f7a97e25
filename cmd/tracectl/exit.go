package main

import (
	"errors"
	"fmt"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/client"
)

// Process exit codes.
const (
	exitOK          = 0
	exitRuntime     = 1
	exitValidation  = 2
	exitAuth        = 3
	exitNotFound    = 4
	exitSimulated   = 5
	exitUnavailable = 6
)

// exitError carries an explicit exit code through kong's Run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, format string, args ...interface{}) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if errors.Is(err, client.ErrSourceRunRequired) {
		return exitValidation
	}
	var appErr *client.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case api.CodeValidation, api.CodeConflict:
			return exitValidation
		case api.CodeAuthRequired, api.CodeAuthForbidden:
			return exitAuth
		case api.CodeNotFound:
			return exitNotFound
		case api.CodeDependencyUnavailable:
			return exitUnavailable
		}
		return exitRuntime
	}
	var transportErr *client.TransportError
	if errors.As(err, &transportErr) {
		return exitUnavailable
	}
	return exitRuntime
}

// describe renders err for the operator. Server messages are shown as sent,
// with the reasons of a rejected replay appended.
func describe(err error) string {
	var appErr *client.ApplicationError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	msg := client.Message(err)
	if appErr.Code != "" {
		msg = appErr.Code + ": " + msg
	}
	if reasons, ok := appErr.Details["reasons"].([]interface{}); ok {
		for _, r := range reasons {
			msg += fmt.Sprintf("\n  - %v", r)
		}
	}
	return msg
}
