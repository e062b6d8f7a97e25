package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/labstack/gommon/random"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/service"
)

var statusByCode = map[string]int{
	api.CodeValidation:            http.StatusBadRequest,
	api.CodeNotFound:              http.StatusNotFound,
	api.CodeConflict:              http.StatusConflict,
	api.CodeAuthRequired:          http.StatusUnauthorized,
	api.CodeAuthForbidden:         http.StatusForbidden,
	api.CodeDependencyUnavailable: http.StatusServiceUnavailable,
	api.CodeInternal:              http.StatusInternalServerError,
}

// requestID returns the id set by the RequestID middleware, or a fresh one.
func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return random.String(32)
}

// ok writes a success envelope.
func ok(c echo.Context, status int, data interface{}) error {
	env, err := api.Success(requestID(c), data)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(status, env)
}

// fail writes an error envelope. Errors that are not service errors are
// logged and reported as INTERNAL_ERROR.
func fail(c echo.Context, err error) error {
	if _, isSvc := service.AsError(err); !isSvc {
		log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}

	body := errorBody(err)
	status, known := statusByCode[body.Code]
	if !known {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, api.Failure(requestID(c), body))
}

func errorBody(err error) api.ErrorBody {
	if svcErr, isSvc := service.AsError(err); isSvc {
		return svcErr.Body()
	}
	return api.ErrorBody{Code: api.CodeInternal, Message: "internal error"}
}

// ErrorHandler renders echo's own errors (unknown routes, bad methods,
// recovered panics) as error envelopes.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = fail(c, err)
		return
	}

	body := api.ErrorBody{Code: api.CodeInternal, Message: http.StatusText(he.Code)}
	switch {
	case he.Code == http.StatusNotFound:
		body.Code = api.CodeNotFound
	case he.Code == http.StatusUnauthorized:
		body.Code = api.CodeAuthRequired
	case he.Code == http.StatusForbidden:
		body.Code = api.CodeAuthForbidden
	case he.Code >= 400 && he.Code < 500:
		body.Code = api.CodeValidation
	}
	if msg, isString := he.Message.(string); isString && msg != "" {
		body.Message = msg
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(he.Code)
		return
	}
	_ = c.JSON(he.Code, api.Failure(requestID(c), body))
}
