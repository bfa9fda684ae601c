package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// EnvelopeErrorHandler returns a custom HTTP error handler so every
// error, including routing 404s and auth failures, uses the standard
// response envelope.
func EnvelopeErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			}
			_ = c.JSON(he.Code, Response{Success: false, Error: msg})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "internal server error",
		})
	}
}
