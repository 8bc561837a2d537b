// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/pkg/errutil"
)

// Internal is the error code reported for unclassified failures.
const Internal = "INTERNAL_ERROR"

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error       string     `json:"error"`
	Message     string     `json:"message"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

var statusByKind = map[error]int{
	account.ErrValidation:   http.StatusBadRequest,
	account.ErrUnauthorized: http.StatusUnauthorized,
	account.ErrLocked:       http.StatusLocked,
	account.ErrConflict:     http.StatusConflict,
	account.ErrExpired:      http.StatusGone,
	account.ErrNotFound:     http.StatusNotFound,
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	if status, ok := statusByKind[account.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// describe builds the response body for err.
func describe(err error) (int, ErrorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) && account.KindOf(err) == nil {
		return he.Code, ErrorBody{
			Error:   strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_")),
			Message: fmt.Sprint(he.Message),
		}
	}

	status := StatusOf(err)
	body := ErrorBody{Error: Internal, Message: account.PublicMessage(err)}
	if status == http.StatusInternalServerError {
		return status, body
	}
	if code := errutil.Code(err); code != "" {
		body.Error = code
	}
	if until, ok := account.LockedUntil(err); ok {
		until = until.UTC()
		body.LockedUntil = &until
	}
	return status, body
}

func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := describe(err)
		if status >= http.StatusInternalServerError {
			errutil.LogError(c.Request().Context(), logger, "request failed", err,
				"method", c.Request().Method, "path", c.Path())
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error("failed to write error response", "error", werr)
		}
	}
}
