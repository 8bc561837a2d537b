// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package httpapi

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/squadz/squadz/internal/account"
)

const accountIDKey = "squadz.account_id"

// requireBearer authenticates the access token in the Authorization header
// and stores the account id on the context.
func requireBearer(svc Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return account.Unauthorized("AUTH_MISSING_TOKEN", "missing bearer token")
			}
			claims, err := svc.Authenticate(strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			id, err := ulid.Parse(claims.Subject)
			if err != nil {
				return account.Unauthorized("AUTH_INVALID_TOKEN", "invalid access token")
			}
			c.Set(accountIDKey, id)
			return next(c)
		}
	}
}

func accountID(c echo.Context) ulid.ULID {
	id, _ := c.Get(accountIDKey).(ulid.ULID)
	return id
}

// requestLogger logs one line per request. Bodies are never logged.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			level := slog.LevelInfo
			if v.Status >= 500 {
				level = slog.LevelError
			} else if v.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs, "error", v.Error.Error())
			}
			logger.Log(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	})
}
