// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/auth"
	"github.com/squadz/squadz/internal/session"
	"github.com/squadz/squadz/internal/token"
)

// DefaultBodyLimit caps request bodies.
const DefaultBodyLimit = "64K"

// Service is the lifecycle surface the handlers call. *auth.Service
// implements it.
type Service interface {
	Register(ctx context.Context, in auth.RegisterInput) (string, error)
	VerifyEmail(ctx context.Context, email, code string) (*auth.Result, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	Login(ctx context.Context, identifier, password string) (*auth.Result, error)
	ExternalSignIn(ctx context.Context, provider account.Origin, assertion string) (*auth.Result, error)
	Refresh(ctx context.Context, refreshToken string) (*session.Pair, error)
	Logout(ctx context.Context, refreshToken string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, resetToken, newPassword, confirmPassword string) (string, error)
	ChangePassword(ctx context.Context, accountID ulid.ULID, current, newPassword, confirmPassword string) (string, error)
	CompleteSetupStage(ctx context.Context, accountID ulid.ULID, stage int) (account.Summary, error)
	ResetSetupStage(ctx context.Context, accountID ulid.ULID, stage int) (account.Summary, error)
	Authenticate(accessToken string) (*token.AccessClaims, error)
}

var _ Service = (*auth.Service)(nil)

// Server serves the API.
type Server struct {
	addr     string
	echo     *echo.Echo
	handler  http.Handler
	logger   *slog.Logger
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
	running  bool
}

// NewServer builds the router for svc. A nil logger uses slog.Default().
func NewServer(addr string, svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(DefaultBodyLimit))
	e.Use(requestLogger(logger))

	h := &handlers{svc: svc}
	routes(e, h, requireBearer(svc))

	return &Server{
		addr:    addr,
		echo:    e,
		handler: otelhttp.NewHandler(e, "squadz.http"),
		logger:  logger,
	}
}

func routes(e *echo.Echo, h *handlers, bearer echo.MiddlewareFunc) {
	a := e.Group("/api/v1/auth")
	a.POST("/register", h.register)
	a.POST("/verify-email", h.verifyEmail)
	a.POST("/resend-verification", h.resendVerification)
	a.POST("/login", h.login)
	a.POST("/oauth/apple", h.externalSignIn(account.OriginApple))
	a.POST("/oauth/google", h.externalSignIn(account.OriginGoogle))
	a.POST("/refresh", h.refresh)
	a.POST("/logout", h.logout)
	a.POST("/forgot-password", h.forgotPassword)
	a.POST("/reset-password", h.resetPassword)

	me := e.Group("/api/v1/accounts/me", bearer)
	me.PATCH("/password", h.changePassword)
	me.POST("/setup/:stage", h.completeSetupStage)
	me.DELETE("/setup/:stage", h.resetSetupStage)
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins serving in the background. The returned channel receives a
// serve error, if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, oops.Code("HTTP_ALREADY_RUNNING").Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("HTTP_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
			errCh <- oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	}()

	s.logger.Info("http server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if err := s.server.Shutdown(ctx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

// Addr returns the bound address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || !s.running {
		return ""
	}
	return s.listener.Addr().String()
}
