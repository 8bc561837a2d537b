// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadz/squadz/pkg/errutil"
)

func startServer(t *testing.T, readiness ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", readiness, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx // test server
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, nil)
	require.NotEmpty(t, server.Addr())

	server.Metrics().ObserveOperation("login", OutcomeSuccess, 20*time.Millisecond)
	server.Metrics().RecordLockout()
	server.Metrics().RecordNotification("password_reset", "sent")

	status, body := get(t, "http://"+server.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `squadz_auth_operations_total{operation="login",outcome="success"} 1`)
	assert.Contains(t, body, "squadz_auth_operation_duration_seconds")
	assert.Contains(t, body, "squadz_auth_lockouts_total 1")
	assert.Contains(t, body, `squadz_notifications_total{kind="password_reset",status="sent"} 1`)
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, func(context.Context) error { return errors.New("db down") })

	status, body := get(t, "http://"+server.Addr()+"/healthz/liveness")
	assert.Equal(t, http.StatusOK, status, "liveness ignores readiness")
	assert.Equal(t, "ok\n", body)
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name      string
		readiness ReadinessChecker
		want      int
	}{
		{name: "ready", readiness: func(context.Context) error { return nil }, want: http.StatusOK},
		{name: "not ready", readiness: func(context.Context) error { return errors.New("db down") }, want: http.StatusServiceUnavailable},
		{name: "nil checker", readiness: nil, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.readiness)
			status, _ := get(t, "http://"+server.Addr()+"/healthz/readiness")
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_ALREADY_RUNNING")
}

func TestServer_ListenFailure(t *testing.T) {
	server := NewServer("256.0.0.1:bad", nil, nil)
	_, err := server.Start()
	errutil.AssertErrorCode(t, err, "OBSERVABILITY_LISTEN_FAILED")

	// A failed start leaves the server stoppable.
	require.NoError(t, server.Stop(context.Background()))
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	require.NoError(t, server.Stop(context.Background()))
	require.NoError(t, server.Stop(context.Background()))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	errCh, err := server.Start()
	require.NoError(t, err)

	// Closing the listener out from under Serve is a serve error, not a shutdown.
	require.NoError(t, server.listener.Close())

	select {
	case serveErr, ok := <-errCh:
		require.True(t, ok)
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("no serve error reported")
	}
	_ = server.Stop(context.Background())
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case serveErr, ok := <-errCh:
		assert.False(t, ok, "unexpected error %v", serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed")
	}
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveOperation("register", OutcomeSuccess, time.Millisecond)
	m.ObserveOperation("register", OutcomeSuccess, time.Millisecond)
	m.ObserveOperation("register", OutcomeFailure, time.Millisecond)
	m.RecordNotification("verification_code", "failed")

	assert.InDelta(t, 2, testutil.ToFloat64(m.AuthOperations.WithLabelValues("register", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthOperations.WithLabelValues("register", OutcomeFailure)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Notifications.WithLabelValues("verification_code", "failed")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.AuthDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("login", OutcomeError, time.Second)
		m.RecordLockout()
		m.RecordNotification("lockout_notice", "sent")
	})
}
