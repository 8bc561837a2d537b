// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadz/squadz/internal/account"
	"github.com/squadz/squadz/internal/config"
	"github.com/squadz/squadz/internal/notify"
	"github.com/squadz/squadz/pkg/errutil"
)

func TestServe_RejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, "serve", "--database-url", "postgres://x/db")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "key", config.KeyJWTAccessSecret)
}

func TestBuildNotifier(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	n, closeFn, err := buildNotifier(&config.Config{}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.LogNotifier{}, n)
	closeFn()
	assert.Contains(t, logs.String(), "notifications are only logged")

	n, closeFn, err = buildNotifier(&config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.KafkaNotifier{}, n)
	closeFn()

	_, _, err = buildNotifier(&config.Config{KafkaBrokers: []string{"localhost:9092"}}, nil, logger)
	errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_CONFIG")
}

func TestBuildVerifiers(t *testing.T) {
	verifiers, err := buildVerifiers(&config.Config{})
	require.NoError(t, err)
	assert.Empty(t, verifiers)

	verifiers, err = buildVerifiers(&config.Config{AppleClientID: "com.squadz.app", GoogleClientID: "123.apps.googleusercontent.com"})
	require.NoError(t, err)
	assert.Contains(t, verifiers, account.OriginApple)
	assert.Contains(t, verifiers, account.OriginGoogle)
}
