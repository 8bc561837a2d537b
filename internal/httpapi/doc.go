// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

// Package httpapi exposes the account lifecycle over JSON/HTTP.
package httpapi
