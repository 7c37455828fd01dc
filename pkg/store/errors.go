// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = httperr.WithCode(
		errors.New("resource not found"),
		http.StatusNotFound,
	)

	// ErrConflict is returned by IncrementTrialCounter when the stored
	// counter no longer equals the expected value.
	ErrConflict = httperr.WithCode(
		errors.New("counter value moved"),
		http.StatusConflict,
	)
)
