// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package usage provides the fire-and-forget submission discipline for
// usage logs and endpoint touches.
//
// Both writes are advisory telemetry: they must never block the reply to the
// client, so they funnel through a bounded queue serviced by one background
// worker. When the queue is full the task is dropped and counted; on
// shutdown the queue is drained up to the caller's deadline.
package usage

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/datahive/pkg/logger"
	"github.com/stacklok/datahive/pkg/store"
)

const (
	// DefaultQueueSize bounds the task queue.
	DefaultQueueSize = 256

	// taskTimeout caps each store write. Tasks run detached from the
	// request context, which is usually done by the time they execute.
	taskTimeout = 5 * time.Second

	// maxArgValueLen truncates oversized argument values before storage.
	maxArgValueLen = 256
)

// Recorder submits usage records and endpoint touches in the background.
type Recorder struct {
	store store.Store
	tasks chan func(context.Context)
	done  chan struct{}

	// mu guards tasks against a send racing Close's channel close.
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewRecorder creates a recorder and starts its worker. capacity <= 0
// selects DefaultQueueSize.
func NewRecorder(st store.Store, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	r := &Recorder{
		store: st,
		tasks: make(chan func(context.Context), capacity),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for task := range r.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		task(ctx)
		cancel()
	}
}

// submit enqueues a task without blocking; a full queue drops the task.
func (r *Recorder) submit(task func(context.Context)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.tasks <- task:
	default:
		n := r.dropped.Add(1)
		logger.Warnf("Usage queue full, dropped task (%d dropped total)", n)
	}
}

// Record submits a usage-log record. Argument redaction is the caller's
// responsibility (see RedactArgs); an empty ID is filled in here.
func (r *Recorder) Record(record store.UsageRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.submit(func(ctx context.Context) {
		if err := r.store.AppendUsage(ctx, record); err != nil {
			logger.Warnw("Failed to append usage log", "org_id", record.OrgID, "error", err)
		}
	})
}

// Touch submits a last-accessed update for an endpoint.
func (r *Recorder) Touch(endpointID string) {
	now := time.Now()
	r.submit(func(ctx context.Context) {
		if err := r.store.TouchEndpoint(ctx, endpointID, now); err != nil {
			logger.Warnw("Failed to touch endpoint", "endpoint_id", endpointID, "error", err)
		}
	})
}

// Dropped returns the number of tasks discarded because the queue was full
// or the recorder was closed.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting tasks and drains the queue. It returns early with
// the context's error when the deadline expires; remaining tasks are
// abandoned, which is acceptable for advisory writes.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// secretKeyMarkers flag argument names whose values must not be stored.
var secretKeyMarkers = []string{"secret", "password", "token", "key", "credential"}

// RedactArgs returns a copy of tool arguments safe for the usage log:
// secret-looking values are replaced and long strings truncated. Nested
// values are kept as-is apart from string truncation; filters and cursors
// are the only nesting the tool schemas produce.
func RedactArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if isSecretKey(k) {
			out[k] = "[redacted]"
			continue
		}
		out[k] = truncateValue(v)
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range secretKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncateValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	runes := []rune(s)
	if len(runes) <= maxArgValueLen {
		return s
	}
	return string(runes[:maxArgValueLen]) + "…"
}
