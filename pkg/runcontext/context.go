// Package runcontext provides context accessors for values scoped to one
// poll-cycle run.
//
// The pollers set these before fanning out over a batch so every item in the
// cycle shares one timestamp and one correlation id. Services read them
// without importing any scheduling code, and tests inject fixed values.
//
// Usage in services (read values):
//
//	now := runcontext.Now(ctx)
//	batchID := runcontext.BatchID(ctx)
//
// Usage in pollers and tests (set values):
//
//	ctx = runcontext.WithTime(ctx, cycleStart)
//	ctx = runcontext.WithBatchID(ctx, uuid.NewString())
package runcontext

import (
	"context"
	"time"
)

type (
	batchIDKey struct{}
	actorKey   struct{}
	timeKey    struct{}
)

// BatchID retrieves the poll-cycle correlation id from the context.
func BatchID(ctx context.Context) string {
	if id, ok := ctx.Value(batchIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithBatchID injects a poll-cycle correlation id into the context.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey{}, id)
}

// Actor retrieves the identity performing mutations in this run. Falls back
// to "system" so audit columns are never blank.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

// WithActor injects the mutating identity into the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Now retrieves the run-scoped time from context. Falls back to time.Now()
// for callers outside a poll cycle.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(timeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for:
//   - Pollers that need consistent time within a batch
//   - Service unit tests that assert on timestamps
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey{}, t)
}
