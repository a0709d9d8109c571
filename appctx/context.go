package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyCorrelationId = ContextKey("CorrelationId")
	// ContextKeyActor names whoever triggered the request (free text from the
	// X-Actor header; there is no session model behind it).
	ContextKeyActor = ContextKey("Actor")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func GetCorrelationId(ctx context.Context) (string, bool) {
	return GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationId(ctx context.Context, id string) context.Context {
	return Set(ctx, ContextKeyCorrelationId, id)
}

func GetActor(ctx context.Context) (string, bool) {
	return GetString(ctx, ContextKeyActor)
}

func SetActor(ctx context.Context, actor string) context.Context {
	return Set(ctx, ContextKeyActor, actor)
}
