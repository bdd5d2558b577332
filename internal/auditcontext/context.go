package auditcontext

import (
	"context"
	"strings"
)

type ctxKey string

const (
	keyRequestID ctxKey = "audit.request_id"
	keyIPAddress ctxKey = "audit.ip_address"
	keyUserAgent ctxKey = "audit.user_agent"
	keyActorType ctxKey = "audit.actor_type"
	keyActorID   ctxKey = "audit.actor_id"
	keyTaskID    ctxKey = "audit.task_id"
	keyProjectID ctxKey = "audit.project_id"
)

func WithRequestID(ctx context.Context, value string) context.Context {
	return withString(ctx, keyRequestID, value)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, keyRequestID)
}

func WithIPAddress(ctx context.Context, value string) context.Context {
	return withString(ctx, keyIPAddress, value)
}

func IPAddressFromContext(ctx context.Context) string {
	return stringFrom(ctx, keyIPAddress)
}

func WithUserAgent(ctx context.Context, value string) context.Context {
	return withString(ctx, keyUserAgent, value)
}

func UserAgentFromContext(ctx context.Context) string {
	return stringFrom(ctx, keyUserAgent)
}

// WithActor records who is acting on behalf of the request.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = withString(ctx, keyActorType, actorType)
	return withString(ctx, keyActorID, actorID)
}

func ActorFromContext(ctx context.Context) (string, string) {
	return stringFrom(ctx, keyActorType), stringFrom(ctx, keyActorID)
}

func WithTaskID(ctx context.Context, value string) context.Context {
	return withString(ctx, keyTaskID, value)
}

func TaskIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, keyTaskID)
}

func WithProjectID(ctx context.Context, value string) context.Context {
	return withString(ctx, keyProjectID, value)
}

func ProjectIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, keyProjectID)
}

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
