// Package context carries request-scoped correlation values used by logging,
// tracing and the security audit log.
package context

import (
	stdcontext "context"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorTypeKey contextKey = "actor_type"
	actorIDKey   contextKey = "actor_id"
	clientIPKey  contextKey = "client_ip"
	userAgentKey contextKey = "user_agent"
)

func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	return withString(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	return stringFrom(ctx, requestIDKey)
}

// WithActor records who is performing the request, for example ("user", "<id>").
func WithActor(ctx stdcontext.Context, actorType, actorID string) stdcontext.Context {
	ctx = withString(ctx, actorTypeKey, actorType)
	return withString(ctx, actorIDKey, actorID)
}

func ActorFromContext(ctx stdcontext.Context) (string, string) {
	return stringFrom(ctx, actorTypeKey), stringFrom(ctx, actorIDKey)
}

func WithClientIP(ctx stdcontext.Context, ip string) stdcontext.Context {
	return withString(ctx, clientIPKey, ip)
}

func ClientIPFromContext(ctx stdcontext.Context) string {
	return stringFrom(ctx, clientIPKey)
}

func WithUserAgent(ctx stdcontext.Context, userAgent string) stdcontext.Context {
	return withString(ctx, userAgentKey, userAgent)
}

func UserAgentFromContext(ctx stdcontext.Context) string {
	return stringFrom(ctx, userAgentKey)
}

func withString(ctx stdcontext.Context, key contextKey, value string) stdcontext.Context {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, key, value)
}

func stringFrom(ctx stdcontext.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
