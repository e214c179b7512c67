package observability

import "context"

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxTraceID
	ctxRoute
	ctxUserID
)

// ContextWithRequestID stores the gateway request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRequestID)
}

// ContextWithTraceID stores the active trace ID for log correlation.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxTraceID, id)
}

// TraceIDFromContext returns the trace ID or "".
func TraceIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxTraceID)
}

// ContextWithRoute stores the name of the matched route.
func ContextWithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, ctxRoute, route)
}

// RouteFromContext returns the matched route name or "".
func RouteFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRoute)
}

// ContextWithUserID stores the authenticated user ID.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// UserIDFromContext returns the authenticated user ID or "".
func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func contextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}
	var fields []Field
	for _, kv := range []struct {
		name string
		key  ctxKey
	}{
		{"request_id", ctxRequestID},
		{"trace_id", ctxTraceID},
		{"route", ctxRoute},
		{"user_id", ctxUserID},
	} {
		if v := stringValue(ctx, kv.key); v != "" {
			fields = append(fields, String(kv.name, v))
		}
	}
	return fields
}
