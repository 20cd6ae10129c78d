// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and handlers read them. Keeping the
// package free of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	caller := requestcontext.CallerAddress(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithCallerAddress(ctx, addr)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
package requestcontext

import "context"

type (
	callerAddressKey struct{}
	requestIDKey     struct{}
)

// CallerAddress retrieves the authenticated ledger address of the caller.
// Returns "" if not set.
func CallerAddress(ctx context.Context) string {
	if addr, ok := ctx.Value(callerAddressKey{}).(string); ok {
		return addr
	}
	return ""
}

// WithCallerAddress injects the caller's ledger address into the context.
func WithCallerAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, callerAddressKey{}, addr)
}

// RequestID retrieves the request correlation id. Returns "" if not set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request correlation id into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
