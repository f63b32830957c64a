// Package net carries request scoped values shared by the transports
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const keyPrincipal ctxKey = "principal"

// WithRequest stores reqID where chi's RequestID middleware keeps it
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, reqID)
}

// WithPrincipal records who the caller authenticated as
func WithPrincipal(ctx context.Context, principal string) context.Context {
	if principal == "" {
		return ctx
	}
	return context.WithValue(ctx, keyPrincipal, principal)
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// Principal returns the authenticated caller if present
func Principal(ctx context.Context) string {
	v, _ := ctx.Value(keyPrincipal).(string)
	return v
}
