package api

import (
	"context"

	"github.com/terra-clan/codeladder/internal/models"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext extracts the signed-in session from context
func SessionFromContext(ctx context.Context) *models.Session {
	s, ok := ctx.Value(sessionContextKey).(*models.Session)
	if !ok {
		return nil
	}
	return s
}

// ContextWithSession adds the signed-in session to context
func ContextWithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}
