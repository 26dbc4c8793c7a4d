package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	projectIDKey contextKey = "project_id"
	clientKeyKey contextKey = "client_key"
	scopesKey    contextKey = "api_key_scopes"
)

// SetProjectID stores the authenticated project id in the context.
func SetProjectID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, projectIDKey, id)
}

// GetProjectID returns the project id set by the auth middleware.
func GetProjectID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(projectIDKey).(uuid.UUID)
	return id, ok
}

// setClientKey stores the rate-limit identity (API key prefix or integration
// key) for the request.
func setClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyKey, key)
}

func getClientKey(r *http.Request) (string, bool) {
	key, ok := r.Context().Value(clientKeyKey).(string)
	return key, ok
}

func setScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(scopesKey).([]string)
	return scopes
}
