package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/feedbacklens/feedbacklens/internal/api/response"
	"github.com/feedbacklens/feedbacklens/internal/cache"
	"github.com/feedbacklens/feedbacklens/internal/store"
)

const keyPrefixLen = 8

// IntegrationKeyHeader carries the widget's public project token.
const IntegrationKeyHeader = "X-Integration-Key"

const integrationKeyCacheTTL = time.Minute

// Auth provides authentication and access-checking middleware for both the
// dashboard (Bearer API key) and the widget (integration key header).
type Auth struct {
	store store.Store
	cache cache.Cache
}

// NewAuth creates a new Auth middleware.
func NewAuth(s store.Store, c cache.Cache) *Auth {
	return &Auth{store: s, cache: c}
}

// Authenticate validates the Bearer token, looks up the API key, and sets
// the project id, client key, and scopes in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, r, response.CodeInvalidToken, "Missing or invalid Authorization header", nil)
			return
		}

		if len(rawKey) < keyPrefixLen {
			response.Error(w, r, response.CodeInvalidToken, "Invalid API key format", nil)
			return
		}

		prefix := rawKey[:keyPrefixLen]

		keys, err := a.store.GetAPIKeyByPrefix(r.Context(), prefix)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to validate API key", nil)
			return
		}

		// Find matching key by bcrypt comparison
		var matched bool
		for _, key := range keys {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) == nil {
				ctx := r.Context()
				ctx = SetProjectID(ctx, key.ProjectID)
				ctx = setClientKey(ctx, prefix)
				ctx = setScopes(ctx, key.Scopes)
				r = r.WithContext(ctx)
				matched = true

				// Update last_used_at async
				go func(id uuid.UUID) {
					if err := a.store.UpdateAPIKeyLastUsed(context.Background(), id); err != nil {
						slog.Debug("update api key last used", "key_id", id, "error", err)
					}
				}(key.ID)
				break
			}
		}

		if !matched {
			response.Error(w, r, response.CodeInvalidToken, "Invalid API key", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AuthenticateWidget resolves the integration key header to a project. Key
// lookups are cached briefly to spare the database on chatty widgets.
func (a *Auth) AuthenticateWidget(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := strings.TrimSpace(r.Header.Get(IntegrationKeyHeader))
		if rawKey == "" {
			response.Error(w, r, response.CodeInvalidToken, "Missing integration key", nil)
			return
		}

		projectID, ok := a.cachedProjectID(r.Context(), rawKey)
		if !ok {
			key, err := a.store.GetIntegrationKey(r.Context(), rawKey)
			if err == store.ErrNotFound {
				response.Error(w, r, response.CodeInvalidToken, "Unknown integration key", nil)
				return
			}
			if err != nil {
				response.Error(w, r, response.CodeInternal, "Failed to validate integration key", nil)
				return
			}
			projectID = key.ProjectID
			a.cacheProjectID(r.Context(), rawKey, projectID)

			go func(id uuid.UUID) {
				if err := a.store.UpdateIntegrationKeyLastUsed(context.Background(), id); err != nil {
					slog.Debug("update integration key last used", "key_id", id, "error", err)
				}
			}(key.ID)
		}

		ctx := SetProjectID(r.Context(), projectID)
		ctx = setClientKey(ctx, rawKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireProjectAccess checks that the authenticated identity belongs to the
// project named in the URL.
func (a *Auth) RequireProjectAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlID, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid project id", nil)
			return
		}
		authedID, ok := GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing authenticated identity", nil)
			return
		}
		if authedID != urlID {
			response.Error(w, r, response.CodeForbidden, "No access to this project", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireScope returns middleware that checks whether the authenticated
// API key has the specified scope.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scopes := getScopes(r)
			for _, s := range scopes {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Error(w, r, response.CodeForbidden, "Insufficient permissions", nil)
		})
	}
}

func (a *Auth) cachedProjectID(ctx context.Context, rawKey string) (uuid.UUID, bool) {
	if a.cache == nil {
		return uuid.Nil, false
	}
	val, ok, err := a.cache.Get(ctx, cache.IntegrationKeyLookupKey(rawKey))
	if err != nil || !ok {
		return uuid.Nil, false
	}
	var id uuid.UUID
	if err := json.Unmarshal(val, &id); err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (a *Auth) cacheProjectID(ctx context.Context, rawKey string, id uuid.UUID) {
	if a.cache == nil {
		return
	}
	if val, err := json.Marshal(id); err == nil {
		// Best effort; a cache miss just means another DB lookup.
		_ = a.cache.Set(ctx, cache.IntegrationKeyLookupKey(rawKey), val, integrationKeyCacheTTL)
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
