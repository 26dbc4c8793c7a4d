package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/feedbacklens/feedbacklens/internal/api/middleware"
	"github.com/feedbacklens/feedbacklens/internal/api/response"
	"github.com/feedbacklens/feedbacklens/internal/store"
	"github.com/feedbacklens/feedbacklens/pkg/models"
)

const (
	apiKeyPrefix         = "flk_"
	integrationKeyPrefix = "flw_"
	keyRandomBytes       = 24
	keyPrefixLen         = 8
)

var validScopes = map[string]bool{
	"read":  true,
	"write": true,
	"admin": true,
}

type createAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type createAPIKeyResponse struct {
	*models.APIKey
	Key string `json:"key"`
}

// NewCreateAPIKeyHandler returns the handler for POST /projects/{projectID}/keys.
// The raw key appears only in this response; the row keeps the bcrypt hash
// and the lookup prefix.
func NewCreateAPIKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}

		var req createAPIKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid JSON body", nil)
			return
		}
		if req.Name == "" || len(req.Name) > 100 {
			response.Error(w, r, response.CodeValidation, "name must be between 1 and 100 characters", nil)
			return
		}
		if len(req.Scopes) == 0 {
			req.Scopes = []string{"read"}
		}
		for _, scope := range req.Scopes {
			if !validScopes[scope] {
				response.Error(w, r, response.CodeValidation, "scope must be one of read, write, admin", nil)
				return
			}
		}

		rawKey, err := generateKey(apiKeyPrefix)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to generate key", nil)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to generate key", nil)
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:        uuid.New(),
			ProjectID: projectID,
			Name:      req.Name,
			KeyHash:   string(hash),
			KeyPrefix: rawKey[:keyPrefixLen],
			Scopes:    req.Scopes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.CreateAPIKey(r.Context(), key); err != nil {
			storeError(w, r, err, "key")
			return
		}
		response.Created(w, createAPIKeyResponse{APIKey: key, Key: rawKey})
	}
}

// NewListAPIKeysHandler returns the handler for GET /projects/{projectID}/keys.
func NewListAPIKeysHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}
		keys, err := s.ListAPIKeys(r.Context(), projectID)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to list keys", nil)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeAPIKeyHandler returns the handler for DELETE /projects/{projectID}/keys/{keyID}.
func NewRevokeAPIKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}
		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid key id", nil)
			return
		}
		if err := s.RevokeAPIKey(r.Context(), keyID, projectID); err != nil {
			storeError(w, r, err, "key")
			return
		}
		response.NoContent(w)
	}
}

type createIntegrationKeyRequest struct {
	Label string `json:"label"`
}

// NewCreateIntegrationKeyHandler returns the handler for
// POST /projects/{projectID}/integration-keys. Integration keys are public
// widget tokens, stored and returned in clear.
func NewCreateIntegrationKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}

		var req createIntegrationKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid JSON body", nil)
			return
		}
		if req.Label == "" || len(req.Label) > 100 {
			response.Error(w, r, response.CodeValidation, "label must be between 1 and 100 characters", nil)
			return
		}

		rawKey, err := generateKey(integrationKeyPrefix)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to generate key", nil)
			return
		}

		key := &models.IntegrationKey{
			ID:        uuid.New(),
			ProjectID: projectID,
			Key:       rawKey,
			Label:     req.Label,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.CreateIntegrationKey(r.Context(), key); err != nil {
			storeError(w, r, err, "key")
			return
		}
		response.Created(w, key)
	}
}

// NewListIntegrationKeysHandler returns the handler for GET /projects/{projectID}/integration-keys.
func NewListIntegrationKeysHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}
		keys, err := s.ListIntegrationKeys(r.Context(), projectID)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to list keys", nil)
			return
		}
		if keys == nil {
			keys = []*models.IntegrationKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeIntegrationKeyHandler returns the handler for
// DELETE /projects/{projectID}/integration-keys/{keyID}.
func NewRevokeIntegrationKeyHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}
		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid key id", nil)
			return
		}
		if err := s.RevokeIntegrationKey(r.Context(), keyID, projectID); err != nil {
			storeError(w, r, err, "key")
			return
		}
		response.NoContent(w)
	}
}

func generateKey(prefix string) (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(buf), nil
}
