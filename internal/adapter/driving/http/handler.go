package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// maxBodyBytes bounds the save request body.
const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	vault    *application.VaultService
	identity IdentityResolver
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(vault *application.VaultService, identity IdentityResolver, logger *slog.Logger) *Handler {
	return &Handler{
		vault:    vault,
		identity: identity,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request id, logging, and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/user-keys", h.authed(h.GetUserKeys))
	mux.HandleFunc("POST /api/v1/user-keys", h.authed(h.SaveUserKeys))
	mux.HandleFunc("DELETE /api/v1/user-keys", h.authed(h.DeleteUserKey))
	mux.HandleFunc("GET /api/v1/user-keys/status", h.authed(h.UserKeyStatus))
	mux.HandleFunc("GET /api/v1/providers", h.ListProviders)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

func (h *Handler) authed(next http.HandlerFunc) http.HandlerFunc {
	return requireIdentity(h.identity, h.logger, next)
}

// GetUserKeys returns the caller's decrypted secrets. Repeated provider query
// parameters restrict the result; without them every stored secret is returned.
func (h *Handler) GetUserKeys(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	providers := r.URL.Query()["provider"]

	var (
		keys map[string]string
		err  error
	)
	if len(providers) > 0 {
		keys, err = h.vault.GetDecryptedSecrets(r.Context(), userID, providers)
	} else {
		keys, err = h.vault.GetAllDecryptedSecrets(r.Context(), userID)
	}
	if err != nil {
		h.writeServiceError(w, r, "failed to read keys", err)
		return
	}

	writeJSON(w, http.StatusOK, KeysResponse{Keys: keys})
}

// SaveUserKeys stores a batch of secrets for the caller. Processing stops at
// the first failing entry; earlier entries stay saved.
func (h *Handler) SaveUserKeys(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req SaveKeysRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Keys == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.vault.SaveSecrets(r.Context(), userID, toSecretEntries(*req.Keys)); err != nil {
		h.writeServiceError(w, r, "failed to save keys", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// DeleteUserKey removes the caller's secret for the provider query parameter.
func (h *Handler) DeleteUserKey(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	provider := r.URL.Query().Get("provider")
	if provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required")
		return
	}

	if err := h.vault.DeleteSecret(r.Context(), userID, provider); err != nil {
		h.writeServiceError(w, r, "failed to delete key", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// UserKeyStatus lists the caller's stored providers and whether each one can
// be decrypted. No secret values are returned.
func (h *Handler) UserKeyStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	statuses, err := h.vault.ProviderStatuses(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "failed to read key status", err)
		return
	}

	resp := StatusResponse{Providers: make([]ProviderStatusResponse, 0, len(statuses))}
	for _, s := range statuses {
		resp.Providers = append(resp.Providers, toProviderStatusResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListProviders returns the known-provider registry.
func (h *Handler) ListProviders(w http.ResponseWriter, _ *http.Request) {
	resp := ProvidersResponse{Providers: make([]ProviderResponse, 0, len(model.KnownProviders))}
	for _, p := range model.KnownProviders {
		resp.Providers = append(resp.Providers, ProviderResponse{Name: p.Name, Label: p.Label})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps service errors to status codes: validation failures
// are 400, storage failures 503, anything else 500. The failing provider of a
// save batch is echoed back.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	resp := errorResponse{Error: "internal server error"}
	status := http.StatusInternalServerError

	var saveErr *application.ProviderSaveError
	if errors.As(err, &saveErr) {
		resp.Provider = saveErr.Provider
	}

	var validationErr *model.ValidationError
	var storageErr *driven.StorageError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		resp.Error = validationErr.Error()
	case errors.As(err, &storageErr):
		status = http.StatusServiceUnavailable
		resp.Error = "storage unavailable"
	}

	level := slog.LevelError
	if status == http.StatusBadRequest {
		level = slog.LevelInfo
	}
	h.logger.Log(r.Context(), level, msg,
		"request_id", RequestIDFromContext(r.Context()),
		"status", status,
		"provider", resp.Provider,
		"error", err,
	)

	writeJSON(w, status, resp)
}
