package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body. Provider names the batch
// entry that failed, when there is one.
type errorResponse struct {
	Error    string `json:"error"`
	Provider string `json:"provider,omitempty"`
}

// KeysResponse maps provider name to plaintext secret.
type KeysResponse struct {
	Keys map[string]string `json:"keys"`
}

// KeyEntry is one provider/value pair in a save request.
type KeyEntry struct {
	Provider string `json:"provider"`
	Value    string `json:"value"`
}

// SaveKeysRequest is the JSON body for the save endpoint. Keys is nil when the
// field is absent or null.
type SaveKeysRequest struct {
	Keys *[]KeyEntry `json:"keys"`
}

// SuccessResponse acknowledges a write.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ProviderStatusResponse is the JSON representation of one stored provider.
type ProviderStatusResponse struct {
	Provider  string `json:"provider"`
	State     string `json:"state"`
	Known     bool   `json:"known"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// StatusResponse lists the stored providers for the caller.
type StatusResponse struct {
	Providers []ProviderStatusResponse `json:"providers"`
}

// ProviderResponse is one entry of the known-provider registry.
type ProviderResponse struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// ProvidersResponse lists the known-provider registry.
type ProvidersResponse struct {
	Providers []ProviderResponse `json:"providers"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toSecretEntries(keys []KeyEntry) []model.SecretEntry {
	entries := make([]model.SecretEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, model.SecretEntry{Provider: k.Provider, Value: k.Value})
	}
	return entries
}

func toProviderStatusResponse(s model.ProviderStatus) ProviderStatusResponse {
	resp := ProviderStatusResponse{
		Provider: s.Provider,
		State:    string(s.State),
		Known:    model.IsKnownProvider(s.Provider),
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
