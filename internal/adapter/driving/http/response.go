package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ericfisherdev/mykeyring/internal/domain/model"
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
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForError maps a service error to an HTTP status and client-facing
// message. Unknown errors map to 500.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNoSession):
		return http.StatusUnauthorized, "not logged in"
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, model.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "storage backend unavailable"
	case errors.Is(err, model.ErrRejected):
		return http.StatusConflict, "request rejected"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CredentialsRequest is the JSON body for register and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangeCredentialRequest is the JSON body for the credential change endpoint.
type ChangeCredentialRequest struct {
	Password string `json:"password"`
}

// AccountResponse is the JSON representation of the logged-in account.
// The credential is never echoed back.
type AccountResponse struct {
	Username string `json:"username"`
}

// SecretRequest is the JSON body for creating or updating a secret. Name is
// ignored on update; the path names the secret.
type SecretRequest struct {
	Name     string `json:"passwordName"`
	Password string `json:"password"`
}

// SecretResponse is the JSON representation of a stored secret.
type SecretResponse struct {
	Name     string `json:"passwordName"`
	Password string `json:"password"`
}

// SuggestionResponse carries a suggested password.
type SuggestionResponse struct {
	Password string `json:"password"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toSecretResponse(s model.Secret) SecretResponse {
	return SecretResponse{Name: s.Name, Password: s.Value}
}
