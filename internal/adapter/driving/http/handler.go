package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ericfisherdev/mykeyring/internal/domain/model"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// AccountManager is the account surface the API drives.
type AccountManager interface {
	Register(ctx context.Context, username, credential string) error
	Authenticate(ctx context.Context, username, credential string) (model.Account, error)
	CurrentAccount() (model.Account, bool)
	Logout()
	ChangeCredential(ctx context.Context, newCredential string) error
	DeleteAccount(ctx context.Context) error
}

// SecretManager is the vault surface the API drives.
type SecretManager interface {
	ListAll(ctx context.Context) ([]model.Secret, error)
	Create(ctx context.Context, name, value string) error
	Update(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
	DeleteAll(ctx context.Context) error
}

// PasswordSuggester produces suggested secret values.
type PasswordSuggester interface {
	Suggest() (string, error)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	accounts  AccountManager
	secrets   SecretManager
	suggester PasswordSuggester
	limiter   *LoginLimiter
	metrics   *Metrics
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. limiter and
// metrics may be nil.
func NewHandler(
	accounts AccountManager,
	secrets SecretManager,
	suggester PasswordSuggester,
	limiter *LoginLimiter,
	metrics *Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		accounts:  accounts,
		secrets:   secrets,
		suggester: suggester,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. When gatherer is non-nil its metrics
// are served on GET /metrics.
func NewServeMux(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/accounts", h.Register)
	mux.HandleFunc("GET /api/v1/session", h.CurrentAccount)
	mux.HandleFunc("POST /api/v1/session", h.Login)
	mux.HandleFunc("DELETE /api/v1/session", h.Logout)
	mux.HandleFunc("PUT /api/v1/account/credential", h.ChangeCredential)
	mux.HandleFunc("DELETE /api/v1/account", h.DeleteAccount)
	mux.HandleFunc("GET /api/v1/secrets", h.ListSecrets)
	mux.HandleFunc("POST /api/v1/secrets", h.CreateSecret)
	mux.HandleFunc("DELETE /api/v1/secrets", h.DeleteAllSecrets)
	mux.HandleFunc("PUT /api/v1/secrets/{name}", h.UpdateSecret)
	mux.HandleFunc("DELETE /api/v1/secrets/{name}", h.DeleteSecret)
	mux.HandleFunc("GET /api/v1/suggestion", h.Suggest)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	if gatherer != nil {
		mux.Handle("GET /metrics", MetricsHandler(gatherer))
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(h.logger, mux)
	wrapped = crossOriginMiddleware(h.logger, wrapped)
	wrapped = loggingMiddleware(h.logger, h.metrics, wrapped)

	return wrapped
}

// Register creates a new account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validateUsername(req.Username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateAccountPassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accounts.Register(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, model.ErrRejected) {
			writeError(w, http.StatusConflict, "username is already taken")
			return
		}
		h.fail(w, "failed to register account", err)
		return
	}

	writeJSON(w, http.StatusCreated, AccountResponse{Username: req.Username})
}

// Login authenticates and starts the session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if h.limiter != nil && !h.limiter.Allow(req.Username) {
		h.metrics.RecordRateLimited()
		h.logger.Warn("login rate limit exceeded", "username", req.Username)
		writeRateLimitResponse(w, h.limiter.limit)
		return
	}

	account, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrUnauthorized) {
			h.metrics.RecordAuthFailure()
		}
		h.fail(w, "failed to authenticate", err)
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{Username: account.Username})
}

// CurrentAccount returns the logged-in account.
func (h *Handler) CurrentAccount(w http.ResponseWriter, _ *http.Request) {
	account, ok := h.accounts.CurrentAccount()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Username: account.Username})
}

// Logout ends the session. Logging out while logged out succeeds.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.accounts.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// ChangeCredential replaces the logged-in account's password. The new
// password must pass the registration rules and differ from the current one.
func (h *Handler) ChangeCredential(w http.ResponseWriter, r *http.Request) {
	var req ChangeCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	current, ok := h.accounts.CurrentAccount()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	if req.Password == current.Credential {
		writeError(w, http.StatusBadRequest, "new password must differ from the current password")
		return
	}
	if err := validateAccountPassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accounts.ChangeCredential(r.Context(), req.Password); err != nil {
		h.fail(w, "failed to change credential", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount deletes the logged-in account and all of its secrets.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context()); err != nil {
		h.fail(w, "failed to delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSecrets returns every secret of the logged-in account.
func (h *Handler) ListSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := h.secrets.ListAll(r.Context())
	if err != nil {
		h.fail(w, "failed to list secrets", err)
		return
	}

	resp := make([]SecretResponse, 0, len(secrets))
	for _, s := range secrets {
		resp = append(resp, toSecretResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateSecret stores a new secret.
func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	var req SecretRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "passwordName and password are required")
		return
	}

	if err := h.secrets.Create(r.Context(), req.Name, req.Password); err != nil {
		if errors.Is(err, model.ErrRejected) {
			writeError(w, http.StatusConflict, "that password name is already in use")
			return
		}
		h.fail(w, "failed to create secret", err)
		return
	}

	writeJSON(w, http.StatusCreated, SecretResponse{Name: req.Name, Password: req.Password})
}

// UpdateSecret replaces the value of an existing secret.
func (h *Handler) UpdateSecret(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req SecretRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := h.secrets.Update(r.Context(), name, req.Password); err != nil {
		if errors.Is(err, model.ErrRejected) {
			writeError(w, http.StatusNotFound, "password not found")
			return
		}
		h.fail(w, "failed to update secret", err)
		return
	}

	writeJSON(w, http.StatusOK, SecretResponse{Name: name, Password: req.Password})
}

// DeleteSecret removes one secret. Deleting an unknown name succeeds.
func (h *Handler) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	if err := h.secrets.Delete(r.Context(), r.PathValue("name")); err != nil {
		h.fail(w, "failed to delete secret", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllSecrets removes every secret of the logged-in account.
func (h *Handler) DeleteAllSecrets(w http.ResponseWriter, r *http.Request) {
	if err := h.secrets.DeleteAll(r.Context()); err != nil {
		h.fail(w, "failed to delete secrets", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Suggest returns a generated password.
func (h *Handler) Suggest(w http.ResponseWriter, _ *http.Request) {
	password, err := h.suggester.Suggest()
	if err != nil {
		h.fail(w, "failed to suggest password", err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestionResponse{Password: password})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// fail maps err to a response. Expected outcomes are not logged as errors.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	}
	writeError(w, status, message)
}

// decodeBody decodes a bounded JSON body into v. A non-JSON content type gets
// a 415, so no form or text/plain post can reach a handler; a malformed body
// gets a 400.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
