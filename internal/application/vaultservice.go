package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/mykeyring/internal/domain/model"
	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

// VaultService manages the secrets of exactly one bound account. The scope is
// set only through BindScope; the service never authenticates on its own.
type VaultService struct {
	store  driven.DocumentStore
	logger *slog.Logger

	mu       sync.RWMutex
	username string
	secrets  driven.Collection // nil when no scope is bound.
}

// NewVaultService creates a VaultService with no bound scope.
func NewVaultService(store driven.DocumentStore, logger *slog.Logger) *VaultService {
	return &VaultService{
		store:  store,
		logger: logger,
	}
}

// BindScope replaces the active scope. A nil account unbinds it, after which
// every operation fails with model.ErrNoSession until rebound.
func (s *VaultService) BindScope(account *model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account == nil {
		if s.secrets != nil {
			s.logger.Debug("vault scope unbound", "username", s.username)
		}
		s.username = ""
		s.secrets = nil
		return
	}

	s.username = account.Username
	s.secrets = s.store.Collection(model.SecretsCollection(account.Username))
	s.logger.Debug("vault scope bound", "username", account.Username)
}

// scope returns the bound collection and its owner, or model.ErrNoSession.
func (s *VaultService) scope() (driven.Collection, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.secrets == nil {
		return nil, "", model.ErrNoSession
	}
	return s.secrets, s.username, nil
}

// ListAll returns every secret stored for the bound account. Each call
// re-queries the store; order follows the store's enumeration order.
func (s *VaultService) ListAll(ctx context.Context) ([]model.Secret, error) {
	secrets, username, err := s.scope()
	if err != nil {
		return nil, err
	}

	docs, err := secrets.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list secrets for %q: %w: %w", username, model.ErrBackendUnavailable, err)
	}

	result := make([]model.Secret, 0, len(docs))
	for _, doc := range docs {
		result = append(result, model.SecretFromDocument(doc))
	}
	return result, nil
}

// Create stores a new secret. Returns model.ErrRejected if the name is
// already used in the bound scope; the existing value is left untouched.
func (s *VaultService) Create(ctx context.Context, name, value string) error {
	secrets, username, err := s.scope()
	if err != nil {
		return err
	}

	secret := model.Secret{Name: name, Value: value}
	stored, err := secrets.PutIfAbsent(ctx, secret.ToDocument())
	if err != nil {
		return fmt.Errorf("create secret %q for %q: %w: %w", name, username, model.ErrBackendUnavailable, err)
	}
	if !stored {
		return fmt.Errorf("secret %q already exists: %w", name, model.ErrRejected)
	}

	s.logger.Info("secret created", "username", username, "name", name)
	return nil
}

// Update overwrites the value of an existing secret. Returns
// model.ErrRejected if the name does not exist; nothing is created.
func (s *VaultService) Update(ctx context.Context, name, value string) error {
	secrets, username, err := s.scope()
	if err != nil {
		return err
	}

	secret := model.Secret{Name: name, Value: value}
	stored, err := secrets.PutIfExists(ctx, secret.ToDocument())
	if err != nil {
		return fmt.Errorf("update secret %q for %q: %w: %w", name, username, model.ErrBackendUnavailable, err)
	}
	if !stored {
		return fmt.Errorf("secret %q does not exist: %w", name, model.ErrRejected)
	}

	s.logger.Info("secret updated", "username", username, "name", name)
	return nil
}

// Delete removes a secret. Deleting an absent name succeeds.
func (s *VaultService) Delete(ctx context.Context, name string) error {
	secrets, username, err := s.scope()
	if err != nil {
		return err
	}

	if err := secrets.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete secret %q for %q: %w: %w", name, username, model.ErrBackendUnavailable, err)
	}

	s.logger.Info("secret deleted", "username", username, "name", name)
	return nil
}

// DeleteAll removes every secret of the bound account. See Purge.
func (s *VaultService) DeleteAll(ctx context.Context) error {
	secrets, username, err := s.scope()
	if err != nil {
		return err
	}
	return s.purge(ctx, secrets, username)
}

// Purge removes every secret stored for username, whatever scope is bound.
// The account service calls it with the account it is deleting so the purge
// cannot land on a scope rebound in the meantime.
func (s *VaultService) Purge(ctx context.Context, username string) error {
	return s.purge(ctx, s.store.Collection(model.SecretsCollection(username)), username)
}

// purge lists and then deletes each entry. It is not transactional: the first
// failure is returned and secrets deleted before it stay deleted.
func (s *VaultService) purge(ctx context.Context, secrets driven.Collection, username string) error {
	docs, err := secrets.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list secrets for %q: %w: %w", username, model.ErrBackendUnavailable, err)
	}

	for i, doc := range docs {
		if err := secrets.Delete(ctx, doc.ID); err != nil {
			s.logger.Warn("bulk secret delete stopped partway",
				"username", username,
				"deleted", i,
				"total", len(docs),
				"error", err,
			)
			return fmt.Errorf("delete secret %q for %q: %w: %w", doc.ID, username, model.ErrBackendUnavailable, err)
		}
	}

	s.logger.Info("all secrets deleted", "username", username, "count", len(docs))
	return nil
}
