package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/mykeyring/internal/domain/model"
	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

// SecretScope is the part of the vault the account service drives. It moves
// the vault's scope on login and logout and purges a named account's secrets
// before the account itself is deleted.
type SecretScope interface {
	BindScope(account *model.Account)
	Purge(ctx context.Context, username string) error
}

// AccountService manages account identities and owns the session. Every
// mutating operation reads the account document before writing it.
//
// mu serializes operations that touch the session, so the session and the
// vault scope always name the same account.
type AccountService struct {
	accounts driven.Collection
	verifier driven.CredentialVerifier
	vault    SecretScope
	session  *Session
	logger   *slog.Logger

	mu sync.Mutex
}

// NewAccountService creates an AccountService with an empty session.
func NewAccountService(
	store driven.DocumentStore,
	verifier driven.CredentialVerifier,
	vault SecretScope,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts: store.Collection(model.AccountsCollection),
		verifier: verifier,
		vault:    vault,
		session:  NewSession(),
		logger:   logger,
	}
}

// Register creates an account. Returns model.ErrRejected if the username is
// already taken. No format or strength validation happens here.
func (s *AccountService) Register(ctx context.Context, username, credential string) error {
	sealed, err := s.verifier.Seal(credential)
	if err != nil {
		return fmt.Errorf("seal credential for %q: %w: %w", username, model.ErrRejected, err)
	}

	account := model.Account{Username: username, Credential: sealed}
	stored, err := s.accounts.PutIfAbsent(ctx, account.ToDocument())
	if err != nil {
		return fmt.Errorf("register %q: %w: %w", username, model.ErrBackendUnavailable, err)
	}
	if !stored {
		return fmt.Errorf("username %q is taken: %w", username, model.ErrRejected)
	}

	s.logger.Info("account registered", "username", username)
	return nil
}

// Authenticate logs username in if the account exists and credential
// matches exactly. On success the session holds the account and the vault is
// bound to it. An unknown username and a wrong credential both yield
// model.ErrUnauthorized and leave the service logged out.
func (s *AccountService) Authenticate(ctx context.Context, username, credential string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.accounts.Get(ctx, username)
	if err != nil {
		return model.Account{}, fmt.Errorf("authenticate %q: %w: %w", username, model.ErrBackendUnavailable, err)
	}

	if doc == nil || !s.verifier.Verify(model.AccountFromDocument(*doc).Credential, credential) {
		s.endSession()
		s.logger.Info("authentication failed", "username", username)
		return model.Account{}, model.ErrUnauthorized
	}

	account := model.Account{Username: username, Credential: credential}
	s.session.Activate(account)
	s.vault.BindScope(&account)

	s.logger.Info("authenticated", "username", username)
	return account, nil
}

// CurrentAccount returns the authenticated account, if any.
func (s *AccountService) CurrentAccount() (model.Account, bool) {
	return s.session.Current()
}

// Logout clears the session and unbinds the vault.
func (s *AccountService) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account, ok := s.session.Current(); ok {
		s.logger.Info("logged out", "username", account.Username)
	}
	s.endSession()
}

// ChangeCredential replaces the active account's credential. The stored
// record is re-fetched and the session's cached credential re-verified
// against it first; if that check fails the write is skipped and nil is
// returned.
func (s *AccountService) ChangeCredential(ctx context.Context, newCredential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.session.Current()
	if !ok {
		return model.ErrNoSession
	}

	doc, err := s.accounts.Get(ctx, current.Username)
	if err != nil {
		return fmt.Errorf("load account %q: %w: %w", current.Username, model.ErrBackendUnavailable, err)
	}
	if doc == nil || !s.verifier.Verify(model.AccountFromDocument(*doc).Credential, current.Credential) {
		s.logger.Warn("credential change skipped: stored credential no longer matches session",
			"username", current.Username,
		)
		return nil
	}

	sealed, err := s.verifier.Seal(newCredential)
	if err != nil {
		return fmt.Errorf("seal credential for %q: %w: %w", current.Username, model.ErrRejected, err)
	}

	updated := model.Account{Username: current.Username, Credential: sealed}
	stored, err := s.accounts.PutIfExists(ctx, updated.ToDocument())
	if err != nil {
		return fmt.Errorf("change credential for %q: %w: %w", current.Username, model.ErrBackendUnavailable, err)
	}
	if !stored {
		s.logger.Warn("credential change skipped: account vanished", "username", current.Username)
		return nil
	}

	s.session.Activate(model.Account{Username: current.Username, Credential: newCredential})
	s.logger.Info("credential changed", "username", current.Username)
	return nil
}

// DeleteAccount removes every secret of the active account, then the account
// itself, then ends the session. If purging secrets fails the account is left
// in place. A failure between the two phases can leave the account's secrets
// orphaned under a deleted username.
func (s *AccountService) DeleteAccount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.session.Current()
	if !ok {
		return model.ErrNoSession
	}

	if err := s.vault.Purge(ctx, current.Username); err != nil {
		return fmt.Errorf("purge secrets of %q: %w", current.Username, err)
	}

	if err := s.accounts.Delete(ctx, current.Username); err != nil {
		return fmt.Errorf("delete account %q: %w: %w", current.Username, model.ErrBackendUnavailable, err)
	}

	s.endSession()
	s.logger.Info("account deleted", "username", current.Username)
	return nil
}

// endSession clears the session and unbinds the vault. Callers hold s.mu.
func (s *AccountService) endSession() {
	s.session.Clear()
	s.vault.BindScope(nil)
}
