package application

import (
	"sync"

	"github.com/ericfisherdev/mykeyring/internal/domain/model"
)

// Session records which account, if any, is currently authenticated. It is
// created empty and holds at most one account at a time. The cached account
// carries the credential as supplied at login, which ChangeCredential uses to
// re-verify against the stored record.
type Session struct {
	mu      sync.RWMutex
	account *model.Account
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Current returns the authenticated account and true, or a zero Account and
// false when logged out.
func (s *Session) Current() (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return model.Account{}, false
	}
	return *s.account, true
}

// Activate replaces the session's account.
func (s *Session) Activate(account model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = &account
}

// Clear logs the session out.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = nil
}
