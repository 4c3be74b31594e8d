package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/mykeyring/internal/adapter/driven/memory"
	"github.com/ericfisherdev/mykeyring/internal/application"
	"github.com/ericfisherdev/mykeyring/internal/domain/model"
	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

var errStoreDown = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// faultyStore wraps a memory store and injects failures into selected
// operations. deleteBudget, when non-negative, allows that many Delete calls
// to succeed before every further Delete fails.
type faultyStore struct {
	inner *memory.Store

	mu           sync.Mutex
	failGet      bool
	failList     bool
	failPut      bool
	deleteBudget int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{inner: memory.NewStore(), deleteBudget: -1}
}

func (s *faultyStore) Collection(path string) driven.Collection {
	return &faultyCollection{store: s, inner: s.inner.Collection(path)}
}

type faultyCollection struct {
	store *faultyStore
	inner driven.Collection
}

func (c *faultyCollection) Get(ctx context.Context, id string) (*model.Document, error) {
	c.store.mu.Lock()
	fail := c.store.failGet
	c.store.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return c.inner.Get(ctx, id)
}

func (c *faultyCollection) Set(ctx context.Context, doc model.Document) error {
	c.store.mu.Lock()
	fail := c.store.failPut
	c.store.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return c.inner.Set(ctx, doc)
}

func (c *faultyCollection) Delete(ctx context.Context, id string) error {
	c.store.mu.Lock()
	if c.store.deleteBudget == 0 {
		c.store.mu.Unlock()
		return errStoreDown
	}
	if c.store.deleteBudget > 0 {
		c.store.deleteBudget--
	}
	c.store.mu.Unlock()
	return c.inner.Delete(ctx, id)
}

func (c *faultyCollection) ListAll(ctx context.Context) ([]model.Document, error) {
	c.store.mu.Lock()
	fail := c.store.failList
	c.store.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return c.inner.ListAll(ctx)
}

func (c *faultyCollection) PutIfAbsent(ctx context.Context, doc model.Document) (bool, error) {
	c.store.mu.Lock()
	fail := c.store.failPut
	c.store.mu.Unlock()
	if fail {
		return false, errStoreDown
	}
	return c.inner.PutIfAbsent(ctx, doc)
}

func (c *faultyCollection) PutIfExists(ctx context.Context, doc model.Document) (bool, error) {
	c.store.mu.Lock()
	fail := c.store.failPut
	c.store.mu.Unlock()
	if fail {
		return false, errStoreDown
	}
	return c.inner.PutIfExists(ctx, doc)
}

// recordingScope records every BindScope and Purge call.
type recordingScope struct {
	bound    []*model.Account
	purgeErr error
	purged   []string
}

func (r *recordingScope) BindScope(account *model.Account) {
	r.bound = append(r.bound, account)
}

func (r *recordingScope) Purge(_ context.Context, username string) error {
	r.purged = append(r.purged, username)
	return r.purgeErr
}

func (r *recordingScope) last() *model.Account {
	if len(r.bound) == 0 {
		return nil
	}
	return r.bound[len(r.bound)-1]
}

// scriptedSource returns fragments from a fixed script.
type scriptedSource struct {
	fragments []string
	err       error
	calls     []int
}

func (s *scriptedSource) Fragment(n int) (string, error) {
	s.calls = append(s.calls, n)
	if s.err != nil {
		return "", s.err
	}
	next := s.fragments[0]
	s.fragments = s.fragments[1:]
	return next, nil
}

// slowBindScope delays BindScope for selected usernames, widening the gap
// between a login updating the session and the vault scope.
type slowBindScope struct {
	*application.VaultService
	delay map[string]time.Duration
}

func (s *slowBindScope) BindScope(account *model.Account) {
	if account != nil {
		time.Sleep(s.delay[account.Username])
	}
	s.VaultService.BindScope(account)
}
