package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/mykeyring/internal/adapter/driven/credential"
	"github.com/ericfisherdev/mykeyring/internal/adapter/driven/memory"
	"github.com/ericfisherdev/mykeyring/internal/application"
	"github.com/ericfisherdev/mykeyring/internal/domain/model"
	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

// newAccountService wires an AccountService to a real VaultService on store.
func newAccountService(store driven.DocumentStore) (*application.AccountService, *application.VaultService) {
	vault := application.NewVaultService(store, discardLogger())
	accounts := application.NewAccountService(store, credential.Plaintext{}, vault, discardLogger())
	return accounts, vault
}

func TestAccountService_RegisterDuplicateRejected(t *testing.T) {
	accounts, _ := newAccountService(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))

	for _, c2 := range []string{"Passw0rd", "different", ""} {
		err := accounts.Register(ctx, "alice", c2)
		assert.ErrorIs(t, err, model.ErrRejected, "credential %q", c2)
	}

	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	assert.NoError(t, err, "original credential must survive rejected registrations")
}

func TestAccountService_AuthenticateExactMatch(t *testing.T) {
	accounts, _ := newAccountService(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))

	tests := []struct {
		name       string
		username   string
		credential string
		wantErr    error
	}{
		{"match", "alice", "Passw0rd", nil},
		{"wrong case", "alice", "passw0rd", model.ErrUnauthorized},
		{"trailing space", "alice", "Passw0rd ", model.ErrUnauthorized},
		{"empty", "alice", "", model.ErrUnauthorized},
		{"unknown user", "bob", "Passw0rd", model.ErrUnauthorized},
		{"username case", "Alice", "Passw0rd", model.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := accounts.Authenticate(ctx, tt.username, tt.credential)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, ok := accounts.CurrentAccount()
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", account.Username)
			current, ok := accounts.CurrentAccount()
			require.True(t, ok)
			assert.Equal(t, "alice", current.Username)
		})
	}
}

func TestAccountService_UnknownUserAndWrongCredentialIndistinguishable(t *testing.T) {
	accounts, _ := newAccountService(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))

	_, errUnknown := accounts.Authenticate(ctx, "nobody", "Passw0rd")
	_, errWrong := accounts.Authenticate(ctx, "alice", "nope")

	assert.Equal(t, errUnknown, errWrong)
}

func TestAccountService_AuthenticateBindsAndLogoutUnbindsScope(t *testing.T) {
	store := memory.NewStore()
	scope := &recordingScope{}
	accounts := application.NewAccountService(store, credential.Plaintext{}, scope, discardLogger())
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))

	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	require.NoError(t, err)
	require.NotNil(t, scope.last())
	assert.Equal(t, "alice", scope.last().Username)

	accounts.Logout()
	assert.Nil(t, scope.last())
	_, ok := accounts.CurrentAccount()
	assert.False(t, ok)
}

func TestAccountService_FailedAuthenticateEndsPreviousSession(t *testing.T) {
	accounts, vault := newAccountService(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))

	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	_, err = accounts.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, ok := accounts.CurrentAccount()
	assert.False(t, ok)
	_, err = vault.ListAll(ctx)
	assert.ErrorIs(t, err, model.ErrNoSession)
}

func TestAccountService_AuthenticateBackendFailureNotMasked(t *testing.T) {
	store := newFaultyStore()
	accounts, _ := newAccountService(store)
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))

	store.failGet = true
	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	assert.ErrorIs(t, err, model.ErrBackendUnavailable)
	assert.NotErrorIs(t, err, model.ErrUnauthorized)
}

func TestAccountService_RegisterBackendFailure(t *testing.T) {
	store := newFaultyStore()
	accounts, _ := newAccountService(store)

	store.failPut = true
	err := accounts.Register(context.Background(), "alice", "Passw0rd")
	assert.ErrorIs(t, err, model.ErrBackendUnavailable)
	assert.True(t, errors.Is(err, errStoreDown))
}

func TestAccountService_OperationsRequireSession(t *testing.T) {
	accounts, _ := newAccountService(memory.NewStore())
	ctx := context.Background()

	assert.ErrorIs(t, accounts.ChangeCredential(ctx, "N3wPass"), model.ErrNoSession)
	assert.ErrorIs(t, accounts.DeleteAccount(ctx), model.ErrNoSession)
}

func TestAccountService_ChangeCredential(t *testing.T) {
	accounts, _ := newAccountService(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))
	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	require.NoError(t, accounts.ChangeCredential(ctx, "N3wPass"))
	require.NoError(t, accounts.ChangeCredential(ctx, "Th1rdPass"), "session tracks the latest credential")

	accounts.Logout()
	_, err = accounts.Authenticate(ctx, "alice", "Passw0rd")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = accounts.Authenticate(ctx, "alice", "N3wPass")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = accounts.Authenticate(ctx, "alice", "Th1rdPass")
	assert.NoError(t, err)
}

func TestAccountService_ChangeCredentialSkippedWhenStoredRecordChanged(t *testing.T) {
	store := memory.NewStore()
	accounts, _ := newAccountService(store)
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))
	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	// Another writer changes the credential behind the session's back.
	users := store.Collection(model.AccountsCollection)
	require.NoError(t, users.Set(ctx, model.Account{Username: "alice", Credential: "Changed1"}.ToDocument()))

	err = accounts.ChangeCredential(ctx, "N3wPass")
	assert.NoError(t, err, "a failed re-check is skipped silently")

	doc, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Changed1", model.AccountFromDocument(*doc).Credential)
}

func TestAccountService_ChangeCredentialBackendFailure(t *testing.T) {
	store := newFaultyStore()
	accounts, _ := newAccountService(store)
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))
	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	store.failPut = true
	err = accounts.ChangeCredential(ctx, "N3wPass")
	assert.ErrorIs(t, err, model.ErrBackendUnavailable)
}

func TestAccountService_DeleteAccountCascades(t *testing.T) {
	store := memory.NewStore()
	accounts, vault := newAccountService(store)
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))
	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	for _, name := range []string{"email", "bank", "wifi"} {
		require.NoError(t, vault.Create(ctx, name, "v"))
	}

	require.NoError(t, accounts.DeleteAccount(ctx))

	remaining, err := store.Collection(model.SecretsCollection("alice")).ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, ok := accounts.CurrentAccount()
	assert.False(t, ok)

	_, err = accounts.Authenticate(ctx, "alice", "Passw0rd")
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	require.NoError(t, accounts.Register(ctx, "alice", "Again1"), "username is free again")
}

func TestAccountService_DeleteAccountPurgeFailureKeepsAccount(t *testing.T) {
	store := memory.NewStore()
	scope := &recordingScope{purgeErr: model.ErrBackendUnavailable}
	accounts := application.NewAccountService(store, credential.Plaintext{}, scope, discardLogger())
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))
	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	err = accounts.DeleteAccount(ctx)
	assert.ErrorIs(t, err, model.ErrBackendUnavailable)
	assert.Equal(t, []string{"alice"}, scope.purged)

	_, ok := accounts.CurrentAccount()
	assert.True(t, ok, "session survives a failed purge")

	doc, err := store.Collection(model.AccountsCollection).Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, doc, "account must not be deleted before its secrets")
}

func TestAccountService_BcryptVerifier(t *testing.T) {
	store := memory.NewStore()
	verifier, err := credential.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	vault := application.NewVaultService(store, discardLogger())
	accounts := application.NewAccountService(store, verifier, vault, discardLogger())
	ctx := context.Background()

	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))

	doc, err := store.Collection(model.AccountsCollection).Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd", model.AccountFromDocument(*doc).Credential)

	_, err = accounts.Authenticate(ctx, "alice", "Passw0rd")
	require.NoError(t, err)
	require.NoError(t, accounts.ChangeCredential(ctx, "N3wPass"))

	accounts.Logout()
	_, err = accounts.Authenticate(ctx, "alice", "N3wPass")
	assert.NoError(t, err)
}

func TestAccountService_AliceScenario(t *testing.T) {
	store := memory.NewStore()
	accounts, vault := newAccountService(store)
	ctx := context.Background()

	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))

	_, err := accounts.Authenticate(ctx, "alice", "Passw0rd")
	require.NoError(t, err)

	require.NoError(t, vault.Create(ctx, "email", "hunter2"))
	assert.ErrorIs(t, vault.Create(ctx, "email", "other"), model.ErrRejected)
	require.NoError(t, vault.Update(ctx, "email", "hunter3"))

	secrets, err := vault.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Secret{{Name: "email", Value: "hunter3"}}, secrets)

	require.NoError(t, accounts.DeleteAccount(ctx))

	_, err = vault.ListAll(ctx)
	assert.ErrorIs(t, err, model.ErrNoSession)

	_, err = accounts.Authenticate(ctx, "alice", "Passw0rd")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = vault.ListAll(ctx)
	assert.ErrorIs(t, err, model.ErrNoSession)
}

// seedSecret writes a secret straight into username's collection.
func seedSecret(t *testing.T, store driven.DocumentStore, username, name string) {
	t.Helper()
	doc := model.Secret{Name: name, Value: "v"}.ToDocument()
	require.NoError(t, store.Collection(model.SecretsCollection(username)).Set(context.Background(), doc))
}

func TestAccountService_OverlappingLoginsKeepSessionAndScopeTogether(t *testing.T) {
	store := memory.NewStore()
	vault := application.NewVaultService(store, discardLogger())
	scope := &slowBindScope{VaultService: vault, delay: map[string]time.Duration{"alice": 50 * time.Millisecond}}
	accounts := application.NewAccountService(store, credential.Plaintext{}, scope, discardLogger())
	ctx := context.Background()

	require.NoError(t, accounts.Register(ctx, "alice", "Passw0rd"))
	require.NoError(t, accounts.Register(ctx, "bob", "Passw0rd"))
	seedSecret(t, store, "alice", "email")
	seedSecret(t, store, "bob", "bank")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = accounts.Authenticate(ctx, "alice", "Passw0rd")
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = accounts.Authenticate(ctx, "bob", "Passw0rd")
	}()
	wg.Wait()

	current, ok := accounts.CurrentAccount()
	require.True(t, ok)
	other := "alice"
	if current.Username == "alice" {
		other = "bob"
	}

	secrets, err := vault.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, secrets, 1)
	ownSecret := map[string]string{"alice": "email", "bob": "bank"}
	assert.Equal(t, ownSecret[current.Username], secrets[0].Name, "vault scope follows the session")

	require.NoError(t, accounts.DeleteAccount(ctx))

	left, err := store.Collection(model.SecretsCollection(other)).ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 1, "deleting %s must not purge %s's secrets", current.Username, other)

	doc, err := store.Collection(model.AccountsCollection).Get(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, doc)

	gone, err := store.Collection(model.SecretsCollection(current.Username)).ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestAccountService_DeleteAccountPurgesOwnAccountOnly(t *testing.T) {
	store := memory.NewStore()
	scope := &recordingScope{}
	accounts := application.NewAccountService(store, credential.Plaintext{}, scope, discardLogger())
	ctx := context.Background()
	require.NoError(t, accounts.Register(ctx, "bob", "Passw0rd"))
	_, err := accounts.Authenticate(ctx, "bob", "Passw0rd")
	require.NoError(t, err)

	// A stray scope change must not redirect the purge.
	scope.BindScope(&model.Account{Username: "alice"})

	require.NoError(t, accounts.DeleteAccount(ctx))
	assert.Equal(t, []string{"bob"}, scope.purged)
}

func TestAccountService_ConcurrentLoginLogoutSafety(t *testing.T) {
	store := memory.NewStore()
	accounts, vault := newAccountService(store)
	ctx := context.Background()

	users := []string{"alice", "bob", "carol"}
	for _, u := range users {
		require.NoError(t, accounts.Register(ctx, u, "Passw0rd"))
		seedSecret(t, store, u, u+"-secret")
	}

	const rounds = 50
	var wg sync.WaitGroup
	for i := range rounds {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = accounts.Authenticate(ctx, users[i%len(users)], "Passw0rd")
		}()
		go func() {
			defer wg.Done()
			if i%5 == 0 {
				accounts.Logout()
			}
		}()
	}
	wg.Wait()

	current, ok := accounts.CurrentAccount()
	secrets, err := vault.ListAll(ctx)
	if !ok {
		assert.ErrorIs(t, err, model.ErrNoSession)
		return
	}
	require.NoError(t, err)
	require.Len(t, secrets, 1)
	assert.Equal(t, current.Username+"-secret", secrets[0].Name)
}
