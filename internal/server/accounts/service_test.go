package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/tokens"
	"github.com/dmitrijs2005/accountkeeper/internal/storage"
)

// failingBackend wraps a real backend and injects errors per operation.
type failingBackend struct {
	storage.Backend
	failPut    func(table string, item storage.Item) error
	failUpdate func(table string) error
	failDelete func(table string, key storage.Item) error
}

func (f *failingBackend) Put(ctx context.Context, table string, item storage.Item, cond *storage.PutCondition) error {
	if f.failPut != nil {
		if err := f.failPut(table, item); err != nil {
			return err
		}
	}
	return f.Backend.Put(ctx, table, item, cond)
}

func (f *failingBackend) Update(ctx context.Context, table string, key storage.Item, set map[string]any) error {
	if f.failUpdate != nil {
		if err := f.failUpdate(table); err != nil {
			return err
		}
	}
	return f.Backend.Update(ctx, table, key, set)
}

func (f *failingBackend) Delete(ctx context.Context, table string, key storage.Item) error {
	if f.failDelete != nil {
		if err := f.failDelete(table, key); err != nil {
			return err
		}
	}
	return f.Backend.Delete(ctx, table, key)
}

func newTestService(t *testing.T, backend storage.Backend) *Service {
	t.Helper()
	return NewService(backend, tokens.NewService(backend), logging.NewNop())
}

// indexOwner returns the userId an index table maps value to, or "".
func indexOwner(t *testing.T, backend storage.Backend, table, field, value string) string {
	t.Helper()
	item, err := backend.Get(context.Background(), table, storage.Item{field: value})
	require.NoError(t, err)
	return itemString(item, "userId")
}

func masterItem(t *testing.T, backend storage.Backend, id string) storage.Item {
	t.Helper()
	item, err := backend.Get(context.Background(), storage.TableUsers, storage.Item{"id": id})
	require.NoError(t, err)
	return item
}

func TestSignup_UsernameOnly(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	res, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.NotEmpty(t, res.Token)

	// Index row points back at the master record.
	assert.Equal(t, res.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))

	item := masterItem(t, backend, res.ID)
	require.NotNil(t, item)
	assert.Equal(t, "alice", item["username"])
	assert.Equal(t, common.RoleNormal, item["role"])
	assert.NotEmpty(t, item["createdAt"])

	// The password is stored as digest + salt, never plaintext.
	assert.NotEqual(t, "secret1", item["password"])
	assert.Len(t, itemString(item, "salt"), 16)

	// The issued token is live for this client.
	token, err := tokens.NewService(backend).Get(ctx, res.ID, common.ClientWeb)
	require.NoError(t, err)
	assert.Equal(t, res.Token, token)
}

func TestSignup_BothKeyFields(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)

	res, err := s.Signup(context.Background(), SignupParams{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "p@ssw0rd",
	}, common.ClientWeb)
	require.NoError(t, err)

	assert.Equal(t, res.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "bob"))
	assert.Equal(t, res.ID, indexOwner(t, backend, storage.TableEmailUsers, "email", "bob@example.com"))
}

func TestSignup_ValidationFailsBeforeAnyWrite(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  SignupParams
		wantErr error
	}{
		{"no key fields", SignupParams{Password: "secret1"}, common.ErrIncompleteArguments},
		{"no password", SignupParams{Username: "alice"}, common.ErrIncompleteArguments},
		{"bad username", SignupParams{Username: "a", Password: "secret1"}, common.ErrInvalidUsername},
		{"bad email", SignupParams{Email: "nope", Password: "secret1"}, common.ErrInvalidEmail},
		{"bad password", SignupParams{Username: "alice", Password: "123"}, common.ErrInvalidPassword},
		{"bad sex", SignupParams{Username: "alice", Password: "secret1", Sex: intPtr(9)}, common.ErrInvalidSex},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Signup(ctx, tc.params, common.ClientWeb)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// No partial state: the failing requests never reached the store.
	assert.Empty(t, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))
}

func TestSignup_DuplicateUsername(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	first, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	_, err = s.Signup(ctx, SignupParams{Username: "alice", Password: "whatever"}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrDuplicateUser)

	// First account intact with its original index entry.
	assert.Equal(t, first.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))
	assert.NotNil(t, masterItem(t, backend, first.ID))
}

func TestSignup_SecondIndexWriteFails_RollsBackFirst(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	// Someone already owns the email.
	taken, err := s.Signup(ctx, SignupParams{Email: "bob@example.com", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	_, err = s.Signup(ctx, SignupParams{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "secret1",
	}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrDuplicateUser)

	// The username row committed before the email collision was deleted again.
	assert.Empty(t, indexOwner(t, backend, storage.TableNameUsers, "username", "bob"))
	// The email owner is untouched.
	assert.Equal(t, taken.ID, indexOwner(t, backend, storage.TableEmailUsers, "email", "bob@example.com"))
}

func TestSignup_MasterWriteFails_RollsBackAllIndexes(t *testing.T) {
	mem := storage.NewMemory()
	backend := &failingBackend{
		Backend: mem,
		failPut: func(table string, item storage.Item) error {
			if table == storage.TableUsers {
				return errors.New("throughput exceeded")
			}
			return nil
		},
	}
	s := newTestService(t, backend)

	_, err := s.Signup(context.Background(), SignupParams{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "secret1",
	}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrWriteFailed)
	assert.NotErrorIs(t, err, common.ErrDuplicateUser)

	// Both committed index rows were compensated.
	assert.Empty(t, indexOwner(t, mem, storage.TableNameUsers, "username", "carol"))
	assert.Empty(t, indexOwner(t, mem, storage.TableEmailUsers, "email", "carol@example.com"))
}

func TestSignin_ByEmail(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	up, err := s.Signup(ctx, SignupParams{Email: "bob@example.com", Password: "p@ssw0rd"}, common.ClientWeb)
	require.NoError(t, err)

	in, err := s.Signin(ctx, SigninParams{Account: "bob@example.com", Password: "p@ssw0rd"}, common.ClientWeb)
	require.NoError(t, err)
	assert.Equal(t, up.ID, in.ID)
	assert.NotEmpty(t, in.Token)
}

func TestSignin_ByUsernameWithExplicitType(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	up, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	in, err := s.Signin(ctx, SigninParams{
		Account:     "alice",
		AccountType: AccountTypeName,
		Password:    "secret1",
	}, common.ClientWeb)
	require.NoError(t, err)
	assert.Equal(t, up.ID, in.ID)
}

func TestSignin_WrongPassword(t *testing.T) {
	s := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	_, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	_, err = s.Signin(ctx, SigninParams{Account: "alice", Password: "wrong-1"}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrPasswordMismatch)
	assert.NotErrorIs(t, err, common.ErrNoSuchUser)
}

func TestSignin_UnknownAccount(t *testing.T) {
	s := newTestService(t, storage.NewMemory())

	_, err := s.Signin(context.Background(), SigninParams{Account: "nobody", Password: "secret1"}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrNoSuchUser)
}

func TestSignin_OrphanedIndexLooksLikeNoUser(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	// An index row whose master record vanished: indistinguishable from a
	// missing index row.
	require.NoError(t, backend.Put(ctx, storage.TableNameUsers,
		storage.Item{"username": "ghost", "userId": "gone"},
		&storage.PutCondition{IfNotExists: "username"}))

	_, err := s.Signin(ctx, SigninParams{Account: "ghost", Password: "secret1"}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrNoSuchUser)
}

func TestSignin_ArgumentAndTypeErrors(t *testing.T) {
	s := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	_, err := s.Signin(ctx, SigninParams{Password: "secret1"}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrIncompleteArguments)

	_, err = s.Signin(ctx, SigninParams{Account: "alice"}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrIncompleteArguments)

	_, err = s.Signin(ctx, SigninParams{Account: "a!", Password: "secret1"}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrUnknownAccountType)

	_, err = s.Signin(ctx, SigninParams{Account: "alice", AccountType: "phone", Password: "secret1"}, common.ClientWeb)
	assert.ErrorIs(t, err, common.ErrInvalidAccountType)
}

func TestGetProfile(t *testing.T) {
	s := newTestService(t, storage.NewMemory())
	ctx := context.Background()

	sex := common.SexFemale
	res, err := s.Signup(ctx, SignupParams{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "secret1",
		FirstName: "Alice",
		LastName:  "Smith",
		Sex:       &sex,
	}, common.ClientWeb)
	require.NoError(t, err)

	p, err := s.GetProfile(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, &Profile{
		ID:        res.ID,
		Username:  "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Smith",
		Sex:       common.SexFemale,
		Role:      common.RoleNormal,
	}, p)
}

func TestGetProfile_Missing(t *testing.T) {
	s := newTestService(t, storage.NewMemory())

	_, err := s.GetProfile(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNoSuchUser)
}

func TestSetProfile_RenameReleasesOldIndex(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	res, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	id, err := s.SetProfile(ctx, UpdateParams{ID: res.ID, Username: "alice2"})
	require.NoError(t, err)
	assert.Equal(t, res.ID, id)

	assert.Equal(t, res.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "alice2"))
	assert.Empty(t, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))

	p, err := s.GetProfile(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", p.Username)

	// The released value is available for a new signup.
	again, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)
	assert.Equal(t, again.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))
}

func TestSetProfile_ResubmittedUnchangedFieldCausesNoChurn(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	res, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	// Re-submitting the current username would lose a conditional create if
	// it were treated as a change; it must be skipped instead.
	_, err = s.SetProfile(ctx, UpdateParams{ID: res.ID, Username: "alice", FirstName: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, res.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))

	p, err := s.GetProfile(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.FirstName)
}

func TestSetProfile_DuplicateTarget(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	taken, err := s.Signup(ctx, SignupParams{Username: "alice2", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)
	res, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	_, err = s.SetProfile(ctx, UpdateParams{ID: res.ID, Username: "alice2"})
	assert.ErrorIs(t, err, common.ErrDuplicateUser)

	// Both owners keep their rows.
	assert.Equal(t, taken.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "alice2"))
	assert.Equal(t, res.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))
}

func TestSetProfile_MasterUpdateFails_RestoresIndexSwap(t *testing.T) {
	mem := storage.NewMemory()
	backend := &failingBackend{
		Backend: mem,
		failUpdate: func(table string) error {
			if table == storage.TableUsers {
				return errors.New("throughput exceeded")
			}
			return nil
		},
	}
	s := newTestService(t, backend)
	ctx := context.Background()

	res, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	_, err = s.SetProfile(ctx, UpdateParams{ID: res.ID, Username: "alice2"})
	assert.ErrorIs(t, err, common.ErrWriteFailed)
	assert.NotErrorIs(t, err, common.ErrDuplicateUser)

	// The completed swap was undone: old row back, new row gone.
	assert.Equal(t, res.ID, indexOwner(t, mem, storage.TableNameUsers, "username", "alice"))
	assert.Empty(t, indexOwner(t, mem, storage.TableNameUsers, "username", "alice2"))
}

func TestSetProfile_AddsEmailWithNoPriorValue(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	res, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	_, err = s.SetProfile(ctx, UpdateParams{ID: res.ID, Email: "alice@example.com"})
	require.NoError(t, err)

	assert.Equal(t, res.ID, indexOwner(t, backend, storage.TableEmailUsers, "email", "alice@example.com"))

	p, err := s.GetProfile(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", p.Email)
}

func TestSetProfile_MissingAccount(t *testing.T) {
	s := newTestService(t, storage.NewMemory())

	_, err := s.SetProfile(context.Background(), UpdateParams{ID: "nope", Username: "alice"})
	assert.ErrorIs(t, err, common.ErrNoSuchUser)
}

func TestSetProfile_ValidationError(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	res, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	_, err = s.SetProfile(ctx, UpdateParams{ID: res.ID, Email: "not-an-email"})
	assert.ErrorIs(t, err, common.ErrInvalidEmail)

	// No index churn happened.
	assert.Equal(t, res.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))
}

func TestDelete_RemovesMasterAndIndexes(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	res, err := s.Signup(ctx, SignupParams{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
	}, common.ClientWeb)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, res.ID))

	assert.Nil(t, masterItem(t, backend, res.ID))
	assert.Empty(t, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))
	assert.Empty(t, indexOwner(t, backend, storage.TableEmailUsers, "email", "alice@example.com"))

	// The token record went with the user.
	token, err := tokens.NewService(backend).Get(ctx, res.ID, common.ClientWeb)
	require.NoError(t, err)
	assert.Empty(t, token)

	// Gone means gone.
	assert.ErrorIs(t, s.Delete(ctx, res.ID), common.ErrNoSuchUser)
}

func TestDelete_IndexCleanupFailureIsTolerated(t *testing.T) {
	mem := storage.NewMemory()
	failing := &failingBackend{Backend: mem}
	s := newTestService(t, failing)
	ctx := context.Background()

	res, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	failing.failDelete = func(table string, key storage.Item) error {
		if table == storage.TableNameUsers {
			return errors.New("unavailable")
		}
		return nil
	}

	// The master delete succeeds, so the account is gone even though the
	// index row could not be cleaned up.
	require.NoError(t, s.Delete(ctx, res.ID))
	assert.Nil(t, masterItem(t, mem, res.ID))
	assert.Equal(t, res.ID, indexOwner(t, mem, storage.TableNameUsers, "username", "alice"))
}

func TestSignout_InvalidatesOnlyTheGivenClient(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ts := tokens.NewService(backend)
	ctx := context.Background()

	res, err := s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	iosRes, err := s.Signin(ctx, SigninParams{Account: "alice", Password: "secret1"}, common.ClientIOS)
	require.NoError(t, err)

	require.NoError(t, s.Signout(ctx, res.ID, common.ClientWeb))

	webToken, err := ts.Get(ctx, res.ID, common.ClientWeb)
	require.NoError(t, err)
	assert.NotEqual(t, res.Token, webToken)

	iosToken, err := ts.Get(ctx, res.ID, common.ClientIOS)
	require.NoError(t, err)
	assert.Equal(t, iosRes.Token, iosToken)
}

// The central invariant: after any mix of operations, a value is indexed iff
// the master record currently carries it, and maps to exactly one owner.
func TestUniquenessInvariant_AfterMixedOperations(t *testing.T) {
	backend := storage.NewMemory()
	s := newTestService(t, backend)
	ctx := context.Background()

	a, err := s.Signup(ctx, SignupParams{Username: "alice", Email: "alice@example.com", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)
	b, err := s.Signup(ctx, SignupParams{Username: "bobby", Password: "secret1"}, common.ClientWeb)
	require.NoError(t, err)

	// A failed signup (duplicate), a rename, and a delete.
	_, err = s.Signup(ctx, SignupParams{Username: "alice", Password: "secret1"}, common.ClientWeb)
	require.ErrorIs(t, err, common.ErrDuplicateUser)
	_, err = s.SetProfile(ctx, UpdateParams{ID: b.ID, Username: "bobby2"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, a.ID))

	// alice's values are fully released.
	assert.Empty(t, indexOwner(t, backend, storage.TableNameUsers, "username", "alice"))
	assert.Empty(t, indexOwner(t, backend, storage.TableEmailUsers, "email", "alice@example.com"))

	// bobby2 is owned by b and matches the master record; bobby is released.
	assert.Equal(t, b.ID, indexOwner(t, backend, storage.TableNameUsers, "username", "bobby2"))
	assert.Empty(t, indexOwner(t, backend, storage.TableNameUsers, "username", "bobby"))

	p, err := s.GetProfile(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "bobby2", p.Username)
}
