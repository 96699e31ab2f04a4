// Package accounts implements the account consistency engine: every mutation
// of a user record and its uniqueness-index rows runs as an ordered forward
// phase of single-item writes, with already-committed index writes
// compensated when a later step fails. The backend offers no multi-item
// transactions, so the conditional create on the index row is the sole
// enforcement of username/email uniqueness.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/cryptox"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/tokens"
	"github.com/dmitrijs2005/accountkeeper/internal/storage"
)

// keyFields lists the uniqueness-constrained attributes in declaration
// order. The order is fixed: forward writes and compensating deletes both
// follow it, which makes failure behavior deterministic.
var keyFields = []string{"username", "email"}

var keyTables = map[string]string{
	"username": storage.TableNameUsers,
	"email":    storage.TableEmailUsers,
}

var profileAttrs = []string{"id", "username", "email", "sex", "firstName", "lastName", "role"}

type Service struct {
	backend storage.Backend
	tokens  *tokens.Service
	logger  logging.Logger
}

func NewService(backend storage.Backend, tokens *tokens.Service, logger logging.Logger) *Service {
	return &Service{
		backend: backend,
		tokens:  tokens,
		logger:  logger.With("module", "accounts"),
	}
}

// Signup creates the master record together with one index row per supplied
// identifying field, then issues a token for the requesting client.
//
// Index rows are created first, in keyFields order, each with a conditional
// create; the master record is written last. On any failure the
// already-committed index rows are deleted in commit order and the position
// of the failure decides the error: an index write that lost the conditional
// create means the value is taken (duplicate), a failed master write is a
// system error.
func (s *Service) Signup(ctx context.Context, p SignupParams, client string) (*AuthResult, error) {
	values := map[string]string{"username": p.Username, "email": p.Email}

	actualKeys := make([]string, 0, len(keyFields))
	for _, key := range keyFields {
		if values[key] != "" {
			actualKeys = append(actualKeys, key)
		}
	}
	if len(actualKeys) == 0 {
		return nil, common.ErrIncompleteArguments
	}
	if p.Password == "" {
		return nil, common.ErrIncompleteArguments
	}

	if err := validateFields(p.Username, p.Email, p.Password, p.FirstName, p.LastName, p.Sex, true); err != nil {
		return nil, err
	}

	digest, err := cryptox.Sha256(p.Password, "")
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()

	committed := make([]string, 0, len(actualKeys))
	for _, key := range actualKeys {
		err := s.backend.Put(ctx, keyTables[key],
			storage.Item{key: values[key], "userId": id},
			&storage.PutCondition{IfNotExists: key})
		if err != nil {
			s.rollbackIndexes(ctx, committed, values)
			return nil, common.ErrDuplicateUser.WithDetail(fmt.Sprintf("duplicate user '%s'", values[key]))
		}
		committed = append(committed, key)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	item := storage.Item{
		"id":        id,
		"password":  digest.Password,
		"salt":      digest.Salt,
		"role":      common.RoleNormal,
		"createdAt": now,
		"updatedAt": now,
	}
	for _, key := range actualKeys {
		item[key] = values[key]
	}
	if p.FirstName != "" {
		item["firstName"] = p.FirstName
	}
	if p.LastName != "" {
		item["lastName"] = p.LastName
	}
	if p.Sex != nil {
		item["sex"] = *p.Sex
	}

	err = s.backend.Put(ctx, storage.TableUsers, item, &storage.PutCondition{IfNotExists: "id"})
	if err != nil {
		s.rollbackIndexes(ctx, committed, values)
		return nil, common.ErrWriteFailed.WithDetail("error creating user")
	}

	token, err := s.tokens.Refresh(ctx, id, client)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &AuthResult{ID: id, Token: token}, nil
}

// rollbackIndexes deletes committed index rows in commit order. A failed
// rollback delete is logged and does not mask the primary error; the
// orphaned row will block that value until cleaned up.
func (s *Service) rollbackIndexes(ctx context.Context, committed []string, values map[string]string) {
	for _, key := range committed {
		err := s.backend.Delete(ctx, keyTables[key], storage.Item{key: values[key]})
		if err != nil {
			s.logger.Error(ctx, "rollback delete failed",
				"table", keyTables[key], "value", values[key], "error", err)
		}
	}
}

// GetProfile fetches the readable profile attributes for id.
func (s *Service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	if id == "" {
		return nil, common.ErrIncompleteArguments
	}

	item, err := s.backend.Get(ctx, storage.TableUsers, storage.Item{"id": id}, profileAttrs...)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if item == nil {
		return nil, common.ErrNoSuchUser
	}

	return &Profile{
		ID:        itemString(item, "id"),
		Username:  itemString(item, "username"),
		Email:     itemString(item, "email"),
		FirstName: itemString(item, "firstName"),
		LastName:  itemString(item, "lastName"),
		Sex:       itemInt(item, "sex"),
		Role:      itemString(item, "role"),
	}, nil
}

// SetProfile applies a profile edit. Identifying fields whose supplied value
// equals the stored one are left alone even if re-submitted; for each field
// that actually changes, the new index row is created conditionally and the
// old one deleted, and only then is the field recorded as committed. The
// master record is updated last with every supplied field.
//
// On failure, every committed field has its swap undone: the new index row
// is deleted and the old one recreated with a create tolerant of the row
// already existing. Fewer committed fields than attempted means an index
// swap lost to an existing owner (duplicate); otherwise the master update
// itself failed.
func (s *Service) SetProfile(ctx context.Context, p UpdateParams) (string, error) {
	if p.ID == "" {
		return "", common.ErrIncompleteArguments
	}

	current, err := s.GetProfile(ctx, p.ID)
	if err != nil {
		return "", err
	}

	newVals := map[string]string{"username": p.Username, "email": p.Email}
	oldVals := map[string]string{"username": current.Username, "email": current.Email}

	changed := make([]string, 0, len(keyFields))
	for _, key := range keyFields {
		if newVals[key] != "" && newVals[key] != oldVals[key] {
			changed = append(changed, key)
		}
	}

	if err := validateFields(p.Username, p.Email, "", p.FirstName, p.LastName, p.Sex, false); err != nil {
		return "", err
	}

	committed := make([]string, 0, len(changed))
	swapErr := func() error {
		for _, key := range changed {
			err := s.backend.Put(ctx, keyTables[key],
				storage.Item{key: newVals[key], "userId": p.ID},
				&storage.PutCondition{IfNotExists: key})
			if err != nil {
				return err
			}
			if oldVals[key] != "" {
				if err := s.backend.Delete(ctx, keyTables[key], storage.Item{key: oldVals[key]}); err != nil {
					return err
				}
			}
			committed = append(committed, key)
		}

		set := map[string]any{"updatedAt": time.Now().UTC().Format(time.RFC3339)}
		for _, key := range keyFields {
			if newVals[key] != "" {
				set[key] = newVals[key]
			}
		}
		if p.FirstName != "" {
			set["firstName"] = p.FirstName
		}
		if p.LastName != "" {
			set["lastName"] = p.LastName
		}
		if p.Sex != nil {
			set["sex"] = *p.Sex
		}

		return s.backend.Update(ctx, storage.TableUsers, storage.Item{"id": p.ID}, set)
	}()

	if swapErr != nil {
		s.restoreIndexes(ctx, committed, p.ID, newVals, oldVals)
		if len(committed) != len(changed) {
			return "", common.ErrDuplicateUser.WithDetail(fmt.Sprintf("duplicate user '%s'", newVals[changed[len(committed)]]))
		}
		return "", common.ErrWriteFailed.WithDetail("error updating user")
	}

	return p.ID, nil
}

// restoreIndexes undoes completed index swaps in commit order: the new row
// is deleted and the old one recreated. The recreate tolerates the row
// already existing; anything else is logged without masking the primary
// error.
func (s *Service) restoreIndexes(ctx context.Context, committed []string, id string, newVals, oldVals map[string]string) {
	for _, key := range committed {
		if err := s.backend.Delete(ctx, keyTables[key], storage.Item{key: newVals[key]}); err != nil {
			s.logger.Error(ctx, "restore delete failed",
				"table", keyTables[key], "value", newVals[key], "error", err)
		}
		if oldVals[key] == "" {
			continue
		}
		err := s.backend.Put(ctx, keyTables[key],
			storage.Item{key: oldVals[key], "userId": id},
			&storage.PutCondition{IfNotExists: key})
		if err != nil && !errors.Is(err, storage.ErrConditionFailed) {
			s.logger.Error(ctx, "restore put failed",
				"table", keyTables[key], "value", oldVals[key], "error", err)
		}
	}
}

// Delete removes the master record and then its index rows. There is no
// compensation: once the master record is gone the account is gone, and an
// index row that survives a failed cleanup only blocks its value until
// removed by hand.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return common.ErrIncompleteArguments
	}

	item, err := s.backend.Get(ctx, storage.TableUsers, storage.Item{"id": id}, keyFields...)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if item == nil {
		return common.ErrNoSuchUser
	}

	if err := s.backend.Delete(ctx, storage.TableUsers, storage.Item{"id": id}); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	for _, key := range keyFields {
		value := itemString(item, key)
		if value == "" {
			continue
		}
		if err := s.backend.Delete(ctx, keyTables[key], storage.Item{key: value}); err != nil {
			s.logger.Warn(ctx, "index cleanup failed",
				"table", keyTables[key], "value", value, "error", err)
		}
	}

	// Token records live and die with the user.
	if err := s.backend.Delete(ctx, storage.TableTokens, storage.Item{"userId": id}); err != nil {
		s.logger.Warn(ctx, "token cleanup failed", "userId", id, "error", err)
	}

	return nil
}

// Signin resolves the identifier through its index row, verifies the
// password digest, and issues a fresh token for the requesting client. A
// missing index row and a missing master record produce the same error so a
// caller cannot tell which lookup failed; a wrong password is distinct.
func (s *Service) Signin(ctx context.Context, p SigninParams, client string) (*AuthResult, error) {
	if p.Account == "" || p.Password == "" {
		return nil, common.ErrIncompleteArguments
	}

	accountType := p.AccountType
	if accountType == AccountTypeUnknown {
		accountType = GetAccountType(p.Account)
		if accountType == AccountTypeUnknown {
			return nil, common.ErrUnknownAccountType
		}
	}

	var field string
	switch accountType {
	case AccountTypeEmail:
		field = "email"
	case AccountTypeName:
		field = "username"
	default:
		return nil, common.ErrInvalidAccountType
	}

	indexItem, err := s.backend.Get(ctx, keyTables[field], storage.Item{field: p.Account}, "userId")
	if err != nil {
		return nil, fmt.Errorf("get index: %w", err)
	}
	id := itemString(indexItem, "userId")
	if id == "" {
		return nil, common.ErrNoSuchUser
	}

	userItem, err := s.backend.Get(ctx, storage.TableUsers, storage.Item{"id": id}, "password", "salt")
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if userItem == nil {
		return nil, common.ErrNoSuchUser
	}

	if !cryptox.Verify(p.Password, itemString(userItem, "salt"), itemString(userItem, "password")) {
		return nil, common.ErrPasswordMismatch
	}

	token, err := s.tokens.Refresh(ctx, id, client)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &AuthResult{ID: id, Token: token}, nil
}

// Signout issues a fresh token for (userID, client) and discards it, which
// invalidates the credential the caller presented without touching other
// clients' tokens.
func (s *Service) Signout(ctx context.Context, userID, client string) error {
	if userID == "" {
		return common.ErrIncompleteArguments
	}
	_, err := s.tokens.Refresh(ctx, userID, client)
	if err != nil {
		return fmt.Errorf("rotate token: %w", err)
	}
	return nil
}

func itemString(item storage.Item, attr string) string {
	if item == nil {
		return ""
	}
	s, _ := item[attr].(string)
	return s
}

func itemInt(item storage.Item, attr string) int {
	if item == nil {
		return 0
	}
	switch v := item[attr].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
