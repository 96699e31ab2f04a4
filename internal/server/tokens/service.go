// Package tokens manages the opaque per-(user, client) tokens that back
// bearer credentials. Each user owns a single record in the tokens table
// whose "tokens" attribute maps a client identifier to its currently valid
// token.
package tokens

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/accountkeeper/internal/storage"
)

type Service struct {
	backend storage.Backend
}

func NewService(backend storage.Backend) *Service {
	return &Service{backend: backend}
}

// Get returns the current token for (userID, client), or the empty string if
// no token record exists or the record has no entry for that client.
func (s *Service) Get(ctx context.Context, userID, client string) (string, error) {
	item, err := s.backend.Get(ctx, storage.TableTokens, storage.Item{"userId": userID})
	if err != nil {
		return "", fmt.Errorf("get token record: %w", err)
	}
	if item == nil {
		return "", nil
	}

	m, ok := item["tokens"].(map[string]any)
	if !ok {
		return "", nil
	}
	token, _ := m[client].(string)
	return token, nil
}

// Refresh issues a fresh token for (userID, client) and invalidates the
// previous one for that client only; other clients' entries survive because
// the write is a targeted member update, not a record overwrite.
//
// The record create is conditional and its failure is swallowed: if another
// writer created the record first, the member update below still lands on a
// record that exists by either writer's doing. This is the one deliberately
// ignored error in the service.
func (s *Service) Refresh(ctx context.Context, userID, client string) (string, error) {
	newToken := uuid.NewString()

	_ = s.backend.Put(ctx, storage.TableTokens,
		storage.Item{"userId": userID, "tokens": map[string]any{}},
		&storage.PutCondition{IfNotExists: "userId"})

	err := s.backend.Update(ctx, storage.TableTokens,
		storage.Item{"userId": userID},
		map[string]any{"tokens." + client: newToken})
	if err != nil {
		return "", fmt.Errorf("set token: %w", err)
	}

	return newToken, nil
}
