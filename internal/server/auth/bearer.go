// Package auth implements the bearer credential: a reversible transport
// encoding of (userId, token) presented on each authenticated request and
// checked against the token store.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/accounts"
	"github.com/dmitrijs2005/accountkeeper/internal/server/tokens"
)

// Encode packs (userID, token) into a transport-safe credential. The
// separator is a single space: both values are UUID-shaped and never contain
// whitespace.
func Encode(userID, token string) (string, error) {
	if userID == "" || token == "" {
		return "", common.ErrInvalidCredential
	}
	return base64.StdEncoding.EncodeToString([]byte(userID + " " + token)), nil
}

// Decode unpacks a credential produced by Encode. A credential that is
// empty, not valid base64, or whose payload has no space separator fails
// with the invalid-credential error rather than yielding a truncated userId.
func Decode(credential string) (userID, token string, err error) {
	if credential == "" {
		return "", "", common.ErrInvalidCredential
	}
	raw, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return "", "", common.ErrInvalidCredential
	}
	userID, token, found := strings.Cut(string(raw), " ")
	if !found || userID == "" || token == "" {
		return "", "", common.ErrInvalidCredential
	}
	return userID, token, nil
}

// User is an authenticated request subject: the profile plus the credential
// re-encoded for the response.
type User struct {
	*accounts.Profile
	Token         string `json:"token"`
	Client        string `json:"client"`
	Authorization string `json:"authorization"`
}

type Service struct {
	tokens   *tokens.Service
	accounts *accounts.Service
}

func NewService(tokens *tokens.Service, accounts *accounts.Service) *Service {
	return &Service{tokens: tokens, accounts: accounts}
}

// Validate reports whether the credential's embedded token matches the token
// store's current value for the embedded user and the given client.
func (s *Service) Validate(ctx context.Context, credential, client string) (bool, error) {
	userID, token, err := Decode(credential)
	if err != nil {
		return false, err
	}
	current, err := s.tokens.Get(ctx, userID, client)
	if err != nil {
		return false, fmt.Errorf("lookup token: %w", err)
	}
	return current != "" && current == token, nil
}

// GetUser validates the credential and returns the owning profile together
// with a re-encoded credential. The token is not rotated here: the same
// token is re-wrapped so callers expecting a returned credential get one.
func (s *Service) GetUser(ctx context.Context, credential, client string) (*User, error) {
	userID, token, err := Decode(credential)
	if err != nil {
		return nil, err
	}

	current, err := s.tokens.Get(ctx, userID, client)
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if current == "" || current != token {
		return nil, common.ErrInvalidCredential
	}

	profile, err := s.accounts.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	credential, err = Encode(userID, token)
	if err != nil {
		return nil, err
	}

	return &User{
		Profile:       profile,
		Token:         token,
		Client:        client,
		Authorization: credential,
	}, nil
}
