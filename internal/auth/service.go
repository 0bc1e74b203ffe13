// Package auth exchanges organization API keys for short-lived bearer
// tokens.
package auth

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"specsharp/internal/apperr"
)

const keyPrefix = "ssk_"

var ErrInvalidCredentials = apperr.New(apperr.CodeUnauthorized, "invalid organization, email or api key")

type Service struct {
	repo   KeyRepository
	tokens *TokenIssuer
	cost   int
}

func NewService(repo KeyRepository, tokens *TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens, cost: bcrypt.DefaultCost}
}

func newKeyMaterial() string {
	a, b := uuid.New(), uuid.New()
	return keyPrefix + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:8])
}

// ISSUE KEY
// The plaintext key is returned once; only its hash is stored.
func (s *Service) IssueKey(ctx context.Context, orgID, email, role string) (string, *APIKey, error) {
	orgID, email = strings.TrimSpace(orgID), strings.ToLower(strings.TrimSpace(email))
	if orgID == "" || email == "" {
		return "", nil, apperr.New(apperr.CodeInvalidInput, "missing required fields")
	}
	if role == "" {
		role = RoleMember
	}
	if role != RoleMember && role != RoleAdmin {
		return "", nil, apperr.New(apperr.CodeInvalidInput, "unknown role %q", role)
	}

	plain := newKeyMaterial()
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), s.cost)
	if err != nil {
		return "", nil, err
	}

	key := &APIKey{
		OrgID:   orgID,
		Email:   email,
		Role:    role,
		KeyHash: string(hashed),
	}
	if err := s.repo.Save(ctx, key); err != nil {
		return "", nil, err
	}
	return plain, key, nil
}

// EXCHANGE
func (s *Service) Exchange(ctx context.Context, orgID, email, plain string) (string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if orgID == "" || email == "" || !strings.HasPrefix(plain, keyPrefix) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	keys, err := s.repo.FindActive(ctx, orgID, email)
	if err != nil {
		return "", time.Time{}, err
	}

	for _, k := range keys {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(plain)) == nil {
			return s.tokens.Generate(Principal{OrgID: k.OrgID, Email: k.Email, Role: k.Role})
		}
	}
	return "", time.Time{}, ErrInvalidCredentials
}

func (s *Service) Tokens() *TokenIssuer { return s.tokens }
