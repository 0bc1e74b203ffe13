package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specsharp/internal/apperr"
)

func TestJWTFlow(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	want := Principal{OrgID: "org-9", Email: "test@example.com", Role: RoleMember}
	token, _, err := issuer.Generate(want)
	require.NoError(t, err)

	got, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidateRejects(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer("another-secret-key-000", time.Hour)
	require.NoError(t, err)

	foreign, _, err := other.Generate(Principal{OrgID: "org-1"})
	require.NoError(t, err)

	expiredIssuer, err := NewTokenIssuer(testSecret, time.Minute)
	require.NoError(t, err)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredIssuer.Generate(Principal{OrgID: "org-1"})
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"orgID": "org-1",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noOrg, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "a@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":         "not-a-token",
		"foreign secret":  foreign,
		"expired":         expired,
		"alg none":        unsigned,
		"no organization": noOrg,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Validate(token)
			assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
		})
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("short", time.Hour)
	assert.Error(t, err)

	_, _, err = (&TokenIssuer{secret: []byte(testSecret), ttl: time.Hour, now: time.Now}).Generate(Principal{})
	assert.Error(t, err)
}
