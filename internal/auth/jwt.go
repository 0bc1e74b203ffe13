package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"specsharp/internal/apperr"
)

const minSecretLen = 16

type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < minSecretLen {
		return nil, errors.New("JWT_SECRET must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *TokenIssuer) Generate(p Principal) (string, time.Time, error) {
	if p.OrgID == "" {
		return "", time.Time{}, errors.New("empty orgID passed to Generate")
	}

	exp := i.now().Add(i.ttl)
	claims := jwt.MapClaims{
		"orgID": p.OrgID,
		"email": p.Email,
		"role":  p.Role,
		"iat":   i.now().Unix(),
		"exp":   exp.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *TokenIssuer) Validate(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Principal{}, apperr.Wrap(apperr.CodeUnauthorized, err, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, apperr.New(apperr.CodeUnauthorized, "invalid token claims")
	}

	orgID, _ := claims["orgID"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if orgID == "" {
		return Principal{}, apperr.New(apperr.CodeUnauthorized, "token carries no organization")
	}

	return Principal{OrgID: orgID, Email: email, Role: role}, nil
}
