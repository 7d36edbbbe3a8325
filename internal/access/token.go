package access

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType tags access tokens so staff tokens signed with the same secret
// are never accepted as quotation tokens.
const TokenType = "quotation-access"

// DefaultTokenTTL is the lifetime of an access token.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims is the payload of a quotation access token.
type Claims struct {
	QuotationID int64  `json:"quotationId"`
	AccessCode  string `json:"accessCode"`
	Type        string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies quotation access tokens with HS256.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer fails with ErrMissingSecret when secret is blank.
// A non-positive ttl selects DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue mints a token binding quotationID to accessCode. It returns the
// signed token and its expiry.
func (i *TokenIssuer) Issue(quotationID int64, accessCode string) (string, time.Time, error) {
	issuedAt := i.now().UTC()
	expiresAt := issuedAt.Add(i.ttl)
	claims := &Claims{
		QuotationID: quotationID,
		AccessCode:  accessCode,
		Type:        TokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign quotation token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify returns the claims of a valid token. It reports false for a bad
// signature, an unexpected algorithm, expiry or a foreign token type.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, bool) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, false
	}
	if claims.Type != TokenType || claims.QuotationID <= 0 || claims.AccessCode == "" {
		return nil, false
	}
	return claims, true
}
