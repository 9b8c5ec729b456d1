package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/benvon/eisenhower-todo/internal/models"
)

// ErrInvalidToken marks a token that failed parsing, signature or claim checks
var ErrInvalidToken = errors.New("invalid token")

// clockSkew tolerated on exp, iat and nbf
const clockSkew = 30 * time.Second

// Verifier verifies JWTs issued by one issuer
type Verifier struct {
	jwksManager *JWKSManager
	issuer      string
	jwksURL     string
}

// NewVerifier creates a new JWT verifier
func NewVerifier(jwksManager *JWKSManager, issuer, jwksURL string) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		issuer:      issuer,
		jwksURL:     jwksURL,
	}
}

// Verify checks the signature and standard claims of tokenString and extracts
// the identity claims. Token problems wrap ErrInvalidToken.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAcceptableSkew(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	claims := &models.JWTClaims{
		Sub:       token.Subject(),
		Iss:       token.Issuer(),
		Aud:       token.Audience(),
		ExpiresAt: token.Expiration(),
		IssuedAt:  token.IssuedAt(),
	}
	claims.Email = stringClaim(token, "email")
	claims.Name = stringClaim(token, "name")

	return claims, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
