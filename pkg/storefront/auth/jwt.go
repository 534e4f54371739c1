package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-chi/jwtauth"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

// JWTVerifier accepts HS256 tokens signed with a shared secret. It backs
// development setups and tests where no identity provider is available.
type JWTVerifier struct {
	ja    *jwtauth.JWTAuth
	users RoleLookup
}

var _ Verifier = (*JWTVerifier)(nil)

// NewJWTVerifier returns a verifier for secret. users may be nil.
func NewJWTVerifier(secret []byte, users RoleLookup) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{ja: jwtauth.New("HS256", secret, nil), users: users}, nil
}

// Issue signs a token for id valid for ttl.
func (v *JWTVerifier) Issue(id storefront.Identity, ttl time.Duration) (string, error) {
	if id.IsZero() {
		return "", errors.New("subject is required")
	}
	claims := map[string]interface{}{
		"sub": id.Subject,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if id.Email != "" {
		claims["email"] = id.Email
	}
	if id.Role != "" {
		claims["role"] = string(id.Role)
	}
	_, token, err := v.ja.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (storefront.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return storefront.Identity{}, ErrUnauthenticated
	}

	parsed, err := jwtauth.VerifyToken(v.ja, token)
	if err != nil {
		return storefront.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	subject := strings.TrimSpace(parsed.Subject())
	if subject == "" {
		return storefront.Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	email, _ := parsed.Get("email")
	roleClaim, _ := parsed.Get("role")
	role, err := resolveRole(ctx, v.users, subject, roleClaim)
	if err != nil {
		return storefront.Identity{}, err
	}

	return storefront.Identity{Subject: subject, Email: stringClaim(email), Role: role}, nil
}
