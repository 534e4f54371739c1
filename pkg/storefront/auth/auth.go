// Package auth turns bearer tokens into storefront identities.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

// ErrUnauthenticated is returned for missing, malformed or expired tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier validates a bearer token and returns the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (storefront.Identity, error)
}

// RoleLookup reads stored users; storefront.Service satisfies it.
type RoleLookup interface {
	GetUser(ctx context.Context, identity string) (*storefront.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	return strings.TrimSpace(jwtauth.TokenFromHeader(r))
}

// resolveRole prefers a valid role claim and falls back to the stored user.
// Unknown users are plain users.
func resolveRole(ctx context.Context, users RoleLookup, subject string, claim interface{}) (storefront.Role, error) {
	if s, ok := claim.(string); ok {
		if role, ok := storefront.ParseRole(s); ok {
			return role, nil
		}
	}
	if users == nil {
		return storefront.RoleUser, nil
	}
	user, err := users.GetUser(ctx, subject)
	if errors.Is(err, storefront.ErrNotFound) {
		return storefront.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

func stringClaim(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
