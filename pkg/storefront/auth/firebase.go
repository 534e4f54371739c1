package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

// IDTokenVerifier is the part of the Firebase auth client we use.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier validates Firebase ID tokens.
type FirebaseVerifier struct {
	client IDTokenVerifier
	users  RoleLookup
}

var _ Verifier = (*FirebaseVerifier)(nil)

// NewFirebaseVerifier initialises a Firebase app for projectID. An empty
// credentialsFile uses application default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string, users RoleLookup) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app init failed: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth init failed: %w", err)
	}
	return NewFirebaseVerifierWithClient(client, users), nil
}

// NewFirebaseVerifierWithClient wraps an existing token verifier.
func NewFirebaseVerifierWithClient(client IDTokenVerifier, users RoleLookup) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, users: users}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (storefront.Identity, error) {
	if strings.TrimSpace(idToken) == "" {
		return storefront.Identity{}, ErrUnauthenticated
	}

	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return storefront.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if token == nil || strings.TrimSpace(token.UID) == "" {
		return storefront.Identity{}, errors.Join(ErrUnauthenticated, errors.New("invalid uid in token"))
	}

	uid := strings.TrimSpace(token.UID)
	role, err := resolveRole(ctx, v.users, uid, token.Claims["role"])
	if err != nil {
		return storefront.Identity{}, err
	}

	return storefront.Identity{
		Subject: uid,
		Email:   stringClaim(token.Claims["email"]),
		Role:    role,
	}, nil
}
