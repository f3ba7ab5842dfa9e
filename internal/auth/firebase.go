package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
)

// ErrInvalidToken is returned when the identity provider rejects an ID token.
var ErrInvalidToken = errors.New("invalid identity token")

// TokenVerifier checks Firebase ID tokens. *auth.Client from the Firebase
// Admin SDK satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// VerifyIdentity verifies idToken and extracts the uid and email claim.
func VerifyIdentity(ctx context.Context, v TokenVerifier, idToken string) (Identity, error) {
	idToken = strings.TrimSpace(strings.TrimPrefix(idToken, "Bearer "))
	if idToken == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrInvalidToken)
	}

	tok, err := v.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if tok.UID == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	id := Identity{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	return id, nil
}
