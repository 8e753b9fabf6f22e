package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/park285/chess-arena/pkg/gamedto"
)

// Identity is a stable participant id, independent of any single connection.
type Identity struct {
	ID          string
	DisplayName string
	// Authenticated is true when the id came from a verified account token.
	Authenticated bool
}

var ErrAuthorization = errf("invalid account token")

// TokenValidator verifies an account token with the external auth system and
// returns the stable account id it belongs to.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (accountID string, err error)
}

// Resolver maps join credentials to a stable identity. Resolution is pure:
// it never touches session state and is safe to call repeatedly.
type Resolver struct {
	validator TokenValidator
}

func NewResolver(validator TokenValidator) *Resolver {
	return &Resolver{validator: validator}
}

// Resolve returns the identity for the given credentials. An account token
// that fails validation rejects the whole request; anonymous ids pass through
// untouched, and a blank anonymous id gets a generated one.
func (r *Resolver) Resolve(ctx context.Context, creds gamedto.Credentials, displayName string) (*Identity, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "anonymous"
	}

	if token := strings.TrimSpace(creds.AccountToken); token != "" {
		if r.validator == nil {
			return nil, ErrAuthorization
		}
		accountID, err := r.validator.Validate(ctx, token)
		if err != nil || strings.TrimSpace(accountID) == "" {
			return nil, ErrAuthorization
		}
		return &Identity{ID: accountID, DisplayName: name, Authenticated: true}, nil
	}

	anon := strings.TrimSpace(creds.AnonymousID)
	if anon == "" {
		anon = uuid.NewString()
	}
	return &Identity{ID: anon, DisplayName: name}, nil
}

// HMACValidator checks tokens of the form "<account-id>:<hex hmac-sha256>"
// signed with a shared secret. It stands in for the external auth service in
// deployments that do not run one.
type HMACValidator struct {
	secret []byte
}

func NewHMACValidator(secret string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret)}
}

func (v *HMACValidator) Validate(_ context.Context, token string) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", ErrAuthorization
	}
	idx := strings.LastIndex(token, ":")
	if idx <= 0 || idx == len(token)-1 {
		return "", ErrAuthorization
	}
	accountID, sig := token[:idx], token[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(v.Sign(accountID))) {
		return "", ErrAuthorization
	}
	return accountID, nil
}

// Sign produces the signature half of a token for the given account id.
func (v *HMACValidator) Sign(accountID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(accountID))
	return hex.EncodeToString(mac.Sum(nil))
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
