package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/medialoom/medialoom/internal/identity"
)

// errInvalidAssertion marks an assertion the provider examined and rejected,
// as opposed to a transport or provider fault.
var errInvalidAssertion = errors.New("invalid sso assertion")

// ssoValidator validates an opaque SSO assertion and returns the asserted
// subject. Implementations must honor ctx cancellation.
type ssoValidator interface {
	Validate(ctx context.Context, assertion string) (SSOSubject, error)
}

// SSOSubject is the identity the SSO provider vouched for.
type SSOSubject struct {
	ID   string
	Role string
}

// identitySSOValidator validates assertions against an identity provider's
// whoami endpoint, treating the assertion as a session token.
type identitySSOValidator struct {
	client *identity.Client
}

func newIdentitySSOValidator(client *identity.Client) *identitySSOValidator {
	return &identitySSOValidator{client: client}
}

func (v *identitySSOValidator) Validate(ctx context.Context, assertion string) (SSOSubject, error) {
	ident, err := v.client.Whoami(ctx, assertion)
	if err != nil {
		var httpErr *identity.HTTPError
		if errors.As(err, &httpErr) {
			switch httpErr.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return SSOSubject{}, fmt.Errorf("%w: provider returned %d", errInvalidAssertion, httpErr.StatusCode)
			}
		}
		return SSOSubject{}, fmt.Errorf("whoami: %w", err)
	}
	role, ok := ident.StringTrait("role")
	if !ok {
		role = "operator"
	}
	return SSOSubject{ID: ident.ID, Role: role}, nil
}
