package driven

import (
	"context"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// Authenticator verifies bearer credentials.
// Returns domain.ErrUnauthorized when the credential is not accepted.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*domain.Principal, error)

	// Enabled reports whether any credential scheme is configured
	Enabled() bool
}
