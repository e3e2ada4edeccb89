package ai

import (
	"fmt"
	"net/http"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// statusError maps a provider's HTTP failure onto the domain sentinels so the
// ingestion retry policy and the HTTP layer can classify it.
func statusError(provider string, status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}

	var kind error
	switch {
	case status == http.StatusTooManyRequests:
		kind = domain.ErrRateLimited
	case status == http.StatusUnauthorized:
		kind = domain.ErrUnauthorized
	case status == http.StatusForbidden:
		kind = domain.ErrForbidden
	case status == http.StatusBadRequest, status == http.StatusNotFound:
		kind = domain.ErrInvalidInput
	case status >= 500:
		kind = domain.ErrServiceUnavailable
	default:
		return fmt.Errorf("%s API returned status %d: %s", provider, status, message)
	}
	return fmt.Errorf("%s API returned status %d: %s: %w", provider, status, message, kind)
}
