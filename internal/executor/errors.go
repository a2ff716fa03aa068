package executor

import (
	"fmt"

	"github.com/byokey/byokey/internal/store"
)

// CredentialExpired signals a token-expiry response from an upstream (401,
// or 403 with an expired_token body) so the dispatcher can run exactly one
// AuthManager.refresh-then-retry cycle
type CredentialExpired struct {
	Provider store.ProviderID
	Status   int
	Cause    error
}

func (e *CredentialExpired) Error() string {
	return fmt.Sprintf("executor: credential expired for provider %q (status %d)", e.Provider, e.Status)
}

func (e *CredentialExpired) Unwrap() error { return e.Cause }
