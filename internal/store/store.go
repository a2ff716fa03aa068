// Package store defines the Credential/Account data model and the TokenStore
// persistence contract, plus three concrete implementations: an in-memory
// store for tests, a file-backed store for single-user installs, and an
// optional Postgres-backed store for shared deployments. The core never
// talks to a database driver directly — it only ever sees the TokenStore
// interface.
package store

import (
	"context"
	"time"
)

// ProviderID is the closed set of upstream tags 
type ProviderID string

const (
	Claude      ProviderID = "claude"
	Codex       ProviderID = "codex"
	Copilot     ProviderID = "copilot"
	Gemini      ProviderID = "gemini"
	Kiro        ProviderID = "kiro"
	Antigravity ProviderID = "antigravity"
	Qwen        ProviderID = "qwen"
	Kimi        ProviderID = "kimi"
	IFlow       ProviderID = "iflow"
)

// AllProviderIDs lists the closed provider set for validation and enumeration.
var AllProviderIDs = []ProviderID{Claude, Codex, Copilot, Gemini, Kiro, Antigravity, Qwen, Kimi, IFlow}

// IsKnownProvider reports whether id is one of the closed set of provider ids.
func IsKnownProvider(id ProviderID) bool {
	for _, p := range AllProviderIDs {
		if p == id {
			return true
		}
	}
	return false
}

// CredentialVariant tags which of the three Credential shapes is populated.
type CredentialVariant int

const (
	// VariantAbsent means no credential is known for the (provider, account).
	VariantAbsent CredentialVariant = iota
	// VariantOAuthToken is an OAuth access/refresh token pair.
	VariantOAuthToken
	// VariantAPIKey is a raw configuration-supplied key that never expires.
	VariantAPIKey
)

// Credential is a tagged union. Exactly one of OAuth/APIKey is
// meaningful, selected by Variant.
type Credential struct {
	Variant CredentialVariant

	// OAuthToken fields.
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time // nil means "no known expiry"
	IDToken      string
	Extras       map[string]string // Copilot endpoint hint, Kiro session region, etc.

	// APIKey field.
	APIKey string

	// Unknown carries any credential_blob JSON field a newer schema version
	// wrote that this build's typed fields above don't know about, so a
	// refresh cycle on an older binary writes it straight back rather than
	// dropping it. Refreshers never touch this field directly; copying the
	// whole Credential (`out := cred`) before overwriting known fields is
	// what keeps it intact.
	Unknown map[string][]byte
}

// Status is the derived liveness of a Credential ( invariant).
type Status int

const (
	StatusLive Status = iota
	StatusExpired
	StatusNotAuthenticated
)

// EvaluateStatus derives liveness: if ExpiresAt is in the past the token is
// Expired; if RefreshToken is absent, Expired is terminal (NotAuthenticated).
// ApiKey credentials are always Live; Absent is always NotAuthenticated.
func (c Credential) EvaluateStatus(now time.Time) Status {
	switch c.Variant {
	case VariantAPIKey:
		return StatusLive
	case VariantOAuthToken:
		if c.ExpiresAt == nil || c.ExpiresAt.After(now) {
			return StatusLive
		}
		if c.RefreshToken == "" {
			return StatusNotAuthenticated
		}
		return StatusExpired
	default:
		return StatusNotAuthenticated
	}
}

// Account is the (provider, account_id, label) triple , plus the
// metadata a TokenStore tracks alongside the credential blob.
type Account struct {
	Provider        ProviderID
	AccountID       string
	Label           string
	IsActive        bool
	CreatedAt       time.Time
	LastRefreshedAt time.Time
	LastUsed        time.Time
	Credential      Credential
}

// AccountSelector picks which account acquire() should use
type AccountSelector struct {
	Mode      SelectorMode
	AccountID string // only meaningful when Mode == SelectorSpecific
}

type SelectorMode int

const (
	SelectorActive SelectorMode = iota
	SelectorSpecific
	SelectorRoundRobin
)

// Active, Specific and RoundRobin are convenience constructors for AccountSelector.
func Active() AccountSelector                { return AccountSelector{Mode: SelectorActive} }
func Specific(accountID string) AccountSelector { return AccountSelector{Mode: SelectorSpecific, AccountID: accountID} }
func RoundRobin() AccountSelector            { return AccountSelector{Mode: SelectorRoundRobin} }

// TokenStore is the persistence contract. Implementations must
// be safe for concurrent callers; BYOKEY never bypasses this interface to
// touch a database or filesystem directly from the auth manager or executors.
type TokenStore interface {
	// Get returns the stored account for (provider, accountID), or ok=false if absent.
	Get(ctx context.Context, provider ProviderID, accountID string) (Account, bool, error)
	// Put upserts the account's credential and metadata.
	Put(ctx context.Context, account Account) error
	// Delete removes a stored account (explicit logout, or unrecoverable refresh failure).
	Delete(ctx context.Context, provider ProviderID, accountID string) error
	// ListAccounts returns every known account for a provider, in no particular order.
	ListAccounts(ctx context.Context, provider ProviderID) ([]Account, error)
	// SetActive marks exactly one account active for a provider, clearing any previous active flag.
	SetActive(ctx context.Context, provider ProviderID, accountID string) error
	// SchemaVersion reports the store's current schema version for migration bookkeeping.
	SchemaVersion(ctx context.Context) (int, error)
}

// CurrentSchemaVersion is the schema version this build writes. Migrations are append-only.
const CurrentSchemaVersion = 1
