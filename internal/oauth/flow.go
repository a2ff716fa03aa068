package oauth

import (
	"context"
	"time"
)

// Result is what a completed Flow yields: enough to build a store.Credential
// plus the account identity derivation inputs 
type Result struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	IDToken      string // used only for sub-claim extraction, never as a bearer token
	Extras       map[string]string
}

// StartInfo is what Flow.Start returns for flows that need to show the
// caller something before completion (a browser URL, a device code).
type StartInfo struct {
	// VerificationURL is opened in a browser (PKCE/out-of-band) or displayed
	// for the caller to visit manually (device-code).
	VerificationURL string
	// UserCode is the code the caller types at VerificationURL (device-code only).
	UserCode string
	// ExpiresAt is when this login attempt must complete by.
	ExpiresAt time.Time
}

// Flow is the common start/finish capability every login variant implements.
// Each provider variant (PKCE+loopback, device-code, device-code+PKCE
// hybrid, out-of-band paste, bootstrap-then-exchange) implements this as a
// tagged variant rather than a deep inheritance tree.
type Flow interface {
	// Start begins the login ceremony and returns what the caller must show
	// the user (a URL to open, a code to type).
	Start(ctx context.Context) (StartInfo, error)
	// Finish blocks until the flow completes, polling or waiting on a
	// callback as the variant requires, and returns the resulting tokens.
	// ctx cancellation must promptly release any listener socket or polling
	// loop the flow holds.
	Finish(ctx context.Context) (Result, error)
}
