// Package authmanager implements the auth manager: it serves
// a live Credential on demand, coordinating at-most-one concurrent refresh
// per (ProviderId, account_id) and enforcing the 30-second refresh cooldown
// that keeps an outage from turning into a refresh stampede.
package authmanager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/byokey/byokey/internal/byokeyerr"
	"github.com/byokey/byokey/internal/clock"
	"github.com/byokey/byokey/internal/oauth"
	"github.com/byokey/byokey/internal/store"
)

// cooldownWindow is the minimum spacing between refresh attempts for the
// same (provider, account) key.
const cooldownWindow = 30 * time.Second

// Refresher performs the provider-specific refresh-token exchange. Executors
// and internal/auth provide one implementation per provider; the manager
// never knows the wire shape of a refresh call.
type Refresher interface {
	Refresh(ctx context.Context, cred store.Credential) (store.Credential, error)
}

type cooldownEntry struct {
	at  time.Time
	cr  store.Credential
	err error
}

// Manager is the Auth Manager. It is safe for concurrent use.
type Manager struct {
	store      store.TokenStore
	refreshers map[store.ProviderID]Refresher
	clock      clock.Clock

	cooldownMu sync.Mutex
	cooldowns  map[string]cooldownEntry

	keyLocksMu sync.Mutex
	keyLocks   map[string]*sync.Mutex
}

// New builds a Manager backed by store and the given per-provider refreshers.
func New(tokenStore store.TokenStore, refreshers map[store.ProviderID]Refresher, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	return &Manager{
		store:      tokenStore,
		refreshers: refreshers,
		clock:      clk,
		cooldowns:  make(map[string]cooldownEntry),
		keyLocks:   make(map[string]*sync.Mutex),
	}
}

func cooldownKey(provider store.ProviderID, accountID string) string {
	return string(provider) + "/" + accountID
}

func (m *Manager) lockFor(key string) *sync.Mutex {
	m.keyLocksMu.Lock()
	defer m.keyLocksMu.Unlock()
	l, ok := m.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.keyLocks[key] = l
	}
	return l
}

// Acquire resolves the account per selector, guarantees its credential is
// non-expired at the moment of return (refreshing if necessary), and
// returns the resulting account. Failures are *byokeyerr.Error values
// (KindNotAuthenticated or KindTransientAuthError)
func (m *Manager) Acquire(ctx context.Context, provider store.ProviderID, selector store.AccountSelector) (store.Account, error) {
	account, err := m.selectAccount(ctx, provider, selector)
	if err != nil {
		return store.Account{}, err
	}

	now := m.clock.Now()
	switch account.Credential.EvaluateStatus(now) {
	case store.StatusLive:
		return account, nil
	case store.StatusNotAuthenticated:
		return store.Account{}, byokeyerr.NotAuthenticated(string(provider))
	}

	// StatusExpired with a refresh token present: run the refresh protocol.
	return m.refresh(ctx, account)
}

// ForceRefresh re-runs the refresh protocol for a specific account
// regardless of its current expiry: the dispatcher calls this on a
// CredentialExpired response, then retries the upstream call once. It
// shares refresh's cooldown and single-flight-per-key behavior with Acquire,
// so a storm of CredentialExpired responses for the same account still only
// triggers one upstream refresh call.
func (m *Manager) ForceRefresh(ctx context.Context, provider store.ProviderID, accountID string) (store.Account, error) {
	account, ok, err := m.store.Get(ctx, provider, accountID)
	if err != nil {
		return store.Account{}, byokeyerr.Internal("", err)
	}
	if !ok {
		return store.Account{}, byokeyerr.NotAuthenticated(string(provider))
	}
	if account.Credential.Variant == store.VariantAPIKey {
		// Invariant: an ApiKey credential is never modified by
		// the Auth Manager. Nothing to refresh; report it back unchanged,
		// the call site's retry will rerun and get an identical error.
		return account, nil
	}
	return m.refresh(ctx, account)
}

func (m *Manager) refresh(ctx context.Context, account store.Account) (store.Account, error) {
	key := cooldownKey(account.Provider, account.AccountID)

	if cached, ok := m.checkCooldown(key); ok {
		if cached.err != nil {
			return store.Account{}, cached.err
		}
		account.Credential = cached.cr
		return account, nil
	}

	lock := m.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	// Double-checked: another goroutine may have refreshed (or recorded a
	// cooldown failure) while we waited for the lock.
	if cached, ok := m.checkCooldown(key); ok {
		if cached.err != nil {
			return store.Account{}, cached.err
		}
		account.Credential = cached.cr
		return account, nil
	}

	refresher, ok := m.refreshers[account.Provider]
	if !ok {
		err := byokeyerr.Internal("", fmt.Errorf("authmanager: no refresher registered for provider %q", account.Provider))
		return store.Account{}, err
	}

	refreshed, refreshErr := refresher.Refresh(ctx, account.Credential)
	now := m.clock.Now()

	if refreshErr == nil {
		account.Credential = refreshed
		account.LastRefreshedAt = now
		if err := m.store.Put(ctx, account); err != nil {
			return store.Account{}, byokeyerr.Internal("", err)
		}
		m.recordCooldown(key, cooldownEntry{at: now, cr: refreshed})
		return account, nil
	}

	if isHardFailure(refreshErr) {
		account.Credential.RefreshToken = ""
		if err := m.store.Put(ctx, account); err != nil {
			return store.Account{}, byokeyerr.Internal("", err)
		}
		terminal := byokeyerr.NotAuthenticated(string(account.Provider))
		m.recordCooldown(key, cooldownEntry{at: now, err: terminal})
		return store.Account{}, terminal
	}

	// Soft failure: leave the stored credential untouched, just remember
	// the cooldown so concurrent/immediate callers don't hammer upstream.
	transient := byokeyerr.TransientAuthError(string(account.Provider), refreshErr, cooldownWindow)
	m.recordCooldown(key, cooldownEntry{at: now, err: transient})
	return store.Account{}, transient
}

func (m *Manager) checkCooldown(key string) (cooldownEntry, bool) {
	m.cooldownMu.Lock()
	defer m.cooldownMu.Unlock()
	entry, ok := m.cooldowns[key]
	if !ok {
		return cooldownEntry{}, false
	}
	if m.clock.Now().Sub(entry.at) >= cooldownWindow {
		return cooldownEntry{}, false
	}
	return entry, true
}

func (m *Manager) recordCooldown(key string, entry cooldownEntry) {
	m.cooldownMu.Lock()
	defer m.cooldownMu.Unlock()
	m.cooldowns[key] = entry
}

// isHardFailure distinguishes a terminal failure (revoked/rejected
// credential) from a transient one (network/5xx, retryable after cooldown).
func isHardFailure(err error) bool {
	var authErr *oauth.AuthenticationError
	if errors.As(err, &authErr) {
		switch authErr.Kind {
		case oauth.UpstreamRejected, oauth.StateMismatch, oauth.MalformedResponse:
			return true
		default:
			return false
		}
	}
	// An unclassified error (no AuthenticationError in the chain) is treated
	// as transient: refusing to serve on an unrecognized error is safer than
	// wiping a credential we don't understand the failure of.
	return false
}

// selectAccount resolves the AccountSelector to a concrete Account, applying
// round-robin bookkeeping when the selector asks for it.
func (m *Manager) selectAccount(ctx context.Context, provider store.ProviderID, selector store.AccountSelector) (store.Account, error) {
	switch selector.Mode {
	case store.SelectorSpecific:
		acc, ok, err := m.store.Get(ctx, provider, selector.AccountID)
		if err != nil {
			return store.Account{}, byokeyerr.Internal("", err)
		}
		if !ok {
			return store.Account{}, byokeyerr.NotAuthenticated(string(provider))
		}
		return acc, nil

	case store.SelectorRoundRobin:
		return m.selectRoundRobin(ctx, provider)

	default: // SelectorActive
		accounts, err := m.store.ListAccounts(ctx, provider)
		if err != nil {
			return store.Account{}, byokeyerr.Internal("", err)
		}
		for _, acc := range accounts {
			if acc.IsActive {
				return acc, nil
			}
		}
		return store.Account{}, byokeyerr.NotAuthenticated(string(provider))
	}
}

func (m *Manager) selectRoundRobin(ctx context.Context, provider store.ProviderID) (store.Account, error) {
	accounts, err := m.store.ListAccounts(ctx, provider)
	if err != nil {
		return store.Account{}, byokeyerr.Internal("", err)
	}

	now := m.clock.Now()
	var eligible []store.Account
	for _, acc := range accounts {
		if acc.Credential.EvaluateStatus(now) != store.StatusNotAuthenticated {
			eligible = append(eligible, acc)
		}
	}
	if len(eligible) == 0 {
		return store.Account{}, byokeyerr.NotAuthenticated(string(provider))
	}
	// Single-account providers degrade to Active: round-robin
	// bookkeeping is a no-op there since there is nothing to rotate among.
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].LastUsed.Equal(eligible[j].LastUsed) {
			return eligible[i].LastUsed.Before(eligible[j].LastUsed)
		}
		return eligible[i].AccountID < eligible[j].AccountID
	})
	chosen := eligible[0]
	chosen.LastUsed = now
	if err := m.store.Put(ctx, chosen); err != nil {
		return store.Account{}, byokeyerr.Internal("", err)
	}
	return chosen, nil
}
