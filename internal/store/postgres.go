package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the optional shared-deployment TokenStore from SPEC_FULL
// §C.3, for installs that run more than one BYOKEY process against the same
// account pool. It speaks the same Account/Credential shapes as FileStore but
// keeps rows in a `byokey_tokens` table instead of a single JSON document, so
// SetActive/Put race correctly across processes via the database's own
// transactional guarantees instead of an in-process mutex.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS byokey_tokens (
	provider          text NOT NULL,
	account_id        text NOT NULL,
	credential_blob   jsonb NOT NULL,
	label             text NOT NULL DEFAULT '',
	is_active         boolean NOT NULL DEFAULT false,
	created_at        timestamptz NOT NULL DEFAULT now(),
	last_refreshed_at timestamptz,
	last_used         timestamptz,
	PRIMARY KEY (provider, account_id)
);
CREATE TABLE IF NOT EXISTS byokey_schema_version (version integer NOT NULL);
`)
	if err != nil {
		return fmt.Errorf("store: ensure postgres schema: %w", err)
	}
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM byokey_schema_version`).Scan(&count); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if count == 0 {
		if _, err := s.pool.Exec(ctx, `INSERT INTO byokey_schema_version (version) VALUES ($1)`, CurrentSchemaVersion); err != nil {
			return fmt.Errorf("store: seed schema version: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Get(ctx context.Context, provider ProviderID, accountID string) (Account, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT provider, account_id, credential_blob, label, is_active, created_at, last_refreshed_at, last_used
FROM byokey_tokens WHERE provider = $1 AND account_id = $2`, string(provider), accountID)
	acc, err := scanAccount(row)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}
	return acc, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		provider, accountID, label string
		blob                       []byte
		isActive                   bool
		createdAt                  time.Time
		lastRefreshedAt            *time.Time
		lastUsed                   *time.Time
	)
	if err := row.Scan(&provider, &accountID, &blob, &label, &isActive, &createdAt, &lastRefreshedAt, &lastUsed); err != nil {
		return Account{}, err
	}
	var cj credentialJSON
	if err := json.Unmarshal(blob, &cj); err != nil {
		return Account{}, fmt.Errorf("store: parse credential_blob: %w", err)
	}
	acc := Account{
		Provider:  ProviderID(provider),
		AccountID: accountID,
		Label:     label,
		IsActive:  isActive,
		CreatedAt: createdAt,
		Credential: Credential{
			Variant:      cj.Variant,
			AccessToken:  cj.AccessToken,
			RefreshToken: cj.RefreshToken,
			ExpiresAt:    cj.ExpiresAt,
			IDToken:      cj.IDToken,
			Extras:       cj.Extras,
			APIKey:       cj.APIKey,
			Unknown:      fromCredentialJSONUnknown(cj.Unknown),
		},
	}
	if lastRefreshedAt != nil {
		acc.LastRefreshedAt = *lastRefreshedAt
	}
	if lastUsed != nil {
		acc.LastUsed = *lastUsed
	}
	return acc, nil
}

func (s *PostgresStore) Put(ctx context.Context, account Account) error {
	cj := credentialJSON{
		Variant:      account.Credential.Variant,
		AccessToken:  account.Credential.AccessToken,
		RefreshToken: account.Credential.RefreshToken,
		ExpiresAt:    account.Credential.ExpiresAt,
		IDToken:      account.Credential.IDToken,
		Extras:       account.Credential.Extras,
		APIKey:       account.Credential.APIKey,
		Unknown:      toCredentialJSONUnknown(account.Credential.Unknown),
	}
	blob, err := json.Marshal(cj)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO byokey_tokens (provider, account_id, credential_blob, label, is_active, last_refreshed_at, last_used)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (provider, account_id) DO UPDATE SET
	credential_blob = EXCLUDED.credential_blob,
	label = EXCLUDED.label,
	is_active = EXCLUDED.is_active,
	last_refreshed_at = EXCLUDED.last_refreshed_at,
	last_used = EXCLUDED.last_used`,
		string(account.Provider), account.AccountID, blob, account.Label, account.IsActive,
		nullableTime(account.LastRefreshedAt), nullableTime(account.LastUsed))
	if err != nil {
		return fmt.Errorf("store: upsert postgres token: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *PostgresStore) Delete(ctx context.Context, provider ProviderID, accountID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM byokey_tokens WHERE provider = $1 AND account_id = $2`, string(provider), accountID)
	return err
}

func (s *PostgresStore) ListAccounts(ctx context.Context, provider ProviderID) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `
SELECT provider, account_id, credential_blob, label, is_active, created_at, last_refreshed_at, last_used
FROM byokey_tokens WHERE provider = $1 ORDER BY account_id`, string(provider))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetActive(ctx context.Context, provider ProviderID, accountID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `UPDATE byokey_tokens SET is_active = false WHERE provider = $1`, string(provider)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE byokey_tokens SET is_active = true WHERE provider = $1 AND account_id = $2`, string(provider), accountID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.pool.QueryRow(ctx, `SELECT version FROM byokey_schema_version LIMIT 1`).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
