package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// fileRecord is the on-disk shape of one `tokens` table row.
// credential_blob is kept as raw JSON so unknown fields from newer schema
// versions round-trip even when an older binary reads the file.
type fileRecord struct {
	Provider        ProviderID      `json:"provider"`
	AccountID       string          `json:"account_id"`
	CredentialBlob  json.RawMessage `json:"credential_blob"`
	Label           string          `json:"label"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	LastRefreshedAt time.Time       `json:"last_refreshed_at"`
	LastUsed        time.Time       `json:"last_used"`
}

type fileDocument struct {
	SchemaVersion int          `json:"schema_version"`
	Tokens        []fileRecord `json:"tokens"`
}

// credentialJSON is the versioned JSON shape stored inside CredentialBlob.
// Its custom MarshalJSON/UnmarshalJSON keep Unknown populated: a plain
// struct tag of `json:"-"` on Unknown would never round-trip anything,
// silently dropping any field a newer schema version wrote on the very next
// write from an older binary.
type credentialJSON struct {
	Variant      CredentialVariant `json:"variant"`
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	IDToken      string            `json:"id_token,omitempty"`
	Extras       map[string]string `json:"extras,omitempty"`
	APIKey       string            `json:"api_key,omitempty"`
	// Unknown holds every field a newer schema version wrote that this
	// build doesn't recognize, so a read-modify-write cycle on an older
	// binary still preserves them.
	Unknown map[string]json.RawMessage `json:"-"`
}

// credentialJSONKnownFields lists every JSON key credentialJSON's typed
// fields already own, kept in sync with the struct tags above. Anything
// else found on unmarshal lands in Unknown instead of being discarded.
var credentialJSONKnownFields = map[string]bool{
	"variant":       true,
	"access_token":  true,
	"refresh_token": true,
	"expires_at":    true,
	"id_token":      true,
	"extras":        true,
	"api_key":       true,
}

// credentialJSONAlias has the same fields as credentialJSON but none of its
// methods, so marshaling/unmarshaling through it doesn't recurse back into
// credentialJSON's own MarshalJSON/UnmarshalJSON.
type credentialJSONAlias struct {
	Variant      CredentialVariant `json:"variant"`
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	IDToken      string            `json:"id_token,omitempty"`
	Extras       map[string]string `json:"extras,omitempty"`
	APIKey       string            `json:"api_key,omitempty"`
}

func (c credentialJSON) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(credentialJSONAlias{
		Variant:      c.Variant,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
		IDToken:      c.IDToken,
		Extras:       c.Extras,
		APIKey:       c.APIKey,
	})
	if err != nil {
		return nil, err
	}
	if len(c.Unknown) == 0 {
		return known, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Unknown {
		if !credentialJSONKnownFields[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (c *credentialJSON) UnmarshalJSON(data []byte) error {
	var alias credentialJSONAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	unknown := make(map[string]json.RawMessage)
	for k, v := range all {
		if !credentialJSONKnownFields[k] {
			unknown[k] = v
		}
	}
	*c = credentialJSON{
		Variant:      alias.Variant,
		AccessToken:  alias.AccessToken,
		RefreshToken: alias.RefreshToken,
		ExpiresAt:    alias.ExpiresAt,
		IDToken:      alias.IDToken,
		Extras:       alias.Extras,
		APIKey:       alias.APIKey,
		Unknown:      unknown,
	}
	return nil
}

// FileStore is the file-backed embedded store for single-user installs: a
// single `~/.byokey/tokens.db` document holding `tokens` rows and a
// `schema_version`, encrypted at rest. Writes are
// serialized by a single mutex and committed via write-to-temp-then-rename,
// matching the durability expectations of a local single-writer database
// without pulling in a full SQL engine for the common single-user install.
type FileStore struct {
	mu     sync.Mutex
	path   string
	cipher *blobCipher
}

// NewFileStore opens (or creates) the tokens.db at path.
func NewFileStore(path string) (*FileStore, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
		return nil, fmt.Errorf("store: create tokens dir: %w", err)
	}
	secretPath := filepath.Join(filepath.Dir(expanded), ".install-secret")
	cipher, err := newBlobCipher(secretPath)
	if err != nil {
		return nil, err
	}
	fs := &FileStore{path: expanded, cipher: cipher}
	if _, err := os.Stat(expanded); os.IsNotExist(err) {
		if err := fs.writeDocument(fileDocument{SchemaVersion: CurrentSchemaVersion}); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func expandHome(path string) (string, error) {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("store: resolve home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

func (fs *FileStore) readDocument() (fileDocument, error) {
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		return fileDocument{}, fmt.Errorf("store: read tokens.db: %w", err)
	}
	if len(raw) == 0 {
		return fileDocument{SchemaVersion: CurrentSchemaVersion}, nil
	}
	plaintext, err := fs.cipher.Decrypt(raw)
	if err != nil {
		return fileDocument{}, fmt.Errorf("store: decrypt tokens.db: %w", err)
	}
	var doc fileDocument
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return fileDocument{}, fmt.Errorf("store: parse tokens.db: %w", err)
	}
	return migrate(doc), nil
}

// migrate applies append-only schema migrations ("migrations are append-only").
func migrate(doc fileDocument) fileDocument {
	if doc.SchemaVersion < 1 {
		doc.SchemaVersion = 1
	}
	return doc
}

func (fs *FileStore) writeDocument(doc fileDocument) error {
	doc.SchemaVersion = CurrentSchemaVersion
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: marshal tokens.db: %w", err)
	}
	ciphertext, err := fs.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, ciphertext, 0o600); err != nil {
		return fmt.Errorf("store: write temp tokens.db: %w", err)
	}
	return os.Rename(tmp, fs.path)
}

// toCredentialJSONUnknown/fromCredentialJSONUnknown convert between
// Credential.Unknown's map[string][]byte (kept dependency-free in
// internal/store's core types) and credentialJSON.Unknown's
// map[string]json.RawMessage (the two are the same underlying bytes, just
// named differently on either side of the JSON boundary).
func toCredentialJSONUnknown(m map[string][]byte) map[string]json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = json.RawMessage(v)
	}
	return out
}

func fromCredentialJSONUnknown(m map[string]json.RawMessage) map[string][]byte {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = []byte(v)
	}
	return out
}

func toFileRecord(acc Account) (fileRecord, error) {
	cj := credentialJSON{
		Variant:      acc.Credential.Variant,
		AccessToken:  acc.Credential.AccessToken,
		RefreshToken: acc.Credential.RefreshToken,
		ExpiresAt:    acc.Credential.ExpiresAt,
		IDToken:      acc.Credential.IDToken,
		Extras:       acc.Credential.Extras,
		APIKey:       acc.Credential.APIKey,
		Unknown:      toCredentialJSONUnknown(acc.Credential.Unknown),
	}
	blob, err := json.Marshal(cj)
	if err != nil {
		return fileRecord{}, err
	}
	return fileRecord{
		Provider:        acc.Provider,
		AccountID:       acc.AccountID,
		CredentialBlob:  blob,
		Label:           acc.Label,
		IsActive:        acc.IsActive,
		CreatedAt:       acc.CreatedAt,
		LastRefreshedAt: acc.LastRefreshedAt,
		LastUsed:        acc.LastUsed,
	}, nil
}

func fromFileRecord(r fileRecord) (Account, error) {
	var cj credentialJSON
	if len(r.CredentialBlob) > 0 {
		if err := json.Unmarshal(r.CredentialBlob, &cj); err != nil {
			return Account{}, err
		}
	}
	return Account{
		Provider:        r.Provider,
		AccountID:       r.AccountID,
		Label:           r.Label,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt,
		LastRefreshedAt: r.LastRefreshedAt,
		LastUsed:        r.LastUsed,
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
	}, nil
}

func (fs *FileStore) Get(_ context.Context, provider ProviderID, accountID string) (Account, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	doc, err := fs.readDocument()
	if err != nil {
		return Account{}, false, err
	}
	for _, r := range doc.Tokens {
		if r.Provider == provider && r.AccountID == accountID {
			acc, err := fromFileRecord(r)
			return acc, err == nil, err
		}
	}
	return Account{}, false, nil
}

func (fs *FileStore) Put(_ context.Context, account Account) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	doc, err := fs.readDocument()
	if err != nil {
		return err
	}
	rec, err := toFileRecord(account)
	if err != nil {
		return err
	}
	replaced := false
	for i, r := range doc.Tokens {
		if r.Provider == account.Provider && r.AccountID == account.AccountID {
			doc.Tokens[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Tokens = append(doc.Tokens, rec)
	}
	return fs.writeDocument(doc)
}

func (fs *FileStore) Delete(_ context.Context, provider ProviderID, accountID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	doc, err := fs.readDocument()
	if err != nil {
		return err
	}
	out := doc.Tokens[:0]
	for _, r := range doc.Tokens {
		if r.Provider == provider && r.AccountID == accountID {
			continue
		}
		out = append(out, r)
	}
	doc.Tokens = out
	return fs.writeDocument(doc)
}

func (fs *FileStore) ListAccounts(_ context.Context, provider ProviderID) ([]Account, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	doc, err := fs.readDocument()
	if err != nil {
		return nil, err
	}
	var out []Account
	for _, r := range doc.Tokens {
		if r.Provider != provider {
			continue
		}
		acc, err := fromFileRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (fs *FileStore) SetActive(_ context.Context, provider ProviderID, accountID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	doc, err := fs.readDocument()
	if err != nil {
		return err
	}
	for i, r := range doc.Tokens {
		if r.Provider == provider {
			doc.Tokens[i].IsActive = r.AccountID == accountID
		}
	}
	return fs.writeDocument(doc)
}

func (fs *FileStore) SchemaVersion(_ context.Context) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	doc, err := fs.readDocument()
	if err != nil {
		return 0, err
	}
	return doc.SchemaVersion, nil
}
