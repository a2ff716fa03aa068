package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.db")
	ctx := context.Background()

	fs1, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	expires := time.Now().Add(time.Hour)
	acc := Account{
		Provider:  Kiro,
		AccountID: "acct-1",
		Label:     "Personal",
		Credential: Credential{
			Variant:      VariantOAuthToken,
			AccessToken:  "at",
			RefreshToken: "rt",
			ExpiresAt:    &expires,
			Extras:       map[string]string{"region": "us-east-1"},
		},
	}
	if err := fs1.Put(ctx, acc); err != nil {
		t.Fatalf("Put: %v", err)
	}

	fs2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen NewFileStore: %v", err)
	}
	got, ok, err := fs2.Get(ctx, Kiro, "acct-1")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if got.Credential.RefreshToken != "rt" || got.Credential.Extras["region"] != "us-east-1" {
		t.Fatalf("unexpected account after reopen: %+v", got)
	}
}

// A credential_blob field this binary doesn't know about must survive a
// read-modify-write cycle (e.g. a refresh performed by an older binary
// against a credential a newer schema version wrote).
func TestFileStoreRoundTripsUnknownCredentialFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.db")
	ctx := context.Background()

	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	acc := Account{
		Provider:  Codex,
		AccountID: "acct-1",
		Credential: Credential{
			Variant:      VariantOAuthToken,
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
			Unknown:      map[string][]byte{"org_id": []byte(`"org-42"`)},
		},
	}
	if err := fs.Put(ctx, acc); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := fs.Get(ctx, Codex, "acct-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got.Credential.Unknown["org_id"]) != `"org-42"` {
		t.Fatalf("expected org_id preserved after first Put, got %+v", got.Credential.Unknown)
	}

	// Simulate a refresh: only AccessToken changes, the rest of the
	// Credential (including Unknown) is carried forward unmodified, the
	// same way internal/auth's refreshers do it.
	refreshed := got
	refreshed.Credential.AccessToken = "at-2"
	if err := fs.Put(ctx, refreshed); err != nil {
		t.Fatalf("Put after refresh: %v", err)
	}

	got2, ok, err := fs.Get(ctx, Codex, "acct-1")
	if err != nil || !ok {
		t.Fatalf("Get after refresh: ok=%v err=%v", ok, err)
	}
	if got2.Credential.AccessToken != "at-2" {
		t.Fatalf("expected refreshed access token, got %q", got2.Credential.AccessToken)
	}
	if string(got2.Credential.Unknown["org_id"]) != `"org-42"` {
		t.Fatalf("expected org_id to survive the refresh's read-modify-write cycle, got %+v", got2.Credential.Unknown)
	}
}

func TestFileStoreIsEncryptedAtRest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.db")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.Put(context.Background(), Account{
		Provider:  Claude,
		AccountID: "secret-account",
		Credential: Credential{
			Variant:     VariantOAuthToken,
			AccessToken: "super-secret-access-token",
		},
	}); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if containsString(raw, "super-secret-access-token") {
		t.Fatal("expected access token to not appear in plaintext on disk")
	}
}

func containsString(haystack []byte, needle string) bool {
	return len(needle) > 0 && string(haystack) != "" && indexOf(string(haystack), needle) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestFileStoreSetActiveIsExclusive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.db")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := fs.Put(ctx, Account{Provider: Qwen, AccountID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.SetActive(ctx, Qwen, "a"); err != nil {
		t.Fatal(err)
	}
	if err := fs.SetActive(ctx, Qwen, "b"); err != nil {
		t.Fatal(err)
	}
	accounts, err := fs.ListAccounts(ctx, Qwen)
	if err != nil {
		t.Fatal(err)
	}
	active := 0
	for _, a := range accounts {
		if a.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly 1 active account, got %d", active)
	}
}

func TestFileStoreSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "tokens.db"))
	if err != nil {
		t.Fatal(err)
	}
	v, err := fs.SchemaVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != CurrentSchemaVersion {
		t.Fatalf("got schema version %d, want %d", v, CurrentSchemaVersion)
	}
}
