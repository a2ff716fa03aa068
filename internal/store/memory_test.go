package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStorePutGetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	acc := Account{
		Provider:  Claude,
		AccountID: "acct-1",
		Label:     "Work",
		Credential: Credential{
			Variant:     VariantOAuthToken,
			AccessToken: "at",
		},
	}
	if err := s.Put(ctx, acc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(ctx, Claude, "acct-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Label != "Work" || got.Credential.AccessToken != "at" {
		t.Fatalf("unexpected account: %+v", got)
	}
}

func TestMemoryStoreSetActiveClearsOthers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := s.Put(ctx, Account{Provider: Codex, AccountID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetActive(ctx, Codex, "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetActive(ctx, Codex, "b"); err != nil {
		t.Fatal(err)
	}
	accounts, err := s.ListAccounts(ctx, Codex)
	if err != nil {
		t.Fatal(err)
	}
	activeCount := 0
	for _, a := range accounts {
		if a.IsActive {
			activeCount++
			if a.AccountID != "b" {
				t.Fatalf("expected b active, got %s", a.AccountID)
			}
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active account, got %d", activeCount)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.Put(ctx, Account{Provider: Gemini, AccountID: "x"})
	if err := s.Delete(ctx, Gemini, "x"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, Gemini, "x"); ok {
		t.Fatal("expected account to be deleted")
	}
}

func TestCredentialEvaluateStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name string
		cred Credential
		want Status
	}{
		{"api key always live", Credential{Variant: VariantAPIKey, APIKey: "k"}, StatusLive},
		{"absent", Credential{Variant: VariantAbsent}, StatusNotAuthenticated},
		{"oauth no expiry", Credential{Variant: VariantOAuthToken, AccessToken: "a"}, StatusLive},
		{"oauth not yet expired", Credential{Variant: VariantOAuthToken, AccessToken: "a", ExpiresAt: &future}, StatusLive},
		{"oauth expired with refresh token", Credential{Variant: VariantOAuthToken, AccessToken: "a", RefreshToken: "r", ExpiresAt: &past}, StatusExpired},
		{"oauth expired without refresh token is terminal", Credential{Variant: VariantOAuthToken, AccessToken: "a", ExpiresAt: &past}, StatusNotAuthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cred.EvaluateStatus(now); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
