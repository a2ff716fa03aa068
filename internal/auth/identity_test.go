package auth

import (
	"testing"

	"github.com/byokey/byokey/internal/oauth"
)

func TestDeriveAccountIDPrefersIDTokenSubject(t *testing.T) {
	result := oauth.Result{
		IDToken:      "eyJhbGciOiJub25lIn0.eyJzdWIiOiJ1c2VyLTQyIn0.sig",
		RefreshToken: "rt-should-be-ignored",
	}
	id, label := DeriveAccountID(result)
	if id != "user-42" {
		t.Fatalf("expected sub claim to win, got %q", id)
	}
	if label != "" {
		t.Fatalf("expected no label when id_token sub is available, got %q", label)
	}
}

func TestDeriveAccountIDFallsBackToRefreshTokenHash(t *testing.T) {
	result := oauth.Result{RefreshToken: "some-long-refresh-token-value"}
	id, _ := DeriveAccountID(result)
	if id == "" {
		t.Fatal("expected a non-empty derived id")
	}
	id2, _ := DeriveAccountID(result)
	if id != id2 {
		t.Fatal("expected deterministic hash for the same refresh token")
	}
}

func TestDeriveAccountIDRandomFallbackSetsLabel(t *testing.T) {
	id, label := DeriveAccountID(oauth.Result{})
	if id == "" {
		t.Fatal("expected a random id when no identity is derivable")
	}
	if label == "" {
		t.Fatal("expected a generated label for the random fallback")
	}
}

func TestCopilotAccountIDUsesGitHubLogin(t *testing.T) {
	id, label := CopilotAccountID("octocat")
	if id != "octocat" || label != "" {
		t.Fatalf("expected (octocat, \"\"), got (%q, %q)", id, label)
	}
}
