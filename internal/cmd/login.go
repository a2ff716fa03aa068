package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/pkg/browser"
	"golang.org/x/term"

	"github.com/byokey/byokey/internal/auth"
	"github.com/byokey/byokey/internal/oauth"
	"github.com/byokey/byokey/internal/store"
)

// flowByProvider builds the OAuth flow for id. openBrowser is plumbed
// straight into the four PKCE+loopback constructors, which call it from
// inside Start; the device-code/hybrid/OOB variants ignore it and print the
// URL for the user to open by hand instead.
func flowByProvider(id store.ProviderID, openBrowser func(string) error) (oauth.Flow, error) {
	switch id {
	case store.Claude:
		return auth.NewClaudeFlow(openBrowser), nil
	case store.Codex:
		return auth.NewCodexFlow(openBrowser), nil
	case store.Gemini:
		return auth.NewGeminiFlow(openBrowser), nil
	case store.Antigravity:
		return auth.NewAntigravityFlow(openBrowser), nil
	case store.Copilot:
		return auth.NewCopilotFlow(), nil
	case store.Kiro:
		return auth.NewKiroFlow(), nil
	case store.Kimi:
		return auth.NewKimiFlow(), nil
	case store.Qwen:
		return auth.NewQwenFlow(), nil
	case store.IFlow:
		return auth.NewIFlowFlow(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", id)
	}
}

func runLogin(args []string) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return ExitUserError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "byokey: login requires exactly one provider argument")
		return ExitUserError
	}
	providerID := store.ProviderID(fs.Arg(0))
	if !store.IsKnownProvider(providerID) {
		fmt.Fprintf(os.Stderr, "byokey: unknown provider %q\n", providerID)
		return ExitUserError
	}

	ctx := context.Background()
	stack, err := bootstrap(ctx, resolveConfigPath(*configPath), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: %v\n", err)
		return ExitUserError
	}

	flow, err := flowByProvider(providerID, browser.OpenURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: %v\n", err)
		return ExitUserError
	}

	info, err := flow.Start(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: starting %s login: %v\n", providerID, err)
		return ExitAuthError
	}

	printLoginInstructions(providerID, info)

	oob, isOOB := flow.(*oauth.OOBPasteFlow)
	if isOOB {
		go func() {
			code := promptForPastedCode()
			oob.SubmitCode(code)
		}()
	}

	result, err := flow.Finish(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: %s login failed: %v\n", providerID, err)
		return ExitAuthError
	}

	accountID, label := identityFor(providerID, result)
	account := store.Account{
		Provider:  providerID,
		AccountID: accountID,
		Label:     label,
		IsActive:  true,
		CreatedAt: time.Now(),
		Credential: store.Credential{
			Variant:      store.VariantOAuthToken,
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			ExpiresAt:    result.ExpiresAt,
			IDToken:      result.IDToken,
			Extras:       result.Extras,
		},
	}
	if err := stack.Store.Put(ctx, account); err != nil {
		fmt.Fprintf(os.Stderr, "byokey: saving %s credential: %v\n", providerID, err)
		return ExitAuthError
	}
	if err := stack.Store.SetActive(ctx, providerID, accountID); err != nil {
		fmt.Fprintf(os.Stderr, "byokey: activating %s account: %v\n", providerID, err)
		return ExitAuthError
	}

	if label != "" {
		fmt.Printf("byokey: logged in to %s as %s (%s)\n", providerID, label, accountID)
	} else {
		fmt.Printf("byokey: logged in to %s as %s\n", providerID, accountID)
	}
	return ExitOK
}

// identityFor applies the account-id derivation rules, special-cased for
// Copilot whose identity comes from the GitHub login stashed in Extras
// rather than an id_token or refresh token.
func identityFor(id store.ProviderID, result oauth.Result) (accountID, label string) {
	if id == store.Copilot {
		return auth.CopilotAccountID(result.Extras["github_login"])
	}
	return auth.DeriveAccountID(result)
}

func printLoginInstructions(id store.ProviderID, info oauth.StartInfo) {
	fmt.Printf("byokey: starting %s login\n", id)
	if info.UserCode != "" {
		fmt.Printf("  1. Open %s\n", info.VerificationURL)
		fmt.Printf("  2. Enter this code: %s\n", info.UserCode)
		if err := clipboard.WriteAll(info.UserCode); err == nil {
			fmt.Println("     (copied to your clipboard)")
		}
		if !info.ExpiresAt.IsZero() {
			fmt.Printf("  Code expires at %s\n", info.ExpiresAt.Format(time.Kitchen))
		}
		return
	}
	fmt.Printf("  Opening %s in your browser...\n", info.VerificationURL)
	fmt.Println("  If it doesn't open automatically, visit the URL above.")
}

// promptForPastedCode reads the iFlow out-of-band authorization code from
// the terminal. term.ReadPassword keeps the code off the scrollback buffer
// when stdin is a real terminal; a plain bufio read covers non-interactive
// input (piped stdin, tests).
func promptForPastedCode() string {
	fmt.Print("  Paste the authorization code here: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(raw))
		}
	}
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}
