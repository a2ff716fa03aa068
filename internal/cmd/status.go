package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/byokey/byokey/internal/store"
)

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := configFlag(fs)
	watch := fs.Bool("watch", false, "stream live auth/request events instead of a one-shot summary")
	if err := fs.Parse(args); err != nil {
		return ExitUserError
	}

	ctx := context.Background()
	stack, err := bootstrap(ctx, resolveConfigPath(*configPath), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: %v\n", err)
		return ExitUserError
	}

	if err := printAccountSummary(ctx, stack.Store); err != nil {
		fmt.Fprintf(os.Stderr, "byokey: %v\n", err)
		return ExitUserError
	}
	if !*watch {
		return ExitOK
	}

	cfg := stack.Config.Load()
	return watchStatusFeed(cfg.Host, cfg.Port)
}

func printAccountSummary(ctx context.Context, tokenStore store.TokenStore) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tACCOUNT\tACTIVE\tSTATUS\tLAST USED")
	now := time.Now()
	for _, provider := range store.AllProviderIDs {
		accounts, err := tokenStore.ListAccounts(ctx, provider)
		if err != nil {
			return fmt.Errorf("listing %s accounts: %w", provider, err)
		}
		if len(accounts) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t%s\t-\n", provider, statusLabel(store.StatusNotAuthenticated))
			continue
		}
		for _, account := range accounts {
			lastUsed := "never"
			if !account.LastUsed.IsZero() {
				lastUsed = account.LastUsed.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n",
				provider, account.AccountID, account.IsActive,
				statusLabel(account.Credential.EvaluateStatus(now)), lastUsed)
		}
	}
	return tw.Flush()
}

func statusLabel(s store.Status) string {
	switch s {
	case store.StatusLive:
		return "live"
	case store.StatusExpired:
		return "expired"
	default:
		return "not authenticated"
	}
}

// watchStatusFeed (status_watch.go) dials the server's own /status/ws route
// and renders the live event stream as a bubbletea TUI.
