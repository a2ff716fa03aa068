package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/byokey/byokey/internal/store"
)

func runLogout(args []string) int {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	configPath := configFlag(fs)
	accountFlag := fs.String("account", "", "account id to remove (default: the active account)")
	if err := fs.Parse(args); err != nil {
		return ExitUserError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "byokey: logout requires exactly one provider argument")
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

	accountID, err := resolveLogoutAccount(ctx, stack.Store, providerID, *accountFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: %v\n", err)
		return ExitUserError
	}

	if err := stack.Store.Delete(ctx, providerID, accountID); err != nil {
		fmt.Fprintf(os.Stderr, "byokey: removing %s account %s: %v\n", providerID, accountID, err)
		return ExitAuthError
	}

	fmt.Printf("byokey: logged out of %s (%s)\n", providerID, accountID)
	return ExitOK
}

// resolveLogoutAccount picks the account --account names explicitly, or
// falls back to whichever account is currently active. A provider with no
// accounts, or one with several and no active flag set, is a user error:
// there is nothing unambiguous to log out of.
func resolveLogoutAccount(ctx context.Context, tokenStore store.TokenStore, providerID store.ProviderID, accountFlag string) (string, error) {
	if accountFlag != "" {
		return accountFlag, nil
	}
	accounts, err := tokenStore.ListAccounts(ctx, providerID)
	if err != nil {
		return "", fmt.Errorf("listing %s accounts: %w", providerID, err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("no %s accounts are logged in", providerID)
	}
	for _, account := range accounts {
		if account.IsActive {
			return account.AccountID, nil
		}
	}
	if len(accounts) == 1 {
		return accounts[0].AccountID, nil
	}
	return "", fmt.Errorf("%s has %d accounts and none is active; pass --account to pick one", providerID, len(accounts))
}
