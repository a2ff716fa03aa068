package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/browser"
)

// runAmp implements the `amp` subcommand: a thin convenience wrapper that
// opens the running server's own GET /amp/v1/login redirect, so a user never
// has to remember the host:port to reach Amp's hosted login page.
func runAmp(args []string) int {
	if len(args) == 0 || args[0] != "login" {
		fmt.Fprintln(os.Stderr, "byokey: usage: byokey amp login [--config path]")
		return ExitUserError
	}

	fs := flag.NewFlagSet("amp login", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return ExitUserError
	}

	cfgSnap, err := loadConfigOnly(resolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: %v\n", err)
		return ExitUserError
	}
	cfg := cfgSnap.Load()
	loginURL := fmt.Sprintf("http://%s:%d/amp/v1/login", cfg.Host, cfg.Port)

	fmt.Printf("byokey: opening %s\n", loginURL)
	fmt.Println("  (byokey serve must already be running for this to work)")
	if err := browser.OpenURL(loginURL); err != nil {
		fmt.Fprintf(os.Stderr, "byokey: couldn't open a browser automatically: %v\n", err)
		fmt.Printf("  Visit %s manually.\n", loginURL)
	}
	return ExitOK
}
