package cmd

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Exit codes: 0 success, 1 user error, 2 auth failure, 3 server bind
// failure.
const (
	ExitOK        = 0
	ExitUserError = 1
	ExitAuthError = 2
	ExitBindError = 3
)

const usage = `byokey - a local gateway exposing AI subscription accounts as one OpenAI/Anthropic-compatible endpoint

Usage:
  byokey serve [--config path]
  byokey login <provider> [--config path]
  byokey logout <provider> [--config path]
  byokey status [--watch] [--config path]
  byokey amp login [--config path]

Providers: claude, codex, copilot, gemini, kiro, antigravity, qwen, kimi, iflow
`

// Run is the top-level CLI entry point cmd/byokey's main calls directly,
// kept separate from main() so it returns an exit code instead of calling
// os.Exit itself (testable, and lets main own process-level concerns).
func Run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return ExitUserError
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "serve":
		return runServe(rest)
	case "login":
		return runLogin(rest)
	case "logout":
		return runLogout(rest)
	case "status":
		return runStatus(rest)
	case "amp":
		return runAmp(rest)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return ExitOK
	default:
		fmt.Fprintf(os.Stderr, "byokey: unknown subcommand %q\n\n%s", sub, usage)
		return ExitUserError
	}
}

// configFlag registers the --config flag every subcommand accepts, defaulting
// to `~/.config/byokey/settings.json` when left unset.
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "path to the YAML/JSON config file (default: ~/.config/byokey/settings.json)")
}

// resolveConfigPath applies the default config location when --config is
// unset. config.Load treats a missing file at this path as "use defaults",
// so passing it through unconditionally is safe even on a fresh install.
func resolveConfigPath(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "byokey", "settings.json")
}
