// Command byokey runs the local gateway that exposes AI subscription
// accounts as a single OpenAI/Anthropic-compatible HTTP endpoint.
package main

import (
	"os"

	"github.com/byokey/byokey/internal/cmd"
)

func main() {
	os.Exit(cmd.Run(os.Args[1:]))
}
