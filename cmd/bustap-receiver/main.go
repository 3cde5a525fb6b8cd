// ABOUTME: Entry point for the standalone network receiver
// ABOUTME: Plays websocket tap streams into a local output backend
package main

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/bustap/internal/cli"
)

func main() {
	if err := cli.ReceiverCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
