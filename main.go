// ABOUTME: Entry point for the bustap command
// ABOUTME: Hands off to the cobra command tree
package main

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/bustap/internal/cli"
)

func main() {
	if err := cli.RootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
