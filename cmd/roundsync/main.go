// Package main is the entry point for the roundsync CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roundtable-labs/roundsync/internal/watchcli"
)

func main() {
	if err := watchcli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
