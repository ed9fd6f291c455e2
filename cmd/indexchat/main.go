// Package main provides the entry point for the indexchat CLI.
package main

import (
	"os"

	"github.com/indexchat/indexchat/cmd/indexchat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
