// Command syncctl issues API tokens and drives sync jobs against a running
// facilitysync API.
package main

import (
	"os"

	"facilitysync/cmd/syncctl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
