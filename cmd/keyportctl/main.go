// Command keyportctl is an operator tool for the custody API and the
// Keyport database: it generates API keys, checks credentials, creates
// sub-organizations by hand and applies migrations.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
