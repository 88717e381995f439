package main

import (
	"os"

	"github.com/vaultpass/consumer-secrets/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
