// Package main generates the caller token key pair.
package main

import (
	"os"

	"github.com/louisbranch/soulbound/internal/platform/config"
	"github.com/louisbranch/soulbound/internal/tools/callerkey"
)

func main() {
	if err := callerkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate caller key: %v", err)
	}
}
