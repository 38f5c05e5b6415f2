// Package main issues a caller token for one account address.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/soulbound/internal/platform/config"
	"github.com/louisbranch/soulbound/internal/tools/callertoken"
)

func main() {
	cfg, err := callertoken.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := callertoken.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("issue caller token: %v", err)
	}
}
