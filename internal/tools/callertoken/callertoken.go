// Package callertoken issues caller tokens from the signing key in the
// environment.
package callertoken

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/louisbranch/soulbound/internal/services/registry/auth"
	"github.com/louisbranch/soulbound/internal/services/registry/ledger"
)

// Config holds caller token command options.
type Config struct {
	Caller string
	TTL    time.Duration
}

// ParseConfig parses caller token flags.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		return Config{}, errors.New("flag set is required")
	}
	var cfg Config
	fs.StringVar(&cfg.Caller, "caller", "", "Account address the token identifies (0x...)")
	fs.DurationVar(&cfg.TTL, "ttl", 0, "Token lifetime; defaults to SOULBOUND_CALLER_TOKEN_TTL")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Caller == "" {
		return Config{}, errors.New("-caller is required")
	}
	return cfg, nil
}

// Run issues one token and writes it to out.
func Run(cfg Config, out io.Writer, now func() time.Time) error {
	if out == nil {
		return errors.New("output is required")
	}
	caller, err := ledger.ParseAddress(cfg.Caller)
	if err != nil {
		return fmt.Errorf("parse caller: %w", err)
	}
	issuer, err := auth.LoadIssuerConfigFromEnv(now)
	if err != nil {
		return err
	}
	if cfg.TTL > 0 {
		issuer.TTL = cfg.TTL
	}
	token, err := auth.Issue(issuer, caller)
	if err != nil {
		return fmt.Errorf("issue caller token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
