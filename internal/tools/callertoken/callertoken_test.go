package callertoken

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/services/registry/auth"
)

func TestParseConfigRequiresCaller(t *testing.T) {
	fs := flag.NewFlagSet("caller-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected missing caller error")
	}
}

func TestRunIssuesVerifiableToken(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	t.Setenv(auth.EnvCallerIssuer, "issuer")
	t.Setenv(auth.EnvCallerAudience, "registry")
	t.Setenv(auth.EnvCallerPrivateKey, base64.RawStdEncoding.EncodeToString(priv))

	fs := flag.NewFlagSet("caller-token", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-caller", "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4", "-ttl", "10m"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	var out bytes.Buffer
	if err := Run(cfg, &out, clock); err != nil {
		t.Fatalf("run: %v", err)
	}

	claims, err := auth.Verify(strings.TrimSpace(out.String()), auth.VerifierConfig{
		Issuer:   "issuer",
		Audience: "registry",
		Key:      pub,
		Now:      clock,
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Caller != common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4") {
		t.Fatalf("caller = %s", claims.Caller.Hex())
	}
	if !claims.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("expires at = %s", claims.ExpiresAt)
	}
}

func TestRunRejectsMalformedCaller(t *testing.T) {
	if err := Run(Config{Caller: "alice"}, &bytes.Buffer{}, nil); err == nil {
		t.Fatal("expected malformed caller error")
	}
}
