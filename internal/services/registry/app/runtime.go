// Package app wires the registry runtime and its HTTP lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/platform/config"
	"github.com/louisbranch/soulbound/internal/services/registry/access"
	"github.com/louisbranch/soulbound/internal/services/registry/auth"
	"github.com/louisbranch/soulbound/internal/services/registry/ledger"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
	"github.com/louisbranch/soulbound/internal/services/registry/storage/memory"
	registrysqlite "github.com/louisbranch/soulbound/internal/services/registry/storage/sqlite"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// RuntimeConfig describes the collection and its backing store.
type RuntimeConfig struct {
	Storage           string `env:"SOULBOUND_REGISTRY_STORAGE"      envDefault:"sqlite"`
	DBPath            string `env:"SOULBOUND_REGISTRY_DB_PATH"`
	CollectionName    string `env:"SOULBOUND_COLLECTION_NAME"`
	CollectionSymbol  string `env:"SOULBOUND_COLLECTION_SYMBOL"`
	CollectionVariant string `env:"SOULBOUND_COLLECTION_VARIANT"    envDefault:"shared_uri"`
	TokenURI          string `env:"SOULBOUND_COLLECTION_TOKEN_URI"`
	Address           string `env:"SOULBOUND_COLLECTION_ADDRESS"`
	Administrator     string `env:"SOULBOUND_ADMINISTRATOR"`
	ContractAddresses string `env:"SOULBOUND_CONTRACT_ADDRESSES"`
	CallerIssuer      string `env:"SOULBOUND_CALLER_ISSUER"`
	CallerAudience    string `env:"SOULBOUND_CALLER_AUDIENCE"`
	CallerPublicKey   string `env:"SOULBOUND_CALLER_PUBLIC_KEY"`
}

// LoadRuntimeConfigFromEnv reads the runtime configuration.
func LoadRuntimeConfigFromEnv() (RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return RuntimeConfig{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "registry.db")
	}
	return cfg, nil
}

// Runtime holds the wired registry and its resources.
type Runtime struct {
	Registry  *ledger.Registry
	Guard     *access.Ownable
	Receivers *ledger.Directory
	// Verifier is nil when no caller public key is configured.
	Verifier *auth.Verifier
	store    storage.Store
}

// Open builds a Runtime from cfg.
func Open(ctx context.Context, cfg RuntimeConfig) (*Runtime, error) {
	policy, err := metadataPolicy(cfg)
	if err != nil {
		return nil, err
	}
	var registryAddress common.Address
	if strings.TrimSpace(cfg.Address) != "" {
		if registryAddress, err = ledger.ParseAddress(cfg.Address); err != nil {
			return nil, fmt.Errorf("parse collection address: %w", err)
		}
	}
	var administrator common.Address
	if strings.TrimSpace(cfg.Administrator) != "" {
		if administrator, err = ledger.ParseAddress(cfg.Administrator); err != nil {
			return nil, fmt.Errorf("parse administrator: %w", err)
		}
	}
	contracts, err := ledger.ParseAddressList(cfg.ContractAddresses)
	if err != nil {
		return nil, fmt.Errorf("parse contract addresses: %w", err)
	}
	verifier, err := callerVerifier(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sink := ledger.LogSink{}
	guard, err := access.NewOwnable(ctx, storage.AdministratorProperty{Store: store}, administrator, sink)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load administrator: %w", err)
	}
	receivers := ledger.NewDirectory()
	for _, contract := range contracts {
		receivers.RegisterContract(contract)
	}
	registry, err := ledger.New(ledger.Config{
		Name:      cfg.CollectionName,
		Symbol:    cfg.CollectionSymbol,
		Address:   registryAddress,
		Metadata:  policy,
		Guard:     guard,
		Receivers: receivers,
		Store:     store,
		Events:    sink,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Runtime{
		Registry:  registry,
		Guard:     guard,
		Receivers: receivers,
		Verifier:  verifier,
		store:     store,
	}, nil
}

// Close releases the store.
func (r *Runtime) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

func metadataPolicy(cfg RuntimeConfig) (ledger.MetadataPolicy, error) {
	variant, ok := ledger.ParseVariant(cfg.CollectionVariant)
	if !ok {
		return nil, fmt.Errorf("unsupported collection variant %q", cfg.CollectionVariant)
	}
	uri := strings.TrimSpace(cfg.TokenURI)
	switch variant {
	case ledger.VariantSharedURI:
		if uri == "" {
			return nil, errors.New("SOULBOUND_COLLECTION_TOKEN_URI is required for shared_uri collections")
		}
		return ledger.SharedURI(uri), nil
	default:
		if uri != "" {
			return nil, errors.New("SOULBOUND_COLLECTION_TOKEN_URI only applies to shared_uri collections")
		}
		return ledger.PerTokenURI(), nil
	}
}

func callerVerifier(cfg RuntimeConfig) (*auth.Verifier, error) {
	if strings.TrimSpace(cfg.CallerPublicKey) == "" {
		return nil, nil
	}
	key, err := auth.DecodePublicKey(cfg.CallerPublicKey)
	if err != nil {
		return nil, err
	}
	issuer := strings.TrimSpace(cfg.CallerIssuer)
	audience := strings.TrimSpace(cfg.CallerAudience)
	if issuer == "" || audience == "" {
		return nil, fmt.Errorf("%s and %s are required with a caller public key", auth.EnvCallerIssuer, auth.EnvCallerAudience)
	}
	return auth.NewVerifier(auth.VerifierConfig{Issuer: issuer, Audience: audience, Key: key, Now: time.Now}), nil
}

func openStore(ctx context.Context, cfg RuntimeConfig) (storage.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case StorageMemory:
		log.Printf("using in-memory storage; state is lost on exit")
		return memory.Open(), nil
	case StorageSQLite, "":
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			path = filepath.Join("data", "registry.db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := registrysqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open registry sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage %q", cfg.Storage)
	}
}
