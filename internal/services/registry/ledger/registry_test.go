package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
	"github.com/louisbranch/soulbound/internal/services/registry/access"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
	"github.com/louisbranch/soulbound/internal/services/registry/storage/memory"
	"github.com/louisbranch/soulbound/internal/services/registry/storage/sqlite"
)

var (
	admin = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	alice = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
	bob   = common.HexToAddress("0x4B20993Bc481177ec7E8f571ceCaE8A9e22C02db")
	carol = common.HexToAddress("0x78731D3Ca6b7E34aC0F824c42a7cC18A495cabaB")
)

const sharedTokenURI = "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"

type recordingSink struct {
	mu        sync.Mutex
	transfers []storage.Transfer
}

func (s *recordingSink) Transferred(_ context.Context, transfer storage.Transfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, transfer)
}

func (s *recordingSink) recorded() []storage.Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.Transfer(nil), s.transfers...)
}

type fixture struct {
	registry  *Registry
	store     storage.Store
	guard     *access.Ownable
	receivers *Directory
	sink      *recordingSink
}

type storeOpener func(t *testing.T) storage.Store

func openMemory(t *testing.T) storage.Store {
	return memory.Open()
}

func openSQLite(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// forEachStore runs fn once per storage backend.
func forEachStore(t *testing.T, fn func(t *testing.T, open storeOpener)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) { fn(t, openMemory) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite) })
}

func newFixture(t *testing.T, open storeOpener, policy MetadataPolicy) *fixture {
	t.Helper()
	ctx := context.Background()
	store := open(t)
	guard, err := access.NewOwnable(ctx, storage.AdministratorProperty{Store: store}, admin, nil)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}
	receivers := NewDirectory()
	sink := &recordingSink{}
	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	registry, err := New(Config{
		Name:      "Soulbound",
		Symbol:    "SBT",
		Metadata:  policy,
		Guard:     guard,
		Receivers: receivers,
		Store:     store,
		Events:    sink,
		Clock: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return &fixture{registry: registry, store: store, guard: guard, receivers: receivers, sink: sink}
}

func (f *fixture) mustMint(t *testing.T, to common.Address, uri string) uint64 {
	t.Helper()
	id, err := f.registry.Mint(context.Background(), admin, to, uri)
	if err != nil {
		t.Fatalf("mint to %s: %v", to.Hex(), err)
	}
	return id
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if got := apperrors.CodeOf(err); got != want {
		t.Fatalf("error code = %s (%v), want %s", got, err, want)
	}
}

func assertBalance(t *testing.T, r *Registry, holder common.Address, want uint64) {
	t.Helper()
	got, err := r.BalanceOf(context.Background(), holder)
	if err != nil {
		t.Fatalf("balance of %s: %v", holder.Hex(), err)
	}
	if got != want {
		t.Fatalf("balance of %s = %d, want %d", holder.Hex(), got, want)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	store := memory.Open()
	guard, err := access.NewOwnable(context.Background(), storage.AdministratorProperty{Store: store}, admin, nil)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}
	valid := Config{Name: "Soulbound", Symbol: "SBT", Metadata: PerTokenURI(), Guard: guard, Store: store}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing name", mutate: func(c *Config) { c.Name = " " }},
		{name: "missing symbol", mutate: func(c *Config) { c.Symbol = "" }},
		{name: "missing metadata", mutate: func(c *Config) { c.Metadata = nil }},
		{name: "missing guard", mutate: func(c *Config) { c.Guard = nil }},
		{name: "missing store", mutate: func(c *Config) { c.Store = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}

	registry, err := New(valid)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if registry.Address() != DefaultAddress("Soulbound", "SBT") {
		t.Fatalf("address = %s, want derived default", registry.Address().Hex())
	}
}

func TestMintAssignsSequentialIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, SharedURI(sharedTokenURI))
		ctx := context.Background()

		for want, holder := range []common.Address{alice, bob, carol} {
			id := f.mustMint(t, holder, "")
			if id != uint64(want) {
				t.Fatalf("mint %d id = %d", want, id)
			}
			owner, err := f.registry.OwnerOf(ctx, id)
			if err != nil {
				t.Fatalf("owner of %d: %v", id, err)
			}
			if owner != holder {
				t.Fatalf("owner of %d = %s, want %s", id, owner.Hex(), holder.Hex())
			}
			assertBalance(t, f.registry, holder, 1)
		}

		info, err := f.registry.Collection(ctx)
		if err != nil {
			t.Fatalf("collection: %v", err)
		}
		if info.Minted != 3 || info.Supply != 3 || info.Administrator != admin || info.Variant != VariantSharedURI {
			t.Fatalf("collection = %+v", info)
		}

		transfers := f.sink.recorded()
		if len(transfers) != 3 {
			t.Fatalf("events = %d, want 3", len(transfers))
		}
		first := transfers[0]
		if first.From != (common.Address{}) || first.To != alice || first.TokenID != 0 || first.Kind != storage.TransferMint {
			t.Fatalf("first event = %+v", first)
		}
	})
}

func TestMintByNonAdministratorDoesNotAdvanceCounter(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, SharedURI(sharedTokenURI))

		_, err := f.registry.Mint(context.Background(), alice, alice, "")
		assertCode(t, err, apperrors.CodeNotAuthorized)
		assertBalance(t, f.registry, alice, 0)

		if id := f.mustMint(t, alice, ""); id != 0 {
			t.Fatalf("first authorized mint id = %d, want 0", id)
		}
		if len(f.sink.recorded()) != 1 {
			t.Fatalf("events = %d, want 1", len(f.sink.recorded()))
		}
	})
}

func TestMintRejectsInvalidRecipients(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, SharedURI(sharedTokenURI))
		ctx := context.Background()

		_, err := f.registry.Mint(ctx, admin, common.Address{}, "")
		assertCode(t, err, apperrors.CodeInvalidRecipient)

		f.mustMint(t, alice, "")
		_, err = f.registry.Mint(ctx, admin, alice, "")
		assertCode(t, err, apperrors.CodeAlreadyMinted)
		assertBalance(t, f.registry, alice, 1)

		if id := f.mustMint(t, bob, ""); id != 1 {
			t.Fatalf("id after rejected mint = %d, want 1", id)
		}
	})
}

func TestUnequip(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, SharedURI(sharedTokenURI))
		ctx := context.Background()
		id := f.mustMint(t, alice, "")

		assertCode(t, f.registry.Unequip(ctx, bob, id), apperrors.CodeNotHolder)
		assertCode(t, f.registry.Unequip(ctx, admin, id), apperrors.CodeNotHolder)
		assertCode(t, f.registry.Unequip(ctx, alice, 99), apperrors.CodeNonexistentToken)

		if err := f.registry.Unequip(ctx, alice, id); err != nil {
			t.Fatalf("unequip: %v", err)
		}
		assertBalance(t, f.registry, alice, 0)

		_, err := f.registry.OwnerOf(ctx, id)
		assertCode(t, err, apperrors.CodeNonexistentToken)
		exists, err := f.registry.Exists(ctx, id)
		if err != nil || exists {
			t.Fatalf("exists after burn = (%v, %v)", exists, err)
		}
		assertCode(t, f.registry.Unequip(ctx, alice, id), apperrors.CodeNonexistentToken)

		transfers := f.sink.recorded()
		burn := transfers[len(transfers)-1]
		if burn.Kind != storage.TransferBurn || burn.From != alice || burn.To != (common.Address{}) || burn.TokenID != id {
			t.Fatalf("burn event = %+v", burn)
		}

		again := f.mustMint(t, alice, "")
		if again == id {
			t.Fatalf("burned id %d was reassigned", id)
		}
		_, err = f.registry.OwnerOf(ctx, id)
		assertCode(t, err, apperrors.CodeNonexistentToken)

		info, err := f.registry.Collection(ctx)
		if err != nil {
			t.Fatalf("collection: %v", err)
		}
		if info.Minted != 2 || info.Supply != 1 {
			t.Fatalf("collection counters = minted %d supply %d", info.Minted, info.Supply)
		}
	})
}

func TestReadsRejectZeroAddress(t *testing.T) {
	f := newFixture(t, openMemory, SharedURI(sharedTokenURI))
	ctx := context.Background()

	_, err := f.registry.BalanceOf(ctx, common.Address{})
	assertCode(t, err, apperrors.CodeInvalidAddress)
	_, err = f.registry.HeldToken(ctx, common.Address{})
	assertCode(t, err, apperrors.CodeInvalidAddress)
}

func TestHeldToken(t *testing.T) {
	f := newFixture(t, openMemory, PerTokenURI())
	ctx := context.Background()

	_, err := f.registry.HeldToken(ctx, alice)
	assertCode(t, err, apperrors.CodeNonexistentToken)

	id := f.mustMint(t, alice, "ipfs://alice")
	token, err := f.registry.HeldToken(ctx, alice)
	if err != nil {
		t.Fatalf("held token: %v", err)
	}
	if token.ID != id || token.URI != "ipfs://alice" || token.MintedAt.IsZero() {
		t.Fatalf("held token = %+v", token)
	}
}

func TestListTransfers(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, SharedURI(sharedTokenURI))
		ctx := context.Background()
		f.mustMint(t, alice, "")
		id := f.mustMint(t, bob, "")
		if err := f.registry.Unequip(ctx, bob, id); err != nil {
			t.Fatalf("unequip: %v", err)
		}

		page, err := f.registry.ListTransfers(ctx, storage.TransferQuery{Filter: `from = "` + bob.Hex() + `"`})
		if err != nil {
			t.Fatalf("list transfers: %v", err)
		}
		if len(page.Transfers) != 1 || page.Transfers[0].Kind != storage.TransferBurn {
			t.Fatalf("transfers = %+v", page.Transfers)
		}

		page, err = f.registry.ListTransfers(ctx, storage.TransferQuery{PageSize: 2})
		if err != nil {
			t.Fatalf("list first page: %v", err)
		}
		if len(page.Transfers) != 2 || page.NextPageToken == "" {
			t.Fatalf("first page = %+v", page)
		}

		_, err = f.registry.ListTransfers(ctx, storage.TransferQuery{Filter: `holder = "x"`})
		assertCode(t, err, apperrors.CodeInvalidFilter)
		_, err = f.registry.ListTransfers(ctx, storage.TransferQuery{PageToken: "x"})
		assertCode(t, err, apperrors.CodeInvalidPageToken)
	})
}

func TestRenouncedRegistryCannotMint(t *testing.T) {
	f := newFixture(t, openMemory, SharedURI(sharedTokenURI))
	ctx := context.Background()

	if err := f.guard.RenounceOwnership(ctx, admin); err != nil {
		t.Fatalf("renounce: %v", err)
	}
	_, err := f.registry.Mint(ctx, admin, alice, "")
	assertCode(t, err, apperrors.CodeNotAuthorized)

	info, err := f.registry.Collection(ctx)
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if info.Administrator != (common.Address{}) {
		t.Fatalf("administrator = %s, want zero", info.Administrator.Hex())
	}
}

func TestTransferredOwnershipMovesMintRight(t *testing.T) {
	f := newFixture(t, openMemory, SharedURI(sharedTokenURI))
	ctx := context.Background()

	if err := f.guard.TransferOwnership(ctx, admin, carol); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	_, err := f.registry.Mint(ctx, admin, alice, "")
	assertCode(t, err, apperrors.CodeNotAuthorized)
	if _, err := f.registry.Mint(ctx, carol, alice, ""); err != nil {
		t.Fatalf("mint by new administrator: %v", err)
	}
}
