package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
)

func TestTransfersAreAlwaysRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, SharedURI(sharedTokenURI))
		ctx := context.Background()
		id := f.mustMint(t, alice, "")

		accounts := []common.Address{{}, admin, alice, bob}
		for _, caller := range accounts {
			for _, from := range accounts {
				for _, to := range accounts {
					err := f.registry.TransferFrom(ctx, caller, from, to, id)
					assertCode(t, err, apperrors.CodeNotTransferable)
					err = f.registry.SafeTransferFrom(ctx, caller, from, to, id, []byte("hello"))
					assertCode(t, err, apperrors.CodeNotTransferable)
				}
			}
		}

		owner, err := f.registry.OwnerOf(ctx, id)
		if err != nil || owner != alice {
			t.Fatalf("owner after rejected transfers = (%s, %v), want alice", owner.Hex(), err)
		}
		assertBalance(t, f.registry, alice, 1)
		assertBalance(t, f.registry, bob, 0)
		if events := f.sink.recorded(); len(events) != 1 {
			t.Fatalf("events = %d, want only the mint", len(events))
		}
	})
}

func TestTransferOfUnheldTokenReportsNonexistent(t *testing.T) {
	f := newFixture(t, openMemory, SharedURI(sharedTokenURI))
	ctx := context.Background()

	assertCode(t, f.registry.TransferFrom(ctx, alice, alice, bob, 0), apperrors.CodeNonexistentToken)

	id := f.mustMint(t, alice, "")
	if err := f.registry.Unequip(ctx, alice, id); err != nil {
		t.Fatalf("unequip: %v", err)
	}
	assertCode(t, f.registry.SafeTransferFrom(ctx, alice, alice, bob, id, nil), apperrors.CodeNonexistentToken)
}
