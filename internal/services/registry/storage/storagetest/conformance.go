// Package storagetest provides a reusable conformance suite for ledger stores.
// RunStoreConformance checks the transaction contract every storage.Store
// implementation must honor so the memory and SQLite stores stay
// interchangeable under the registry.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
)

// OpenFunc opens an empty store owned by the test.
type OpenFunc func(t *testing.T) storage.Store

var (
	alice = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	bob   = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
)

// RunStoreConformance runs the store contract suite against open.
func RunStoreConformance(t *testing.T, open OpenFunc) {
	t.Helper()

	t.Run("empty store", func(t *testing.T) { testEmptyStore(t, open(t)) })
	t.Run("token round trip", func(t *testing.T) { testTokenRoundTrip(t, open(t)) })
	t.Run("one live token per holder", func(t *testing.T) { testHolderConflict(t, open(t)) })
	t.Run("failed update rolls back", func(t *testing.T) { testFailedUpdateRollsBack(t, open(t)) })
	t.Run("failed nest rolls back only nested writes", func(t *testing.T) { testNestRollback(t, open(t)) })
	t.Run("successful nest is visible to parent", func(t *testing.T) { testNestCommit(t, open(t)) })
	t.Run("transfer log pages and filters", func(t *testing.T) { testTransferLog(t, open(t)) })
	t.Run("administrator property", func(t *testing.T) { testAdministrator(t, open(t)) })
}

func testEmptyStore(t *testing.T, store storage.Store) {
	ctx := context.Background()
	err := store.View(ctx, func(r storage.Reader) error {
		if _, err := r.GetToken(ctx, 0); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("GetToken error = %v, want ErrNotFound", err)
		}
		if _, err := r.GetHeldToken(ctx, alice); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("GetHeldToken error = %v, want ErrNotFound", err)
		}
		balance, err := r.GetBalance(ctx, alice)
		if err != nil || balance != 0 {
			t.Fatalf("GetBalance = (%d, %v), want (0, nil)", balance, err)
		}
		next, err := r.GetNextTokenID(ctx)
		if err != nil || next != 0 {
			t.Fatalf("GetNextTokenID = (%d, %v), want (0, nil)", next, err)
		}
		if _, found, err := r.GetAdministrator(ctx); err != nil || found {
			t.Fatalf("GetAdministrator found = %v, err = %v", found, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testTokenRoundTrip(t *testing.T, store storage.Store) {
	ctx := context.Background()
	mintedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	burnedAt := mintedAt.Add(time.Hour)

	mustUpdate(t, store, func(tx storage.Tx) error {
		if err := tx.PutToken(ctx, storage.Token{ID: 0, Owner: alice, URI: "ipfs://a", MintedAt: mintedAt}); err != nil {
			return err
		}
		if err := tx.PutBalance(ctx, alice, 1); err != nil {
			return err
		}
		return tx.PutNextTokenID(ctx, 1)
	})

	mustView(t, store, func(r storage.Reader) error {
		token, err := r.GetToken(ctx, 0)
		if err != nil {
			t.Fatalf("GetToken: %v", err)
		}
		if token.Owner != alice || token.URI != "ipfs://a" || !token.MintedAt.Equal(mintedAt) {
			t.Fatalf("token = %+v", token)
		}
		held, err := r.GetHeldToken(ctx, alice)
		if err != nil || held.ID != 0 {
			t.Fatalf("GetHeldToken = (%+v, %v)", held, err)
		}
		count, err := r.CountHeldTokens(ctx)
		if err != nil || count != 1 {
			t.Fatalf("CountHeldTokens = (%d, %v), want 1", count, err)
		}
		return nil
	})

	mustUpdate(t, store, func(tx storage.Tx) error {
		if err := tx.PutToken(ctx, storage.Token{ID: 0, MintedAt: mintedAt, BurnedAt: burnedAt}); err != nil {
			return err
		}
		return tx.PutBalance(ctx, alice, 0)
	})

	mustView(t, store, func(r storage.Reader) error {
		token, err := r.GetToken(ctx, 0)
		if err != nil {
			t.Fatalf("GetToken after burn: %v", err)
		}
		if token.Held() || !token.BurnedAt.Equal(burnedAt) || token.URI != "" {
			t.Fatalf("burned token = %+v", token)
		}
		if _, err := r.GetHeldToken(ctx, alice); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("GetHeldToken after burn error = %v, want ErrNotFound", err)
		}
		count, err := r.CountHeldTokens(ctx)
		if err != nil || count != 0 {
			t.Fatalf("CountHeldTokens after burn = (%d, %v), want 0", count, err)
		}
		return nil
	})
}

func testHolderConflict(t *testing.T, store storage.Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mustUpdate(t, store, func(tx storage.Tx) error {
		return tx.PutToken(ctx, storage.Token{ID: 0, Owner: alice, MintedAt: now})
	})
	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.PutToken(ctx, storage.Token{ID: 1, Owner: alice, MintedAt: now})
	})
	if !errors.Is(err, storage.ErrHolderConflict) {
		t.Fatalf("second token error = %v, want ErrHolderConflict", err)
	}
	mustUpdate(t, store, func(tx storage.Tx) error {
		return tx.PutToken(ctx, storage.Token{ID: 0, Owner: alice, MintedAt: now})
	})
}

func testFailedUpdateRollsBack(t *testing.T, store storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.PutNextTokenID(ctx, 7); err != nil {
			return err
		}
		if _, err := tx.AppendTransfer(ctx, storage.Transfer{TokenID: 0, To: alice, Kind: storage.TransferMint}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("update error = %v, want %v", err, boom)
	}

	mustView(t, store, func(r storage.Reader) error {
		next, err := r.GetNextTokenID(ctx)
		if err != nil || next != 0 {
			t.Fatalf("GetNextTokenID = (%d, %v), want 0", next, err)
		}
		page, err := r.ListTransfers(ctx, storage.TransferQuery{PageSize: 10})
		if err != nil || len(page.Transfers) != 0 {
			t.Fatalf("ListTransfers = (%d records, %v), want none", len(page.Transfers), err)
		}
		return nil
	})
}

func testNestRollback(t *testing.T, store storage.Store) {
	ctx := context.Background()
	boom := errors.New("nested failure")

	mustUpdate(t, store, func(tx storage.Tx) error {
		if err := tx.PutBalance(ctx, alice, 1); err != nil {
			return err
		}
		err := tx.Nest(ctx, func(nested storage.Tx) error {
			if err := nested.PutBalance(ctx, bob, 1); err != nil {
				return err
			}
			if err := nested.PutNextTokenID(ctx, 9); err != nil {
				return err
			}
			balance, err := nested.GetBalance(ctx, bob)
			if err != nil || balance != 1 {
				t.Fatalf("nested GetBalance = (%d, %v), want 1", balance, err)
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("nest error = %v, want %v", err, boom)
		}
		balance, err := tx.GetBalance(ctx, bob)
		if err != nil || balance != 0 {
			t.Fatalf("parent GetBalance after failed nest = (%d, %v), want 0", balance, err)
		}
		return nil
	})

	mustView(t, store, func(r storage.Reader) error {
		if balance, _ := r.GetBalance(ctx, alice); balance != 1 {
			t.Fatalf("alice balance = %d, want 1", balance)
		}
		if balance, _ := r.GetBalance(ctx, bob); balance != 0 {
			t.Fatalf("bob balance = %d, want 0", balance)
		}
		if next, _ := r.GetNextTokenID(ctx); next != 0 {
			t.Fatalf("next token id = %d, want 0", next)
		}
		return nil
	})
}

func testNestCommit(t *testing.T, store storage.Store) {
	ctx := context.Background()

	mustUpdate(t, store, func(tx storage.Tx) error {
		if err := tx.Nest(ctx, func(nested storage.Tx) error {
			return nested.Nest(ctx, func(inner storage.Tx) error {
				_, err := inner.AppendTransfer(ctx, storage.Transfer{TokenID: 0, To: alice, Kind: storage.TransferMint})
				return err
			})
		}); err != nil {
			return err
		}
		page, err := tx.ListTransfers(ctx, storage.TransferQuery{PageSize: 10})
		if err != nil || len(page.Transfers) != 1 {
			t.Fatalf("parent ListTransfers = (%d records, %v), want 1", len(page.Transfers), err)
		}
		return nil
	})
}

func testTransferLog(t *testing.T, store storage.Store) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []storage.Transfer{
		{TokenID: 0, To: alice, Kind: storage.TransferMint, At: base},
		{TokenID: 1, To: bob, Kind: storage.TransferMint, At: base.Add(time.Minute)},
		{TokenID: 0, From: alice, Kind: storage.TransferBurn, At: base.Add(2 * time.Minute)},
		{TokenID: 2, To: alice, Kind: storage.TransferMint, At: base.Add(3 * time.Minute)},
	}
	mustUpdate(t, store, func(tx storage.Tx) error {
		for i, record := range records {
			stored, err := tx.AppendTransfer(ctx, record)
			if err != nil {
				return err
			}
			if stored.Seq != uint64(i+1) {
				t.Fatalf("seq = %d, want %d", stored.Seq, i+1)
			}
		}
		return nil
	})

	mustView(t, store, func(r storage.Reader) error {
		first, err := r.ListTransfers(ctx, storage.TransferQuery{PageSize: 3})
		if err != nil {
			t.Fatalf("list first page: %v", err)
		}
		if len(first.Transfers) != 3 || first.NextPageToken == "" {
			t.Fatalf("first page = %d records, next %q", len(first.Transfers), first.NextPageToken)
		}
		second, err := r.ListTransfers(ctx, storage.TransferQuery{PageSize: 3, PageToken: first.NextPageToken})
		if err != nil {
			t.Fatalf("list second page: %v", err)
		}
		if len(second.Transfers) != 1 || second.NextPageToken != "" || second.Transfers[0].TokenID != 2 {
			t.Fatalf("second page = %+v", second)
		}
		if !second.Transfers[0].At.Equal(base.Add(3 * time.Minute)) {
			t.Fatalf("transfer at = %v", second.Transfers[0].At)
		}

		mints, err := r.ListTransfers(ctx, storage.TransferQuery{PageSize: 10, Filter: `kind = "mint" AND to = "` + alice.Hex() + `"`})
		if err != nil {
			t.Fatalf("list filtered: %v", err)
		}
		if len(mints.Transfers) != 2 || mints.Transfers[0].TokenID != 0 || mints.Transfers[1].TokenID != 2 {
			t.Fatalf("filtered transfers = %+v", mints.Transfers)
		}

		burns, err := r.ListTransfers(ctx, storage.TransferQuery{PageSize: 10, Filter: `from = "` + alice.Hex() + `"`})
		if err != nil {
			t.Fatalf("list burns: %v", err)
		}
		if len(burns.Transfers) != 1 || burns.Transfers[0].Kind != storage.TransferBurn {
			t.Fatalf("burn transfers = %+v", burns.Transfers)
		}

		late, err := r.ListTransfers(ctx, storage.TransferQuery{PageSize: 10, Filter: `ts >= timestamp("2026-01-01T00:02:00Z")`})
		if err != nil {
			t.Fatalf("list by time: %v", err)
		}
		if len(late.Transfers) != 2 {
			t.Fatalf("late transfers = %d, want 2", len(late.Transfers))
		}

		if _, err := r.ListTransfers(ctx, storage.TransferQuery{PageSize: 10, Filter: `owner = "x"`}); !errors.Is(err, storage.ErrInvalidFilter) {
			t.Fatalf("bad filter error = %v, want ErrInvalidFilter", err)
		}
		if _, err := r.ListTransfers(ctx, storage.TransferQuery{PageSize: 10, PageToken: "nope"}); !errors.Is(err, storage.ErrInvalidPageToken) {
			t.Fatalf("bad token error = %v, want ErrInvalidPageToken", err)
		}
		return nil
	})
}

func testAdministrator(t *testing.T, store storage.Store) {
	ctx := context.Background()
	property := storage.AdministratorProperty{Store: store}

	if err := property.SaveOwner(ctx, alice); err != nil {
		t.Fatalf("save owner: %v", err)
	}
	owner, found, err := property.LoadOwner(ctx)
	if err != nil || !found || owner != alice {
		t.Fatalf("LoadOwner = (%s, %v, %v), want alice", owner.Hex(), found, err)
	}

	if err := property.SaveOwner(ctx, common.Address{}); err != nil {
		t.Fatalf("save zero owner: %v", err)
	}
	owner, found, err = property.LoadOwner(ctx)
	if err != nil || !found || owner != (common.Address{}) {
		t.Fatalf("LoadOwner after renounce = (%s, %v, %v), want zero and found", owner.Hex(), found, err)
	}
}

func mustUpdate(t *testing.T, store storage.Store, fn func(storage.Tx) error) {
	t.Helper()
	if err := store.Update(context.Background(), fn); err != nil {
		t.Fatalf("update: %v", err)
	}
}

func mustView(t *testing.T, store storage.Store, fn func(storage.Reader) error) {
	t.Helper()
	if err := store.View(context.Background(), fn); err != nil {
		t.Fatalf("view: %v", err)
	}
}
