package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
)

func acceptAll() Receiver {
	return ReceiverFunc(func(context.Context, *Session, common.Address, common.Address, uint64, []byte) (Selector, error) {
		return ReceivedSelector, nil
	})
}

func TestMintToContractRecipient(t *testing.T) {
	vault := common.HexToAddress("0x617F2E2fD72FD9D5503197092aC168c91465E7f2")

	tests := []struct {
		name     string
		register func(d *Directory)
		wantCode apperrors.Code
	}{
		{
			name:     "contract without receiver",
			register: func(d *Directory) { d.RegisterContract(vault) },
			wantCode: apperrors.CodeUnsafeRecipient,
		},
		{
			name: "wrong selector",
			register: func(d *Directory) {
				d.Register(vault, ReceiverFunc(func(context.Context, *Session, common.Address, common.Address, uint64, []byte) (Selector, error) {
					return Selector{0xde, 0xad, 0xbe, 0xef}, nil
				}))
			},
			wantCode: apperrors.CodeUnsafeRecipient,
		},
		{
			name: "receiver error",
			register: func(d *Directory) {
				d.Register(vault, ReceiverFunc(func(context.Context, *Session, common.Address, common.Address, uint64, []byte) (Selector, error) {
					return Selector{}, errors.New("vault is closed")
				}))
			},
			wantCode: apperrors.CodeUnsafeRecipient,
		},
		{
			name:     "accepting receiver",
			register: func(d *Directory) { d.Register(vault, acceptAll()) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachStore(t, func(t *testing.T, open storeOpener) {
				f := newFixture(t, open, SharedURI(sharedTokenURI))
				tt.register(f.receivers)

				_, err := f.registry.Mint(context.Background(), admin, vault, "")
				if tt.wantCode == "" {
					if err != nil {
						t.Fatalf("mint: %v", err)
					}
					assertBalance(t, f.registry, vault, 1)
					return
				}
				assertCode(t, err, tt.wantCode)
				assertBalance(t, f.registry, vault, 0)
				if len(f.sink.recorded()) != 0 {
					t.Fatalf("events after failed mint = %d, want 0", len(f.sink.recorded()))
				}
				if id := f.mustMint(t, alice, ""); id != 0 {
					t.Fatalf("id after rolled back mint = %d, want 0", id)
				}
			})
		})
	}
}

func TestReceiverSeesMintArguments(t *testing.T) {
	vault := common.HexToAddress("0x617F2E2fD72FD9D5503197092aC168c91465E7f2")
	f := newFixture(t, openMemory, SharedURI(sharedTokenURI))

	var (
		gotOperator, gotFrom common.Address
		gotID                uint64
		gotBalance           uint64
	)
	f.receivers.Register(vault, ReceiverFunc(func(ctx context.Context, session *Session, operator, from common.Address, id uint64, _ []byte) (Selector, error) {
		gotOperator, gotFrom, gotID = operator, from, id
		var err error
		gotBalance, err = session.BalanceOf(ctx, vault)
		return ReceivedSelector, err
	}))

	id := f.mustMint(t, vault, "")
	if gotOperator != admin || gotFrom != (common.Address{}) || gotID != id {
		t.Fatalf("receiver saw operator %s from %s id %d", gotOperator.Hex(), gotFrom.Hex(), gotID)
	}
	if gotBalance != 1 {
		t.Fatalf("balance seen by receiver = %d, want 1", gotBalance)
	}
}

func TestMintToRegistryAddressFails(t *testing.T) {
	f := newFixture(t, openMemory, SharedURI(sharedTokenURI))

	_, err := f.registry.Mint(context.Background(), admin, f.registry.Address(), "")
	assertCode(t, err, apperrors.CodeUnsafeRecipient)
}

func TestReentrantMintToSameHolderIsRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, SharedURI(sharedTokenURI))
		ctx := context.Background()

		// The administrator is a contract that re-mints to itself from its hook.
		var nestedErr error
		f.receivers.Register(admin, ReceiverFunc(func(ctx context.Context, session *Session, _, _ common.Address, _ uint64, _ []byte) (Selector, error) {
			if session.Caller() != admin {
				t.Fatalf("session caller = %s, want administrator", session.Caller().Hex())
			}
			_, nestedErr = session.Mint(ctx, admin, "")
			return Selector{}, nestedErr
		}))

		_, err := f.registry.Mint(ctx, admin, admin, "")
		assertCode(t, err, apperrors.CodeAlreadyMinted)
		assertCode(t, nestedErr, apperrors.CodeAlreadyMinted)
		assertBalance(t, f.registry, admin, 0)

		info, err := f.registry.Collection(ctx)
		if err != nil {
			t.Fatalf("collection: %v", err)
		}
		if info.Minted != 0 {
			t.Fatalf("minted = %d, want 0 after rollback", info.Minted)
		}
	})
}

func TestReentrantFailureSwallowedByReceiverLeavesNoPartialState(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, SharedURI(sharedTokenURI))
		ctx := context.Background()

		f.receivers.Register(admin, ReceiverFunc(func(ctx context.Context, session *Session, _, _ common.Address, _ uint64, _ []byte) (Selector, error) {
			if _, err := session.Mint(ctx, admin, ""); !apperrors.HasCode(err, apperrors.CodeAlreadyMinted) {
				t.Fatalf("nested mint err = %v, want ALREADY_MINTED", err)
			}
			return ReceivedSelector, nil
		}))

		id := f.mustMint(t, admin, "")
		if id != 0 {
			t.Fatalf("id = %d, want 0", id)
		}
		assertBalance(t, f.registry, admin, 1)

		info, err := f.registry.Collection(ctx)
		if err != nil {
			t.Fatalf("collection: %v", err)
		}
		if info.Minted != 1 || info.Supply != 1 {
			t.Fatalf("collection counters = minted %d supply %d, want 1/1", info.Minted, info.Supply)
		}
		if events := f.sink.recorded(); len(events) != 1 {
			t.Fatalf("events = %d, want 1", len(events))
		}
	})
}

func TestReentrantMintToOtherHolderCommitsTogether(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, PerTokenURI())
		ctx := context.Background()

		f.receivers.Register(admin, ReceiverFunc(func(ctx context.Context, session *Session, _, _ common.Address, _ uint64, _ []byte) (Selector, error) {
			if _, err := session.Mint(ctx, bob, "ipfs://bob"); err != nil {
				return Selector{}, err
			}
			return ReceivedSelector, nil
		}))

		id := f.mustMint(t, admin, "ipfs://admin")
		if id != 0 {
			t.Fatalf("outer id = %d, want 0", id)
		}
		owner, err := f.registry.OwnerOf(ctx, 1)
		if err != nil || owner != bob {
			t.Fatalf("owner of 1 = (%s, %v), want bob", owner.Hex(), err)
		}

		events := f.sink.recorded()
		if len(events) != 2 || events[0].To != admin || events[1].To != bob {
			t.Fatalf("events = %+v", events)
		}
		if events[0].Seq >= events[1].Seq {
			t.Fatalf("events out of log order: %d then %d", events[0].Seq, events[1].Seq)
		}
	})
}

func TestRejectedOuterMintRollsBackNestedMint(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		f := newFixture(t, open, SharedURI(sharedTokenURI))
		ctx := context.Background()

		f.receivers.Register(admin, ReceiverFunc(func(ctx context.Context, session *Session, _, _ common.Address, _ uint64, _ []byte) (Selector, error) {
			if _, err := session.Mint(ctx, bob, ""); err != nil {
				t.Fatalf("nested mint: %v", err)
			}
			return Selector{}, errors.New("changed my mind")
		}))

		_, err := f.registry.Mint(ctx, admin, admin, "")
		assertCode(t, err, apperrors.CodeUnsafeRecipient)
		assertBalance(t, f.registry, bob, 0)
		assertBalance(t, f.registry, admin, 0)
		if events := f.sink.recorded(); len(events) != 0 {
			t.Fatalf("events = %d, want 0", len(events))
		}
	})
}

func TestSessionIsBoundToReceiver(t *testing.T) {
	vault := common.HexToAddress("0x617F2E2fD72FD9D5503197092aC168c91465E7f2")
	f := newFixture(t, openMemory, SharedURI(sharedTokenURI))
	ctx := context.Background()

	var kept *Session
	f.receivers.Register(vault, ReceiverFunc(func(ctx context.Context, session *Session, _, _ common.Address, _ uint64, _ []byte) (Selector, error) {
		kept = session
		// The vault is not the administrator, so it cannot mint.
		if _, err := session.Mint(ctx, carol, ""); !apperrors.HasCode(err, apperrors.CodeNotAuthorized) {
			t.Fatalf("session mint err = %v, want NOT_AUTHORIZED", err)
		}
		return ReceivedSelector, nil
	}))

	f.mustMint(t, vault, "")
	if _, err := kept.BalanceOf(ctx, vault); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("late session call err = %v, want ErrSessionClosed", err)
	}
	if _, err := kept.Mint(ctx, carol, ""); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("late session mint err = %v, want ErrSessionClosed", err)
	}
}

func TestSessionCanUnequipReceivedToken(t *testing.T) {
	forEachStore(t, func(t *testing.T, open storeOpener) {
		vault := common.HexToAddress("0x617F2E2fD72FD9D5503197092aC168c91465E7f2")
		f := newFixture(t, open, SharedURI(sharedTokenURI))
		ctx := context.Background()

		f.receivers.Register(vault, ReceiverFunc(func(ctx context.Context, session *Session, _, _ common.Address, id uint64, _ []byte) (Selector, error) {
			if err := session.TransferFrom(ctx, vault, alice, id); !apperrors.HasCode(err, apperrors.CodeNotTransferable) {
				t.Fatalf("session transfer err = %v, want NOT_TRANSFERABLE", err)
			}
			return ReceivedSelector, session.Unequip(ctx, id)
		}))

		id := f.mustMint(t, vault, "")
		assertBalance(t, f.registry, vault, 0)
		_, err := f.registry.OwnerOf(ctx, id)
		assertCode(t, err, apperrors.CodeNonexistentToken)

		events := f.sink.recorded()
		if len(events) != 2 || events[0].Kind != storage.TransferMint || events[1].Kind != storage.TransferBurn {
			t.Fatalf("events = %+v", events)
		}
	})
}
