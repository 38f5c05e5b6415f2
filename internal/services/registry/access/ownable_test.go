package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
)

var (
	deployer = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	stranger = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
)

type fakeOwnerStore struct {
	owner   common.Address
	found   bool
	saveErr error
	saves   int
}

func (s *fakeOwnerStore) LoadOwner(context.Context) (common.Address, bool, error) {
	return s.owner, s.found, nil
}

func (s *fakeOwnerStore) SaveOwner(_ context.Context, owner common.Address) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.owner = owner
	s.found = true
	s.saves++
	return nil
}

type transferCall struct {
	previous common.Address
	next     common.Address
}

type recordingObserver struct {
	calls []transferCall
}

func (o *recordingObserver) OwnershipTransferred(_ context.Context, previous, next common.Address) {
	o.calls = append(o.calls, transferCall{previous: previous, next: next})
}

func TestNewOwnableInstallsInitialAdministrator(t *testing.T) {
	store := &fakeOwnerStore{}
	observer := &recordingObserver{}

	ownable, err := NewOwnable(context.Background(), store, deployer, observer)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}
	if ownable.Owner() != deployer {
		t.Fatalf("owner = %s, want %s", ownable.Owner().Hex(), deployer.Hex())
	}
	if store.saves != 1 || store.owner != deployer {
		t.Fatalf("store = %+v, want deployer saved once", store)
	}
	if len(observer.calls) != 1 || observer.calls[0].previous != (common.Address{}) || observer.calls[0].next != deployer {
		t.Fatalf("observer calls = %+v", observer.calls)
	}
}

func TestNewOwnablePrefersPersistedAdministrator(t *testing.T) {
	store := &fakeOwnerStore{owner: stranger, found: true}

	ownable, err := NewOwnable(context.Background(), store, deployer, nil)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}
	if ownable.Owner() != stranger {
		t.Fatalf("owner = %s, want persisted %s", ownable.Owner().Hex(), stranger.Hex())
	}
	if store.saves != 0 {
		t.Fatalf("saves = %d, want 0", store.saves)
	}
}

func TestNewOwnableRejectsZeroInitialAdministrator(t *testing.T) {
	_, err := NewOwnable(context.Background(), &fakeOwnerStore{}, common.Address{}, nil)
	if !apperrors.HasCode(err, apperrors.CodeInvalidAddress) {
		t.Fatalf("err = %v, want INVALID_ADDRESS", err)
	}
}

func TestAuthorize(t *testing.T) {
	ownable, err := NewOwnable(context.Background(), &fakeOwnerStore{}, deployer, nil)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}
	if err := ownable.Authorize(context.Background(), deployer); err != nil {
		t.Fatalf("authorize owner: %v", err)
	}
	err = ownable.Authorize(context.Background(), stranger)
	if !apperrors.HasCode(err, apperrors.CodeNotAuthorized) {
		t.Fatalf("err = %v, want NOT_AUTHORIZED", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	ctx := context.Background()
	store := &fakeOwnerStore{}
	observer := &recordingObserver{}
	ownable, err := NewOwnable(ctx, store, deployer, observer)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}

	if err := ownable.TransferOwnership(ctx, stranger, stranger); !apperrors.HasCode(err, apperrors.CodeNotAuthorized) {
		t.Fatalf("non-owner transfer err = %v, want NOT_AUTHORIZED", err)
	}
	if err := ownable.TransferOwnership(ctx, deployer, common.Address{}); !apperrors.HasCode(err, apperrors.CodeInvalidAddress) {
		t.Fatalf("zero transfer err = %v, want INVALID_ADDRESS", err)
	}
	if err := ownable.TransferOwnership(ctx, deployer, stranger); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if ownable.Owner() != stranger || store.owner != stranger {
		t.Fatalf("owner = %s, stored = %s", ownable.Owner().Hex(), store.owner.Hex())
	}
	if err := ownable.Authorize(ctx, deployer); !apperrors.HasCode(err, apperrors.CodeNotAuthorized) {
		t.Fatalf("previous owner err = %v, want NOT_AUTHORIZED", err)
	}
	last := observer.calls[len(observer.calls)-1]
	if last.previous != deployer || last.next != stranger {
		t.Fatalf("last observer call = %+v", last)
	}
}

func TestTransferOwnershipKeepsOwnerWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	store := &fakeOwnerStore{}
	ownable, err := NewOwnable(ctx, store, deployer, nil)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}
	store.saveErr = errors.New("disk full")

	if err := ownable.TransferOwnership(ctx, deployer, stranger); err == nil {
		t.Fatal("expected save error")
	}
	if ownable.Owner() != deployer {
		t.Fatalf("owner = %s, want unchanged %s", ownable.Owner().Hex(), deployer.Hex())
	}
}

func TestRenounceOwnershipDisablesAuthorization(t *testing.T) {
	ctx := context.Background()
	store := &fakeOwnerStore{}
	ownable, err := NewOwnable(ctx, store, deployer, nil)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}
	if err := ownable.RenounceOwnership(ctx, deployer); err != nil {
		t.Fatalf("renounce: %v", err)
	}
	if ownable.Owner() != (common.Address{}) {
		t.Fatalf("owner = %s, want zero", ownable.Owner().Hex())
	}
	for _, caller := range []common.Address{deployer, {}} {
		if err := ownable.Authorize(ctx, caller); !apperrors.HasCode(err, apperrors.CodeNotAuthorized) {
			t.Fatalf("authorize %s err = %v, want NOT_AUTHORIZED", caller.Hex(), err)
		}
	}

	reloaded, err := NewOwnable(ctx, store, deployer, nil)
	if err != nil {
		t.Fatalf("reload ownable: %v", err)
	}
	if reloaded.Owner() != (common.Address{}) {
		t.Fatalf("reloaded owner = %s, want zero", reloaded.Owner().Hex())
	}
}

// lockingOwnerStore takes the same lock a store transaction holds, so saving
// waits for any transaction in flight.
type lockingOwnerStore struct {
	txMu  sync.Mutex
	owner common.Address
}

func (s *lockingOwnerStore) LoadOwner(context.Context) (common.Address, bool, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.owner, s.owner != (common.Address{}), nil
}

func (s *lockingOwnerStore) SaveOwner(_ context.Context, owner common.Address) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.owner = owner
	return nil
}

func TestAuthorizeInsideTransactionDuringOwnershipChange(t *testing.T) {
	ctx := context.Background()
	store := &lockingOwnerStore{}
	ownable, err := NewOwnable(ctx, store, deployer, nil)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}

	// Hold the transaction lock the way a mint does, then authorize while an
	// ownership change waits to save.
	store.txMu.Lock()
	transferDone := make(chan error, 1)
	go func() {
		transferDone <- ownable.TransferOwnership(ctx, deployer, stranger)
	}()
	time.Sleep(50 * time.Millisecond)

	authorized := make(chan error, 1)
	go func() {
		authorized <- ownable.Authorize(ctx, deployer)
	}()
	select {
	case err := <-authorized:
		if err != nil {
			t.Fatalf("authorize inside transaction: %v", err)
		}
	case <-time.After(3 * time.Second):
		store.txMu.Unlock()
		t.Fatal("authorize blocked behind a pending ownership change")
	}
	store.txMu.Unlock()

	select {
	case err := <-transferDone:
		if err != nil {
			t.Fatalf("transfer ownership: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("transfer ownership did not finish")
	}
	if got := ownable.Owner(); got != stranger {
		t.Fatalf("owner = %s, want %s", got.Hex(), stranger.Hex())
	}
}

func TestConcurrentOwnershipChangesAreSerialized(t *testing.T) {
	ctx := context.Background()
	ownable, err := NewOwnable(ctx, &lockingOwnerStore{}, deployer, nil)
	if err != nil {
		t.Fatalf("new ownable: %v", err)
	}

	// Both accounts race to hand the role to themselves; exactly the
	// administrator's calls succeed and the role ends where it started.
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, caller := range []common.Address{deployer, stranger} {
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ownable.TransferOwnership(ctx, caller, deployer) == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
	}
	wg.Wait()
	if succeeded != 20 {
		t.Fatalf("successful transfers = %d, want 20", succeeded)
	}
	if ownable.Owner() != deployer {
		t.Fatalf("owner = %s, want deployer", ownable.Owner().Hex())
	}
}
