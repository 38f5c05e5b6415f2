// Package access gates privileged registry operations behind a single
// administrator account.
package access

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
)

// Guard decides whether caller may perform an administrator-only operation.
type Guard interface {
	Authorize(ctx context.Context, caller common.Address) error
}

// OwnerStore persists the administrator across restarts.
type OwnerStore interface {
	// LoadOwner returns false when no administrator was ever saved.
	LoadOwner(ctx context.Context) (common.Address, bool, error)
	SaveOwner(ctx context.Context, owner common.Address) error
}

// OwnershipObserver is notified after the administrator changes.
type OwnershipObserver interface {
	OwnershipTransferred(ctx context.Context, previous, next common.Address)
}

// Ownable is a Guard backed by one transferable administrator. After
// RenounceOwnership the administrator is the zero address and every
// Authorize call fails.
//
// mu guards owner only and is never held across a store call, since the
// registry calls Authorize from inside store transactions. changeMu
// serializes ownership changes.
type Ownable struct {
	changeMu sync.Mutex
	mu       sync.RWMutex
	owner    common.Address
	store    OwnerStore
	observer OwnershipObserver
}

// NewOwnable loads the persisted administrator, or installs initial when none
// was ever saved. A persisted renounced (zero) administrator stays renounced.
func NewOwnable(ctx context.Context, store OwnerStore, initial common.Address, observer OwnershipObserver) (*Ownable, error) {
	if store == nil {
		return nil, fmt.Errorf("owner store is required")
	}
	o := &Ownable{store: store, observer: observer}

	owner, found, err := store.LoadOwner(ctx)
	if err != nil {
		return nil, fmt.Errorf("load administrator: %w", err)
	}
	if found {
		o.owner = owner
		return o, nil
	}

	if initial == (common.Address{}) {
		return nil, apperrors.New(apperrors.CodeInvalidAddress, "initial administrator is the zero address")
	}
	if err := store.SaveOwner(ctx, initial); err != nil {
		return nil, fmt.Errorf("save administrator: %w", err)
	}
	o.owner = initial
	o.notify(ctx, common.Address{}, initial)
	return o, nil
}

// Owner returns the current administrator.
func (o *Ownable) Owner() common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owner
}

// Authorize fails with NOT_AUTHORIZED unless caller is the administrator.
func (o *Ownable) Authorize(_ context.Context, caller common.Address) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.authorizeLocked(caller)
}

func (o *Ownable) authorizeLocked(caller common.Address) error {
	if o.owner == (common.Address{}) || caller != o.owner {
		return apperrors.WithMetadata(
			apperrors.CodeNotAuthorized,
			"caller is not the owner",
			map[string]string{"Caller": caller.Hex()},
		)
	}
	return nil
}

// TransferOwnership hands the administrator role to next.
func (o *Ownable) TransferOwnership(ctx context.Context, caller, next common.Address) error {
	if next == (common.Address{}) {
		return apperrors.New(apperrors.CodeInvalidAddress, "new owner is the zero address")
	}
	return o.replace(ctx, caller, next)
}

// RenounceOwnership leaves the registry without an administrator. Minting is
// impossible afterwards.
func (o *Ownable) RenounceOwnership(ctx context.Context, caller common.Address) error {
	return o.replace(ctx, caller, common.Address{})
}

func (o *Ownable) replace(ctx context.Context, caller, next common.Address) error {
	o.changeMu.Lock()
	defer o.changeMu.Unlock()

	if err := o.Authorize(ctx, caller); err != nil {
		return err
	}
	if err := o.store.SaveOwner(ctx, next); err != nil {
		return fmt.Errorf("save administrator: %w", err)
	}
	o.mu.Lock()
	previous := o.owner
	o.owner = next
	o.mu.Unlock()

	o.notify(ctx, previous, next)
	return nil
}

func (o *Ownable) notify(ctx context.Context, previous, next common.Address) {
	if o.observer != nil {
		o.observer.OwnershipTransferred(ctx, previous, next)
	}
}

var _ Guard = (*Ownable)(nil)
