package ledger

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
)

// ErrSessionClosed is returned by Session calls made after the receiver hook
// that was handed the session has returned.
var ErrSessionClosed = errors.New("ledger session is closed")

// Session lets a receiver call back into the registry while it is being
// handed a token. Calls act as the receiver's own address and run inside the
// minting transaction, so they observe every effect written so far. Each
// write runs in a nested transaction that is discarded on failure even when
// the receiver ignores the error.
type Session struct {
	registry *Registry
	scope    *txScope
	caller   common.Address
	closed   atomic.Bool
}

func newSession(r *Registry, scope *txScope, caller common.Address) *Session {
	return &Session{registry: r, scope: scope, caller: caller}
}

func (s *Session) close() {
	s.closed.Store(true)
}

// Caller returns the address the session acts as.
func (s *Session) Caller() common.Address {
	return s.caller
}

// Mint issues a token as the session caller.
func (s *Session) Mint(ctx context.Context, to common.Address, uri string) (uint64, error) {
	var id uint64
	err := s.nested(ctx, func(scope *txScope) error {
		var err error
		id, err = s.registry.mint(ctx, scope, s.caller, to, uri)
		return err
	})
	return id, err
}

// Unequip burns id as the session caller.
func (s *Session) Unequip(ctx context.Context, id uint64) error {
	return s.nested(ctx, func(scope *txScope) error {
		return s.registry.unequip(ctx, scope, s.caller, id)
	})
}

// TransferFrom always fails; see Registry.TransferFrom.
func (s *Session) TransferFrom(ctx context.Context, from, to common.Address, id uint64) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.registry.rejectTransfer(ctx, s.scope.tx, id)
}

// SafeTransferFrom always fails; see Registry.SafeTransferFrom.
func (s *Session) SafeTransferFrom(ctx context.Context, from, to common.Address, id uint64, data []byte) error {
	return s.TransferFrom(ctx, from, to, id)
}

// BalanceOf reads holder's balance inside the transaction.
func (s *Session) BalanceOf(ctx context.Context, holder common.Address) (uint64, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}
	return s.registry.balanceOf(ctx, s.scope.tx, holder)
}

// OwnerOf reads the holder of id inside the transaction.
func (s *Session) OwnerOf(ctx context.Context, id uint64) (common.Address, error) {
	if s.closed.Load() {
		return common.Address{}, ErrSessionClosed
	}
	token, err := s.registry.heldToken(ctx, s.scope.tx, id)
	return token.Owner, err
}

// Exists reports whether id is held inside the transaction.
func (s *Session) Exists(ctx context.Context, id uint64) (bool, error) {
	if s.closed.Load() {
		return false, ErrSessionClosed
	}
	return s.registry.exists(ctx, s.scope.tx, id)
}

// TokenURI resolves the metadata URI of id inside the transaction.
func (s *Session) TokenURI(ctx context.Context, id uint64) (string, error) {
	if s.closed.Load() {
		return "", ErrSessionClosed
	}
	return s.registry.tokenURI(ctx, s.scope.tx, id)
}

func (s *Session) nested(ctx context.Context, fn func(*txScope) error) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	mark := len(*s.scope.events)
	err := s.scope.tx.Nest(ctx, func(tx storage.Tx) error {
		return fn(&txScope{tx: tx, events: s.scope.events})
	})
	if err != nil {
		*s.scope.events = (*s.scope.events)[:mark]
	}
	return err
}
