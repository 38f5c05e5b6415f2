// Package memory provides an in-process ledger store for tests and
// ephemeral registries.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/platform/pagination"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
	"github.com/louisbranch/soulbound/internal/services/registry/storage/filter"
)

// state is an immutable snapshot once published; transactions mutate a clone.
type state struct {
	tokens        map[uint64]storage.Token
	balances      map[common.Address]uint64
	held          map[common.Address]uint64
	nextTokenID   uint64
	transfers     []storage.Transfer
	administrator *common.Address
}

func newState() *state {
	return &state{
		tokens:   make(map[uint64]storage.Token),
		balances: make(map[common.Address]uint64),
		held:     make(map[common.Address]uint64),
	}
}

func (s *state) clone() *state {
	next := &state{
		tokens:      maps.Clone(s.tokens),
		balances:    maps.Clone(s.balances),
		held:        maps.Clone(s.held),
		nextTokenID: s.nextTokenID,
		// Capped capacity makes appends copy instead of sharing the array.
		transfers: s.transfers[:len(s.transfers):len(s.transfers)],
	}
	if s.administrator != nil {
		admin := *s.administrator
		next.administrator = &admin
	}
	return next
}

// Store keeps ledger state in memory. Writers are serialized; readers see the
// last committed snapshot without blocking writers.
type Store struct {
	writeMu sync.Mutex
	current atomic.Pointer[state]
}

// Open returns an empty memory store.
func Open() *Store {
	s := &Store{}
	s.current.Store(newState())
	return s
}

// Update runs fn against a private copy of the state and publishes it when fn
// succeeds.
func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := &tx{st: s.current.Load().clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.current.Store(tx.st)
	return nil
}

// View runs fn against the last committed snapshot.
func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&tx{st: s.current.Load()})
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

type tx struct {
	st *state
}

func (t *tx) Nest(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	child := &tx{st: t.st.clone()}
	if err := fn(child); err != nil {
		return err
	}
	t.st = child.st
	return nil
}

func (t *tx) GetToken(_ context.Context, id uint64) (storage.Token, error) {
	token, ok := t.st.tokens[id]
	if !ok {
		return storage.Token{}, storage.ErrNotFound
	}
	return token, nil
}

func (t *tx) GetBalance(_ context.Context, holder common.Address) (uint64, error) {
	return t.st.balances[holder], nil
}

func (t *tx) GetHeldToken(_ context.Context, holder common.Address) (storage.Token, error) {
	id, ok := t.st.held[holder]
	if !ok {
		return storage.Token{}, storage.ErrNotFound
	}
	return t.st.tokens[id], nil
}

func (t *tx) GetNextTokenID(context.Context) (uint64, error) {
	return t.st.nextTokenID, nil
}

func (t *tx) CountHeldTokens(context.Context) (uint64, error) {
	return uint64(len(t.st.held)), nil
}

func (t *tx) ListTransfers(_ context.Context, query storage.TransferQuery) (storage.TransferPage, error) {
	if query.PageSize <= 0 {
		return storage.TransferPage{}, fmt.Errorf("page size must be greater than zero")
	}
	cond, err := filter.Parse(query.Filter)
	if err != nil {
		return storage.TransferPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidFilter, err)
	}
	after, err := pagination.ParseSeqToken(query.PageToken)
	if err != nil {
		return storage.TransferPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidPageToken, err)
	}

	page := storage.TransferPage{Transfers: make([]storage.Transfer, 0, query.PageSize)}
	for _, transfer := range t.st.transfers {
		if transfer.Seq <= after {
			continue
		}
		if !cond.Match(transfer) {
			continue
		}
		if len(page.Transfers) == query.PageSize {
			page.NextPageToken = pagination.SeqToken(page.Transfers[query.PageSize-1].Seq)
			break
		}
		page.Transfers = append(page.Transfers, transfer)
	}
	return page, nil
}

func (t *tx) GetAdministrator(context.Context) (common.Address, bool, error) {
	if t.st.administrator == nil {
		return common.Address{}, false, nil
	}
	return *t.st.administrator, true, nil
}

func (t *tx) PutToken(_ context.Context, token storage.Token) error {
	if token.Held() {
		if id, ok := t.st.held[token.Owner]; ok && id != token.ID {
			return storage.ErrHolderConflict
		}
	}
	if previous, ok := t.st.tokens[token.ID]; ok && previous.Held() && previous.Owner != token.Owner {
		delete(t.st.held, previous.Owner)
	}
	t.st.tokens[token.ID] = token
	if token.Held() {
		t.st.held[token.Owner] = token.ID
	}
	return nil
}

func (t *tx) PutBalance(_ context.Context, holder common.Address, balance uint64) error {
	if balance == 0 {
		delete(t.st.balances, holder)
		return nil
	}
	t.st.balances[holder] = balance
	return nil
}

func (t *tx) PutNextTokenID(_ context.Context, next uint64) error {
	t.st.nextTokenID = next
	return nil
}

func (t *tx) AppendTransfer(_ context.Context, transfer storage.Transfer) (storage.Transfer, error) {
	transfer.Seq = uint64(len(t.st.transfers)) + 1
	t.st.transfers = append(t.st.transfers, transfer)
	return transfer, nil
}

func (t *tx) PutAdministrator(_ context.Context, administrator common.Address) error {
	t.st.administrator = &administrator
	return nil
}

var _ storage.Store = (*Store)(nil)
