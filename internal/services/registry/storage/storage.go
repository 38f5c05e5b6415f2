// Package storage defines persistence contracts for registry ledger state.
//
// Every mutation happens inside Store.Update, which hands the callback a
// transaction that sees its own writes. Nested transactions roll back
// independently of their parent so a failed nested call leaves no partial
// state behind.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotFound indicates a requested ledger record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrHolderConflict indicates a write would give one holder two live tokens.
	ErrHolderConflict = errors.New("holder already owns a token")
	// ErrInvalidFilter indicates a transfer log filter could not be parsed.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidPageToken indicates a transfer log page token is malformed.
	ErrInvalidPageToken = errors.New("invalid page token")
)

// TransferKind distinguishes issuance from destruction in the transfer log.
type TransferKind string

const (
	// TransferMint records a token moving from the zero address to a holder.
	TransferMint TransferKind = "mint"
	// TransferBurn records a token moving from a holder to the zero address.
	TransferBurn TransferKind = "burn"
)

// Valid reports whether k is a known transfer kind.
func (k TransferKind) Valid() bool {
	return k == TransferMint || k == TransferBurn
}

// Token stores one issued token. A token whose Owner is the zero address has
// been burned and stays burned.
type Token struct {
	ID       uint64
	Owner    common.Address
	URI      string
	MintedAt time.Time
	BurnedAt time.Time
}

// Held reports whether the token currently has a holder.
func (t Token) Held() bool {
	return t.Owner != (common.Address{})
}

// Transfer stores one ownership change in the append-only transfer log.
type Transfer struct {
	Seq     uint64
	TokenID uint64
	From    common.Address
	To      common.Address
	Kind    TransferKind
	At      time.Time
}

// TransferQuery selects one page of the transfer log in Seq order.
type TransferQuery struct {
	// Filter is an AIP-160 expression over token_id, from, to, kind and ts.
	Filter    string
	PageSize  int
	PageToken string
}

// TransferPage stores one page of transfer log records.
type TransferPage struct {
	Transfers     []Transfer
	NextPageToken string
}

// Reader exposes ledger reads.
type Reader interface {
	// GetToken returns ErrNotFound for ids that were never minted.
	GetToken(ctx context.Context, id uint64) (Token, error)
	GetBalance(ctx context.Context, holder common.Address) (uint64, error)
	// GetHeldToken returns ErrNotFound when holder owns nothing.
	GetHeldToken(ctx context.Context, holder common.Address) (Token, error)
	GetNextTokenID(ctx context.Context) (uint64, error)
	CountHeldTokens(ctx context.Context) (uint64, error)
	ListTransfers(ctx context.Context, query TransferQuery) (TransferPage, error)
	// GetAdministrator returns false when no administrator was ever stored.
	GetAdministrator(ctx context.Context) (common.Address, bool, error)
}

// Writer exposes ledger writes.
type Writer interface {
	// PutToken returns ErrHolderConflict when Owner already holds another token.
	PutToken(ctx context.Context, token Token) error
	PutBalance(ctx context.Context, holder common.Address, balance uint64) error
	PutNextTokenID(ctx context.Context, next uint64) error
	// AppendTransfer assigns the next log position and returns the stored record.
	AppendTransfer(ctx context.Context, transfer Transfer) (Transfer, error)
	PutAdministrator(ctx context.Context, administrator common.Address) error
}

// Tx is one read-write ledger transaction.
type Tx interface {
	Reader
	Writer
	// Nest runs fn in a nested transaction. When fn fails, its writes are
	// discarded and the parent continues unaffected.
	Nest(ctx context.Context, fn func(Tx) error) error
}

// Store persists ledger state.
type Store interface {
	// Update runs fn in a serialized read-write transaction and commits when
	// fn returns nil.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn against a consistent snapshot.
	View(ctx context.Context, fn func(Reader) error) error
	Close() error
}

// AdministratorProperty persists the registry administrator through a Store.
type AdministratorProperty struct {
	Store Store
}

// LoadOwner returns the persisted administrator.
func (p AdministratorProperty) LoadOwner(ctx context.Context) (common.Address, bool, error) {
	var (
		owner common.Address
		found bool
	)
	err := p.Store.View(ctx, func(r Reader) error {
		var err error
		owner, found, err = r.GetAdministrator(ctx)
		return err
	})
	return owner, found, err
}

// SaveOwner persists owner as the administrator.
func (p AdministratorProperty) SaveOwner(ctx context.Context, owner common.Address) error {
	return p.Store.Update(ctx, func(tx Tx) error {
		return tx.PutAdministrator(ctx, owner)
	})
}
