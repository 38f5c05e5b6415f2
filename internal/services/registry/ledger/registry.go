package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
	"github.com/louisbranch/soulbound/internal/platform/pagination"
	"github.com/louisbranch/soulbound/internal/services/registry/access"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/soulbound/internal/services/registry/ledger"

var transferPageSize = pagination.PageSizeConfig{Default: 50, Max: 200}

// Config wires a Registry.
type Config struct {
	Name   string
	Symbol string
	// Address is the registry's own account. Minting to it always fails
	// because the registry is a contract without a receiver. Defaults to
	// DefaultAddress(Name, Symbol).
	Address   common.Address
	Metadata  MetadataPolicy
	Guard     access.Guard
	Receivers ReceiverDirectory
	Store     storage.Store
	Events    EventSink
	Clock     func() time.Time
}

// Registry is the soulbound token ledger.
type Registry struct {
	name      string
	symbol    string
	address   common.Address
	metadata  MetadataPolicy
	guard     access.Guard
	receivers ReceiverDirectory
	store     storage.Store
	events    EventSink
	now       func() time.Time
	tracer    trace.Tracer
}

// Collection describes a registry and its current supply.
type Collection struct {
	Name          string
	Symbol        string
	Variant       Variant
	Address       common.Address
	Administrator common.Address
	SharedURI     string
	// Minted counts every token ever issued, burned ones included.
	Minted uint64
	// Supply counts tokens currently held.
	Supply uint64
}

// New validates cfg and returns a Registry.
func New(cfg Config) (*Registry, error) {
	name := strings.TrimSpace(cfg.Name)
	symbol := strings.TrimSpace(cfg.Symbol)
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if symbol == "" {
		return nil, fmt.Errorf("collection symbol is required")
	}
	if cfg.Metadata == nil {
		return nil, fmt.Errorf("metadata policy is required")
	}
	if cfg.Guard == nil {
		return nil, fmt.Errorf("access guard is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	r := &Registry{
		name:      name,
		symbol:    symbol,
		address:   cfg.Address,
		metadata:  cfg.Metadata,
		guard:     cfg.Guard,
		receivers: cfg.Receivers,
		store:     cfg.Store,
		events:    cfg.Events,
		now:       cfg.Clock,
		tracer:    otel.Tracer(tracerName),
	}
	if r.address == (common.Address{}) {
		r.address = DefaultAddress(name, symbol)
	}
	if r.receivers == nil {
		r.receivers = NewDirectory()
	}
	if r.events == nil {
		r.events = discardSink{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Address returns the registry's own account.
func (r *Registry) Address() common.Address {
	return r.address
}

// Variant returns the registry's metadata variant.
func (r *Registry) Variant() Variant {
	return r.metadata.Variant()
}

// Collection returns the registry description and supply counters.
func (r *Registry) Collection(ctx context.Context) (info Collection, err error) {
	ctx, span := r.startSpan(ctx, "Collection")
	defer func() { endSpan(span, err) }()

	info = Collection{
		Name:      r.name,
		Symbol:    r.symbol,
		Variant:   r.metadata.Variant(),
		Address:   r.address,
		SharedURI: r.metadata.SharedURI(),
	}
	if owned, ok := r.guard.(interface{ Owner() common.Address }); ok {
		info.Administrator = owned.Owner()
	}
	err = r.store.View(ctx, func(reader storage.Reader) error {
		var err error
		if info.Minted, err = reader.GetNextTokenID(ctx); err != nil {
			return fmt.Errorf("get next token id: %w", err)
		}
		if info.Supply, err = reader.CountHeldTokens(ctx); err != nil {
			return fmt.Errorf("count held tokens: %w", err)
		}
		return nil
	})
	return info, err
}

// Exists reports whether id is currently held.
func (r *Registry) Exists(ctx context.Context, id uint64) (exists bool, err error) {
	ctx, span := r.startSpan(ctx, "Exists", tokenAttr(id))
	defer func() { endSpan(span, err) }()

	err = r.store.View(ctx, func(reader storage.Reader) error {
		var err error
		exists, err = r.exists(ctx, reader, id)
		return err
	})
	return exists, err
}

// OwnerOf returns the holder of id.
func (r *Registry) OwnerOf(ctx context.Context, id uint64) (owner common.Address, err error) {
	ctx, span := r.startSpan(ctx, "OwnerOf", tokenAttr(id))
	defer func() { endSpan(span, err) }()

	err = r.store.View(ctx, func(reader storage.Reader) error {
		token, err := r.heldToken(ctx, reader, id)
		owner = token.Owner
		return err
	})
	return owner, err
}

// BalanceOf returns how many tokens holder owns (0 or 1).
func (r *Registry) BalanceOf(ctx context.Context, holder common.Address) (balance uint64, err error) {
	ctx, span := r.startSpan(ctx, "BalanceOf", attribute.String("soulbound.holder", holder.Hex()))
	defer func() { endSpan(span, err) }()

	err = r.store.View(ctx, func(reader storage.Reader) error {
		var err error
		balance, err = r.balanceOf(ctx, reader, holder)
		return err
	})
	return balance, err
}

// TokenURI returns the metadata URI of a held token.
func (r *Registry) TokenURI(ctx context.Context, id uint64) (uri string, err error) {
	ctx, span := r.startSpan(ctx, "TokenURI", tokenAttr(id))
	defer func() { endSpan(span, err) }()

	err = r.store.View(ctx, func(reader storage.Reader) error {
		var err error
		uri, err = r.tokenURI(ctx, reader, id)
		return err
	})
	return uri, err
}

// HeldToken returns the single token holder owns.
func (r *Registry) HeldToken(ctx context.Context, holder common.Address) (token storage.Token, err error) {
	ctx, span := r.startSpan(ctx, "HeldToken", attribute.String("soulbound.holder", holder.Hex()))
	defer func() { endSpan(span, err) }()

	err = r.store.View(ctx, func(reader storage.Reader) error {
		var err error
		token, err = r.heldTokenOf(ctx, reader, holder)
		return err
	})
	return token, err
}

// ListTransfers returns one page of the transfer log.
func (r *Registry) ListTransfers(ctx context.Context, query storage.TransferQuery) (page storage.TransferPage, err error) {
	ctx, span := r.startSpan(ctx, "ListTransfers", attribute.String("soulbound.filter", query.Filter))
	defer func() { endSpan(span, err) }()

	query.PageSize = pagination.ClampPageSize(query.PageSize, transferPageSize)
	err = r.store.View(ctx, func(reader storage.Reader) error {
		var err error
		page, err = reader.ListTransfers(ctx, query)
		return err
	})
	switch {
	case err == nil:
		return page, nil
	case errors.Is(err, storage.ErrInvalidFilter):
		return storage.TransferPage{}, apperrors.Wrap(apperrors.CodeInvalidFilter, err.Error(), err)
	case errors.Is(err, storage.ErrInvalidPageToken):
		return storage.TransferPage{}, apperrors.Wrap(apperrors.CodeInvalidPageToken, err.Error(), err)
	default:
		return storage.TransferPage{}, fmt.Errorf("list transfers: %w", err)
	}
}

// Mint issues the next token to to. Only the administrator may mint, and only
// to an address that holds nothing. uri must be empty for shared-uri
// collections and non-empty for per-token-uri collections.
func (r *Registry) Mint(ctx context.Context, caller, to common.Address, uri string) (id uint64, err error) {
	ctx, span := r.startSpan(ctx, "Mint",
		attribute.String("soulbound.caller", caller.Hex()),
		attribute.String("soulbound.to", to.Hex()),
	)
	defer func() { endSpan(span, err) }()

	err = r.update(ctx, func(scope *txScope) error {
		var mintErr error
		id, mintErr = r.mint(ctx, scope, caller, to, uri)
		return mintErr
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(tokenAttr(id))
	return id, nil
}

// Unequip burns id. Only its holder may burn it.
func (r *Registry) Unequip(ctx context.Context, caller common.Address, id uint64) (err error) {
	ctx, span := r.startSpan(ctx, "Unequip", attribute.String("soulbound.caller", caller.Hex()), tokenAttr(id))
	defer func() { endSpan(span, err) }()

	return r.update(ctx, func(scope *txScope) error {
		return r.unequip(ctx, scope, caller, id)
	})
}

// txScope is the write context of one operation. events is shared with
// nested scopes so a rolled back nested call can truncate what it added.
type txScope struct {
	tx     storage.Tx
	events *[]storage.Transfer
}

func (r *Registry) update(ctx context.Context, fn func(*txScope) error) error {
	var events []storage.Transfer
	err := r.store.Update(ctx, func(tx storage.Tx) error {
		events = events[:0]
		return fn(&txScope{tx: tx, events: &events})
	})
	if err != nil {
		return err
	}
	for _, transfer := range events {
		r.events.Transferred(ctx, transfer)
	}
	return nil
}

func (r *Registry) mint(ctx context.Context, scope *txScope, caller, to common.Address, uri string) (uint64, error) {
	if err := r.guard.Authorize(ctx, caller); err != nil {
		return 0, err
	}
	if to == (common.Address{}) {
		return 0, apperrors.New(apperrors.CodeInvalidRecipient, "mint to the zero address")
	}
	storedURI, err := r.metadata.prepare(uri)
	if err != nil {
		return 0, err
	}

	balance, err := scope.tx.GetBalance(ctx, to)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if balance > 0 {
		return 0, alreadyMinted(to)
	}

	id, err := scope.tx.GetNextTokenID(ctx)
	if err != nil {
		return 0, fmt.Errorf("get next token id: %w", err)
	}
	now := r.now().UTC()

	if err := scope.tx.PutNextTokenID(ctx, id+1); err != nil {
		return 0, fmt.Errorf("advance token id: %w", err)
	}
	if err := scope.tx.PutToken(ctx, storage.Token{ID: id, Owner: to, URI: storedURI, MintedAt: now}); err != nil {
		if errors.Is(err, storage.ErrHolderConflict) {
			return 0, alreadyMinted(to)
		}
		return 0, fmt.Errorf("put token: %w", err)
	}
	if err := scope.tx.PutBalance(ctx, to, balance+1); err != nil {
		return 0, fmt.Errorf("put balance: %w", err)
	}
	if err := r.record(ctx, scope, storage.Transfer{TokenID: id, To: to, Kind: storage.TransferMint, At: now}); err != nil {
		return 0, err
	}

	if err := r.checkOnReceived(ctx, scope, caller, common.Address{}, to, id, nil); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Registry) unequip(ctx context.Context, scope *txScope, caller common.Address, id uint64) error {
	token, err := r.heldToken(ctx, scope.tx, id)
	if err != nil {
		return err
	}
	if token.Owner != caller {
		return apperrors.WithMetadata(apperrors.CodeNotHolder, "caller is not the token holder", map[string]string{
			"TokenID": strconv.FormatUint(id, 10),
			"Caller":  caller.Hex(),
		})
	}

	holder := token.Owner
	balance, err := scope.tx.GetBalance(ctx, holder)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if balance == 0 {
		return fmt.Errorf("holder %s of token %d has no balance", holder.Hex(), id)
	}
	now := r.now().UTC()

	burned := storage.Token{ID: token.ID, MintedAt: token.MintedAt, BurnedAt: now}
	if err := scope.tx.PutToken(ctx, burned); err != nil {
		return fmt.Errorf("put token: %w", err)
	}
	if err := scope.tx.PutBalance(ctx, holder, balance-1); err != nil {
		return fmt.Errorf("put balance: %w", err)
	}
	return r.record(ctx, scope, storage.Transfer{TokenID: id, From: holder, Kind: storage.TransferBurn, At: now})
}

func (r *Registry) record(ctx context.Context, scope *txScope, transfer storage.Transfer) error {
	stored, err := scope.tx.AppendTransfer(ctx, transfer)
	if err != nil {
		return fmt.Errorf("append transfer: %w", err)
	}
	*scope.events = append(*scope.events, stored)
	return nil
}

// checkOnReceived runs the receiver hook when to is a contract. Domain errors
// raised inside the hook propagate unchanged; anything else rejects the mint
// as an unsafe recipient.
func (r *Registry) checkOnReceived(ctx context.Context, scope *txScope, operator, from, to common.Address, id uint64, data []byte) error {
	receiver, isContract := r.lookupReceiver(to)
	if !isContract {
		return nil
	}
	if receiver == nil {
		return unsafeRecipient(to, "recipient does not implement the token receiver", nil)
	}

	session := newSession(r, scope, to)
	selector, err := receiver.OnSoulboundReceived(ctx, session, operator, from, id, data)
	session.close()
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return err
		}
		return unsafeRecipient(to, "recipient rejected the token", err)
	}
	if selector != ReceivedSelector {
		return unsafeRecipient(to, fmt.Sprintf("recipient returned selector %s", selector), nil)
	}
	return nil
}

func (r *Registry) lookupReceiver(addr common.Address) (Receiver, bool) {
	if addr == r.address {
		return nil, true
	}
	return r.receivers.Lookup(addr)
}

func (r *Registry) exists(ctx context.Context, reader storage.Reader, id uint64) (bool, error) {
	token, err := reader.GetToken(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get token: %w", err)
	}
	return token.Held(), nil
}

// heldToken fails with NONEXISTENT_TOKEN for ids never minted or burned.
func (r *Registry) heldToken(ctx context.Context, reader storage.Reader, id uint64) (storage.Token, error) {
	token, err := reader.GetToken(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.Token{}, fmt.Errorf("get token: %w", err)
	}
	if err != nil || !token.Held() {
		return storage.Token{}, apperrors.WithMetadata(apperrors.CodeNonexistentToken, "token does not exist", map[string]string{
			"TokenID": strconv.FormatUint(id, 10),
		})
	}
	return token, nil
}

func (r *Registry) heldTokenOf(ctx context.Context, reader storage.Reader, holder common.Address) (storage.Token, error) {
	if holder == (common.Address{}) {
		return storage.Token{}, invalidAddress()
	}
	token, err := reader.GetHeldToken(ctx, holder)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Token{}, apperrors.WithMetadata(apperrors.CodeNonexistentToken, "holder owns no token", map[string]string{
			"Holder": holder.Hex(),
		})
	}
	if err != nil {
		return storage.Token{}, fmt.Errorf("get held token: %w", err)
	}
	return token, nil
}

func (r *Registry) balanceOf(ctx context.Context, reader storage.Reader, holder common.Address) (uint64, error) {
	if holder == (common.Address{}) {
		return 0, invalidAddress()
	}
	balance, err := reader.GetBalance(ctx, holder)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (r *Registry) tokenURI(ctx context.Context, reader storage.Reader, id uint64) (string, error) {
	token, err := r.heldToken(ctx, reader, id)
	if err != nil {
		return "", err
	}
	return r.metadata.resolve(token), nil
}

func alreadyMinted(holder common.Address) error {
	return apperrors.WithMetadata(apperrors.CodeAlreadyMinted, "recipient already holds a token", map[string]string{
		"Holder": holder.Hex(),
	})
}

func invalidAddress() error {
	return apperrors.New(apperrors.CodeInvalidAddress, "zero address is not a valid holder")
}

func unsafeRecipient(to common.Address, message string, cause error) error {
	return &apperrors.Error{
		Code:     apperrors.CodeUnsafeRecipient,
		Message:  message,
		Metadata: map[string]string{"Recipient": to.Hex()},
		Cause:    cause,
	}
}

func tokenAttr(id uint64) attribute.KeyValue {
	return attribute.Int64("soulbound.token_id", int64(id))
}

func (r *Registry) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		span.SetAttributes(attribute.String("soulbound.error_code", string(apperrors.CodeOf(err))))
	}
	span.End()
}
