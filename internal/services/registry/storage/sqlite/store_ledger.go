package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/platform/pagination"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
	"github.com/louisbranch/soulbound/internal/services/registry/storage/filter"
)

const (
	propertyNextTokenID   = "next_token_id"
	propertyAdministrator = "administrator"
)

// ownerColumn stores live owners as lowercase hex and burned tokens as ''.
func ownerColumn(owner common.Address) string {
	if owner == (common.Address{}) {
		return ""
	}
	return filter.AddressValue(owner)
}

func parseOwnerColumn(value string) common.Address {
	if value == "" {
		return common.Address{}
	}
	return common.HexToAddress(value)
}

func (t *tx) GetToken(ctx context.Context, id uint64) (storage.Token, error) {
	row := t.q.QueryRowContext(
		ctx,
		`SELECT id, owner, uri, minted_at, burned_at
		   FROM tokens
		  WHERE id = ?`,
		int64(id),
	)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Token{}, storage.ErrNotFound
		}
		return storage.Token{}, fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

func (t *tx) GetHeldToken(ctx context.Context, holder common.Address) (storage.Token, error) {
	if holder == (common.Address{}) {
		return storage.Token{}, storage.ErrNotFound
	}
	row := t.q.QueryRowContext(
		ctx,
		`SELECT id, owner, uri, minted_at, burned_at
		   FROM tokens
		  WHERE owner = ?`,
		ownerColumn(holder),
	)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Token{}, storage.ErrNotFound
		}
		return storage.Token{}, fmt.Errorf("get held token: %w", err)
	}
	return token, nil
}

func scanToken(row *sql.Row) (storage.Token, error) {
	var (
		id       int64
		owner    string
		token    storage.Token
		mintedAt int64
		burnedAt int64
	)
	if err := row.Scan(&id, &owner, &token.URI, &mintedAt, &burnedAt); err != nil {
		return storage.Token{}, err
	}
	token.ID = uint64(id)
	token.Owner = parseOwnerColumn(owner)
	token.MintedAt = fromMillis(mintedAt)
	token.BurnedAt = fromMillis(burnedAt)
	return token, nil
}

func (t *tx) GetBalance(ctx context.Context, holder common.Address) (uint64, error) {
	var balance int64
	err := t.q.QueryRowContext(ctx, `SELECT balance FROM balances WHERE holder = ?`, filter.AddressValue(holder)).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return uint64(balance), nil
}

func (t *tx) GetNextTokenID(ctx context.Context) (uint64, error) {
	value, found, err := t.getProperty(ctx, propertyNextTokenID)
	if err != nil || !found {
		return 0, err
	}
	next, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse next token id: %w", err)
	}
	return next, nil
}

func (t *tx) CountHeldTokens(ctx context.Context) (uint64, error) {
	var count int64
	if err := t.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens WHERE owner != ''`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count held tokens: %w", err)
	}
	return uint64(count), nil
}

func (t *tx) ListTransfers(ctx context.Context, query storage.TransferQuery) (storage.TransferPage, error) {
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

	where := "seq > ?"
	params := []any{int64(after)}
	if !cond.Empty() {
		sqlCond := cond.SQL()
		where += " AND " + sqlCond.Clause
		params = append(params, sqlCond.Params...)
	}
	params = append(params, query.PageSize+1)

	rows, err := t.q.QueryContext(
		ctx,
		`SELECT seq, token_id, from_address, to_address, kind, at
		   FROM transfers
		  WHERE `+where+`
		  ORDER BY seq ASC
		  LIMIT ?`,
		params...,
	)
	if err != nil {
		return storage.TransferPage{}, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	page := storage.TransferPage{Transfers: make([]storage.Transfer, 0, query.PageSize)}
	for rows.Next() {
		var (
			seq, tokenID, at int64
			from, to, kind   string
		)
		if err := rows.Scan(&seq, &tokenID, &from, &to, &kind, &at); err != nil {
			return storage.TransferPage{}, fmt.Errorf("list transfers: %w", err)
		}
		page.Transfers = append(page.Transfers, storage.Transfer{
			Seq:     uint64(seq),
			TokenID: uint64(tokenID),
			From:    common.HexToAddress(from),
			To:      common.HexToAddress(to),
			Kind:    storage.TransferKind(kind),
			At:      fromMillis(at),
		})
	}
	if err := rows.Err(); err != nil {
		return storage.TransferPage{}, fmt.Errorf("list transfers: %w", err)
	}
	if len(page.Transfers) > query.PageSize {
		page.NextPageToken = pagination.SeqToken(page.Transfers[query.PageSize-1].Seq)
		page.Transfers = page.Transfers[:query.PageSize]
	}
	return page, nil
}

func (t *tx) GetAdministrator(ctx context.Context) (common.Address, bool, error) {
	value, found, err := t.getProperty(ctx, propertyAdministrator)
	if err != nil || !found {
		return common.Address{}, false, err
	}
	return common.HexToAddress(value), true, nil
}

func (t *tx) PutToken(ctx context.Context, token storage.Token) error {
	_, err := t.q.ExecContext(
		ctx,
		`INSERT INTO tokens (id, owner, uri, minted_at, burned_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner = excluded.owner,
		   uri = excluded.uri,
		   minted_at = excluded.minted_at,
		   burned_at = excluded.burned_at`,
		int64(token.ID),
		ownerColumn(token.Owner),
		token.URI,
		toMillis(token.MintedAt),
		toMillis(token.BurnedAt),
	)
	if err != nil {
		if isLiveOwnerUniqueViolation(err) {
			return storage.ErrHolderConflict
		}
		return fmt.Errorf("put token: %w", err)
	}
	return nil
}

func (t *tx) PutBalance(ctx context.Context, holder common.Address, balance uint64) error {
	var err error
	if balance == 0 {
		_, err = t.q.ExecContext(ctx, `DELETE FROM balances WHERE holder = ?`, filter.AddressValue(holder))
	} else {
		_, err = t.q.ExecContext(
			ctx,
			`INSERT INTO balances (holder, balance) VALUES (?, ?)
			 ON CONFLICT(holder) DO UPDATE SET balance = excluded.balance`,
			filter.AddressValue(holder),
			int64(balance),
		)
	}
	if err != nil {
		return fmt.Errorf("put balance: %w", err)
	}
	return nil
}

func (t *tx) PutNextTokenID(ctx context.Context, next uint64) error {
	return t.putProperty(ctx, propertyNextTokenID, strconv.FormatUint(next, 10))
}

func (t *tx) AppendTransfer(ctx context.Context, transfer storage.Transfer) (storage.Transfer, error) {
	var seq int64
	err := t.q.QueryRowContext(
		ctx,
		`INSERT INTO transfers (seq, token_id, from_address, to_address, kind, at)
		 SELECT COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ? FROM transfers
		 RETURNING seq`,
		int64(transfer.TokenID),
		filter.AddressValue(transfer.From),
		filter.AddressValue(transfer.To),
		string(transfer.Kind),
		toMillis(transfer.At),
	).Scan(&seq)
	if err != nil {
		return storage.Transfer{}, fmt.Errorf("append transfer: %w", err)
	}
	transfer.Seq = uint64(seq)
	return transfer, nil
}

func (t *tx) PutAdministrator(ctx context.Context, administrator common.Address) error {
	return t.putProperty(ctx, propertyAdministrator, administrator.Hex())
}

func (t *tx) getProperty(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := t.q.QueryRowContext(ctx, `SELECT value FROM registry_properties WHERE name = ?`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get property %s: %w", name, err)
	}
	return strings.TrimSpace(value), true, nil
}

func (t *tx) putProperty(ctx context.Context, name, value string) error {
	_, err := t.q.ExecContext(
		ctx,
		`INSERT INTO registry_properties (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name,
		value,
	)
	if err != nil {
		return fmt.Errorf("put property %s: %w", name, err)
	}
	return nil
}
