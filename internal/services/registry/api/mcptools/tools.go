// Package mcptools exposes the registry as Model Context Protocol tools.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
	"github.com/louisbranch/soulbound/internal/platform/errors/i18n"
	"github.com/louisbranch/soulbound/internal/services/registry/ledger"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CollectionInput is empty; the tool describes the configured collection.
type CollectionInput struct{}

// CollectionResult describes the collection and its supply.
type CollectionResult struct {
	Name          string `json:"name" jsonschema:"collection name"`
	Symbol        string `json:"symbol" jsonschema:"collection symbol"`
	Variant       string `json:"variant" jsonschema:"metadata variant (shared_uri, per_token_uri)"`
	Address       string `json:"address" jsonschema:"registry account address"`
	Administrator string `json:"administrator" jsonschema:"administrator address; zero once renounced"`
	SharedURI     string `json:"shared_uri,omitempty" jsonschema:"collection-wide token uri for shared_uri collections"`
	Minted        uint64 `json:"minted" jsonschema:"tokens ever minted, burned ones included"`
	Supply        uint64 `json:"supply" jsonschema:"tokens currently held"`
}

// TokenGetInput selects a token.
type TokenGetInput struct {
	ID uint64 `json:"id" jsonschema:"token id"`
}

// TokenResult describes a held token.
type TokenResult struct {
	ID       uint64 `json:"id" jsonschema:"token id"`
	Owner    string `json:"owner" jsonschema:"holder address"`
	TokenURI string `json:"token_uri" jsonschema:"metadata uri"`
}

// HolderGetInput selects a holder.
type HolderGetInput struct {
	Address string `json:"address" jsonschema:"holder address (0x...)"`
}

// HolderResult reports a holder's balance and token.
type HolderResult struct {
	Address  string  `json:"address" jsonschema:"holder address"`
	Balance  uint64  `json:"balance" jsonschema:"0 or 1"`
	TokenID  *uint64 `json:"token_id,omitempty" jsonschema:"held token id"`
	TokenURI string  `json:"token_uri,omitempty" jsonschema:"held token metadata uri"`
}

// TransfersListInput pages through the transfer log.
type TransfersListInput struct {
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over token_id, from, to, kind, ts"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"page size (default 50, max 200)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"next_page_token from a previous call"`
}

// TransferEntry is one transfer log record.
type TransferEntry struct {
	Seq     uint64 `json:"seq" jsonschema:"log position"`
	TokenID uint64 `json:"token_id" jsonschema:"token id"`
	From    string `json:"from" jsonschema:"sender; zero for mints"`
	To      string `json:"to" jsonschema:"recipient; zero for burns"`
	Kind    string `json:"kind" jsonschema:"mint or burn"`
	At      string `json:"at" jsonschema:"RFC 3339 timestamp"`
}

// TransfersListResult is one transfer log page.
type TransfersListResult struct {
	Transfers     []TransferEntry `json:"transfers" jsonschema:"transfers in log order"`
	NextPageToken string          `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

// TokenMintInput mints a token as the configured caller.
type TokenMintInput struct {
	To       string `json:"to" jsonschema:"recipient address (0x...)"`
	TokenURI string `json:"token_uri,omitempty" jsonschema:"metadata uri; required for per_token_uri collections"`
}

// TokenUnequipInput burns a token as the configured caller.
type TokenUnequipInput struct {
	ID uint64 `json:"id" jsonschema:"token id"`
}

// TokenUnequipResult confirms a burn.
type TokenUnequipResult struct {
	ID     uint64 `json:"id" jsonschema:"burned token id"`
	Burned bool   `json:"burned" jsonschema:"always true on success"`
}

// TokenTransferInput attempts a holder-to-holder transfer.
type TokenTransferInput struct {
	ID   uint64 `json:"id" jsonschema:"token id"`
	From string `json:"from" jsonschema:"current holder (0x...)"`
	To   string `json:"to" jsonschema:"recipient (0x...)"`
	Safe bool   `json:"safe,omitempty" jsonschema:"use the safe transfer variant"`
	Data string `json:"data,omitempty" jsonschema:"hex payload for the safe variant"`
}

// TokenTransferResult is never produced; soulbound tokens do not move.
type TokenTransferResult struct{}

// AdministratorInput is empty.
type AdministratorInput struct{}

// AdministratorResult reports the administrator.
type AdministratorResult struct {
	Administrator string `json:"administrator" jsonschema:"administrator address; zero once renounced"`
}

// Owner reports the current administrator.
type Owner interface {
	Owner() common.Address
}

// Deps are the registry handles the tools act on.
type Deps struct {
	Registry *ledger.Registry
	Admin    Owner
	// Caller is the account write tools act as. Write tools fail when it
	// is the zero address.
	Caller common.Address
}

func CollectionTool() *mcp.Tool {
	return &mcp.Tool{Name: "registry_collection", Description: "Describes the soulbound collection and its supply"}
}

func TokenGetTool() *mcp.Tool {
	return &mcp.Tool{Name: "token_get", Description: "Returns the holder and metadata uri of a held token"}
}

func HolderGetTool() *mcp.Tool {
	return &mcp.Tool{Name: "holder_get", Description: "Returns an address's balance and the token it holds"}
}

func TransfersListTool() *mcp.Tool {
	return &mcp.Tool{Name: "transfers_list", Description: "Lists mint and burn records from the transfer log"}
}

func TokenMintTool() *mcp.Tool {
	return &mcp.Tool{Name: "token_mint", Description: "Mints the next token to a recipient (administrator only)"}
}

func TokenUnequipTool() *mcp.Tool {
	return &mcp.Tool{Name: "token_unequip", Description: "Burns a token held by the caller"}
}

func TokenTransferTool() *mcp.Tool {
	return &mcp.Tool{Name: "token_transfer", Description: "Attempts a transfer; soulbound tokens always refuse"}
}

func AdministratorGetTool() *mcp.Tool {
	return &mcp.Tool{Name: "administrator_get", Description: "Returns the collection administrator"}
}

// CollectionHandler describes the collection.
func CollectionHandler(deps Deps) mcp.ToolHandlerFor[CollectionInput, CollectionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ CollectionInput) (*mcp.CallToolResult, CollectionResult, error) {
		info, err := deps.Registry.Collection(ctx)
		if err != nil {
			return nil, CollectionResult{}, toolError("registry collection", err)
		}
		return nil, CollectionResult{
			Name:          info.Name,
			Symbol:        info.Symbol,
			Variant:       string(info.Variant),
			Address:       info.Address.Hex(),
			Administrator: info.Administrator.Hex(),
			SharedURI:     info.SharedURI,
			Minted:        info.Minted,
			Supply:        info.Supply,
		}, nil
	}
}

// TokenGetHandler reads a held token.
func TokenGetHandler(deps Deps) mcp.ToolHandlerFor[TokenGetInput, TokenResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TokenGetInput) (*mcp.CallToolResult, TokenResult, error) {
		result, err := readToken(ctx, deps.Registry, input.ID)
		if err != nil {
			return nil, TokenResult{}, toolError("token get", err)
		}
		return nil, result, nil
	}
}

func readToken(ctx context.Context, registry *ledger.Registry, id uint64) (TokenResult, error) {
	owner, err := registry.OwnerOf(ctx, id)
	if err != nil {
		return TokenResult{}, err
	}
	uri, err := registry.TokenURI(ctx, id)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{ID: id, Owner: owner.Hex(), TokenURI: uri}, nil
}

// HolderGetHandler reads a holder's balance and token.
func HolderGetHandler(deps Deps) mcp.ToolHandlerFor[HolderGetInput, HolderResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input HolderGetInput) (*mcp.CallToolResult, HolderResult, error) {
		holder, err := ledger.ParseAddress(input.Address)
		if err != nil {
			return nil, HolderResult{}, toolError("holder get", err)
		}
		balance, err := deps.Registry.BalanceOf(ctx, holder)
		if err != nil {
			return nil, HolderResult{}, toolError("holder get", err)
		}
		result := HolderResult{Address: holder.Hex(), Balance: balance}
		if balance == 0 {
			return nil, result, nil
		}
		token, err := deps.Registry.HeldToken(ctx, holder)
		if err != nil {
			return nil, HolderResult{}, toolError("holder get", err)
		}
		uri, err := deps.Registry.TokenURI(ctx, token.ID)
		if err != nil {
			return nil, HolderResult{}, toolError("holder get", err)
		}
		id := token.ID
		result.TokenID = &id
		result.TokenURI = uri
		return nil, result, nil
	}
}

// TransfersListHandler pages through the transfer log.
func TransfersListHandler(deps Deps) mcp.ToolHandlerFor[TransfersListInput, TransfersListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TransfersListInput) (*mcp.CallToolResult, TransfersListResult, error) {
		page, err := deps.Registry.ListTransfers(ctx, storage.TransferQuery{
			Filter:    input.Filter,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, TransfersListResult{}, toolError("transfers list", err)
		}
		result := TransfersListResult{
			Transfers:     make([]TransferEntry, 0, len(page.Transfers)),
			NextPageToken: page.NextPageToken,
		}
		for _, transfer := range page.Transfers {
			result.Transfers = append(result.Transfers, TransferEntry{
				Seq:     transfer.Seq,
				TokenID: transfer.TokenID,
				From:    transfer.From.Hex(),
				To:      transfer.To.Hex(),
				Kind:    string(transfer.Kind),
				At:      transfer.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			})
		}
		return nil, result, nil
	}
}

// TokenMintHandler mints as the configured caller.
func TokenMintHandler(deps Deps) mcp.ToolHandlerFor[TokenMintInput, TokenResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TokenMintInput) (*mcp.CallToolResult, TokenResult, error) {
		if err := requireCaller(deps); err != nil {
			return nil, TokenResult{}, toolError("token mint", err)
		}
		to, err := ledger.ParseAddress(input.To)
		if err != nil {
			return nil, TokenResult{}, toolError("token mint", err)
		}
		id, err := deps.Registry.Mint(ctx, deps.Caller, to, input.TokenURI)
		if err != nil {
			return nil, TokenResult{}, toolError("token mint", err)
		}
		result, err := readToken(ctx, deps.Registry, id)
		if err != nil {
			result = TokenResult{ID: id, Owner: to.Hex()}
		}
		return nil, result, nil
	}
}

// TokenUnequipHandler burns as the configured caller.
func TokenUnequipHandler(deps Deps) mcp.ToolHandlerFor[TokenUnequipInput, TokenUnequipResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TokenUnequipInput) (*mcp.CallToolResult, TokenUnequipResult, error) {
		if err := requireCaller(deps); err != nil {
			return nil, TokenUnequipResult{}, toolError("token unequip", err)
		}
		if err := deps.Registry.Unequip(ctx, deps.Caller, input.ID); err != nil {
			return nil, TokenUnequipResult{}, toolError("token unequip", err)
		}
		return nil, TokenUnequipResult{ID: input.ID, Burned: true}, nil
	}
}

// TokenTransferHandler forwards a transfer attempt, which always fails.
func TokenTransferHandler(deps Deps) mcp.ToolHandlerFor[TokenTransferInput, TokenTransferResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TokenTransferInput) (*mcp.CallToolResult, TokenTransferResult, error) {
		if err := requireCaller(deps); err != nil {
			return nil, TokenTransferResult{}, toolError("token transfer", err)
		}
		from, err := ledger.ParseAddress(input.From)
		if err != nil {
			return nil, TokenTransferResult{}, toolError("token transfer", err)
		}
		to, err := ledger.ParseAddress(input.To)
		if err != nil {
			return nil, TokenTransferResult{}, toolError("token transfer", err)
		}
		if input.Safe {
			err = deps.Registry.SafeTransferFrom(ctx, deps.Caller, from, to, input.ID, common.FromHex(input.Data))
		} else {
			err = deps.Registry.TransferFrom(ctx, deps.Caller, from, to, input.ID)
		}
		if err != nil {
			return nil, TokenTransferResult{}, toolError("token transfer", err)
		}
		return nil, TokenTransferResult{}, nil
	}
}

// AdministratorGetHandler reports the administrator.
func AdministratorGetHandler(deps Deps) mcp.ToolHandlerFor[AdministratorInput, AdministratorResult] {
	return func(context.Context, *mcp.CallToolRequest, AdministratorInput) (*mcp.CallToolResult, AdministratorResult, error) {
		return nil, AdministratorResult{Administrator: deps.Admin.Owner().Hex()}, nil
	}
}

func requireCaller(deps Deps) error {
	if deps.Caller == (common.Address{}) {
		return apperrors.New(apperrors.CodeUnauthenticated, "no caller token configured")
	}
	return nil
}

// toolError renders err as "<op> failed: <CODE>: <message>" so clients can
// match the code. Domain messages come from the base locale catalog.
func toolError(op string, err error) error {
	domainErr, ok := apperrors.As(err)
	if !ok {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	message := i18n.GetCatalog(i18n.BaseLocale).Format(string(domainErr.Code), domainErr.Metadata)
	var details []string
	for _, key := range []string{"Error", "Selector"} {
		if value := domainErr.Metadata[key]; value != "" {
			details = append(details, strings.ToLower(key)+"="+value)
		}
	}
	if len(details) > 0 {
		message += " (" + strings.Join(details, ", ") + ")"
	}
	return fmt.Errorf("%s failed: %s: %s: %w", op, domainErr.Code, message, err)
}
