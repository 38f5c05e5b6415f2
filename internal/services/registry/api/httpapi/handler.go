// Package httpapi exposes the registry as a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
	"github.com/louisbranch/soulbound/internal/services/registry/ledger"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
)

const maxBodyBytes = 64 << 10

// Authenticator resolves a bearer token to the caller's address.
type Authenticator interface {
	Caller(token string) (common.Address, error)
}

// Administration manages the registry administrator.
type Administration interface {
	Owner() common.Address
	TransferOwnership(ctx context.Context, caller, next common.Address) error
	RenounceOwnership(ctx context.Context, caller common.Address) error
}

// Handler serves the registry HTTP routes.
type Handler struct {
	registry *ledger.Registry
	admin    Administration
	authn    Authenticator
	mux      *http.ServeMux
}

// New returns the registry HTTP handler with its middleware applied.
func New(registry *ledger.Registry, admin Administration, authn Authenticator) http.Handler {
	h := &Handler{registry: registry, admin: admin, authn: authn, mux: http.NewServeMux()}
	h.routes()
	return Chain(h.mux, RequestID(), RecoverPanic(), RequestTimeout())
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /v1/collection", h.handleCollection)
	h.mux.HandleFunc("GET /v1/tokens/{id}", h.handleGetToken)
	h.mux.HandleFunc("POST /v1/tokens", h.authenticated(h.handleMint))
	h.mux.HandleFunc("POST /v1/tokens/{id}/unequip", h.authenticated(h.handleUnequip))
	h.mux.HandleFunc("POST /v1/tokens/{id}/transfer", h.authenticated(h.handleTransfer))
	h.mux.HandleFunc("GET /v1/holders/{address}", h.handleGetHolder)
	h.mux.HandleFunc("GET /v1/transfers", h.handleListTransfers)
	h.mux.HandleFunc("GET /v1/administrator", h.handleGetAdministrator)
	h.mux.HandleFunc("PUT /v1/administrator", h.authenticated(h.handleTransferOwnership))
	h.mux.HandleFunc("DELETE /v1/administrator", h.authenticated(h.handleRenounceOwnership))
}

type callerHandler func(w http.ResponseWriter, r *http.Request, caller common.Address)

// authenticated resolves the bearer token before calling next.
func (h *Handler) authenticated(next callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || h.authn == nil {
			writeError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required"))
			return
		}
		caller, err := h.authn.Caller(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r, caller)
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type collectionResponse struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Variant       string `json:"variant"`
	Address       string `json:"address"`
	Administrator string `json:"administrator"`
	SharedURI     string `json:"shared_uri,omitempty"`
	Minted        uint64 `json:"minted"`
	Supply        uint64 `json:"supply"`
}

type tokenResponse struct {
	ID       uint64    `json:"id"`
	Owner    string    `json:"owner"`
	TokenURI string    `json:"token_uri"`
	MintedAt time.Time `json:"minted_at,omitzero"`
}

type holderResponse struct {
	Address string         `json:"address"`
	Balance uint64         `json:"balance"`
	Token   *tokenResponse `json:"token,omitempty"`
}

type transferResponse struct {
	Seq     uint64    `json:"seq"`
	TokenID uint64    `json:"token_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
}

type transferPageResponse struct {
	Transfers     []transferResponse `json:"transfers"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

type administratorResponse struct {
	Administrator string `json:"administrator"`
}

type mintRequest struct {
	To       string `json:"to"`
	TokenURI string `json:"token_uri"`
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Safe bool   `json:"safe"`
	Data string `json:"data"`
}

type administratorRequest struct {
	Administrator string `json:"administrator"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	info, err := h.registry.Collection(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse{
		Name:          info.Name,
		Symbol:        info.Symbol,
		Variant:       string(info.Variant),
		Address:       info.Address.Hex(),
		Administrator: info.Administrator.Hex(),
		SharedURI:     info.SharedURI,
		Minted:        info.Minted,
		Supply:        info.Supply,
	})
}

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id, err := tokenID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.token(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) token(ctx context.Context, id uint64) (tokenResponse, error) {
	owner, err := h.registry.OwnerOf(ctx, id)
	if err != nil {
		return tokenResponse{}, err
	}
	uri, err := h.registry.TokenURI(ctx, id)
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{ID: id, Owner: owner.Hex(), TokenURI: uri}, nil
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var req mintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to, err := ledger.ParseAddress(req.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.registry.Mint(r.Context(), caller, to, req.TokenURI)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.token(r.Context(), id)
	if err != nil {
		// A receiver may unequip the token before the mint returns.
		token = tokenResponse{ID: id, Owner: to.Hex()}
	}
	writeJSON(w, http.StatusCreated, token)
}

func (h *Handler) handleUnequip(w http.ResponseWriter, r *http.Request, caller common.Address) {
	id, err := tokenID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.registry.Unequip(r.Context(), caller, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request, caller common.Address) {
	id, err := tokenID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, err := ledger.ParseAddress(req.From)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := ledger.ParseAddress(req.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Safe {
		err = h.registry.SafeTransferFrom(r.Context(), caller, from, to, id, common.FromHex(req.Data))
	} else {
		err = h.registry.TransferFrom(r.Context(), caller, from, to, id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetHolder(w http.ResponseWriter, r *http.Request) {
	holder, err := ledger.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := h.registry.BalanceOf(r.Context(), holder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := holderResponse{Address: holder.Hex(), Balance: balance}
	if balance > 0 {
		token, err := h.registry.HeldToken(r.Context(), holder)
		if err != nil {
			writeError(w, r, err)
			return
		}
		uri, err := h.registry.TokenURI(r.Context(), token.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Token = &tokenResponse{ID: token.ID, Owner: holder.Hex(), TokenURI: uri, MintedAt: token.MintedAt}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := storage.TransferQuery{
		Filter:    q.Get("filter"),
		PageToken: q.Get("page_token"),
	}
	if raw := strings.TrimSpace(q.Get("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "page_size must be an integer")
			return
		}
		query.PageSize = size
	}
	page, err := h.registry.ListTransfers(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := transferPageResponse{
		Transfers:     make([]transferResponse, 0, len(page.Transfers)),
		NextPageToken: page.NextPageToken,
	}
	for _, transfer := range page.Transfers {
		resp.Transfers = append(resp.Transfers, transferResponse{
			Seq:     transfer.Seq,
			TokenID: transfer.TokenID,
			From:    transfer.From.Hex(),
			To:      transfer.To.Hex(),
			Kind:    string(transfer.Kind),
			At:      transfer.At.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetAdministrator(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, administratorResponse{Administrator: h.admin.Owner().Hex()})
}

func (h *Handler) handleTransferOwnership(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var req administratorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	next, err := ledger.ParseAddress(req.Administrator)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.admin.TransferOwnership(r.Context(), caller, next); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, administratorResponse{Administrator: h.admin.Owner().Hex()})
}

func (h *Handler) handleRenounceOwnership(w http.ResponseWriter, r *http.Request, caller common.Address) {
	if err := h.admin.RenounceOwnership(r.Context(), caller); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, administratorResponse{Administrator: h.admin.Owner().Hex()})
}

// tokenID parses the {id} path value. A malformed id names no token.
func tokenID(r *http.Request) (uint64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.WithMetadata(apperrors.CodeNonexistentToken, "malformed token id", map[string]string{
			"TokenID": raw,
		})
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeBadRequest(w, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
