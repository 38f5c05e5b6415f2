package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
	"go.opentelemetry.io/otel/attribute"
)

// TransferFrom rejects every holder-to-holder transfer. It fails with
// NONEXISTENT_TOKEN when id is not held and NOT_TRANSFERABLE otherwise,
// whatever the caller, from and to. Ledger state is never touched.
func (r *Registry) TransferFrom(ctx context.Context, caller, from, to common.Address, id uint64) (err error) {
	ctx, span := r.startSpan(ctx, "TransferFrom", transferAttrs(caller, from, to, id)...)
	defer func() { endSpan(span, err) }()

	return r.store.View(ctx, func(reader storage.Reader) error {
		return r.rejectTransfer(ctx, reader, id)
	})
}

// SafeTransferFrom behaves like TransferFrom; data is never delivered.
func (r *Registry) SafeTransferFrom(ctx context.Context, caller, from, to common.Address, id uint64, data []byte) (err error) {
	ctx, span := r.startSpan(ctx, "SafeTransferFrom", transferAttrs(caller, from, to, id)...)
	defer func() { endSpan(span, err) }()

	return r.store.View(ctx, func(reader storage.Reader) error {
		return r.rejectTransfer(ctx, reader, id)
	})
}

func (r *Registry) rejectTransfer(ctx context.Context, reader storage.Reader, id uint64) error {
	if _, err := r.heldToken(ctx, reader, id); err != nil {
		return err
	}
	return r.metadata.rejectTransfer(id)
}

func transferAttrs(caller, from, to common.Address, id uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("soulbound.caller", caller.Hex()),
		attribute.String("soulbound.from", from.Hex()),
		attribute.String("soulbound.to", to.Hex()),
		tokenAttr(id),
	}
}
