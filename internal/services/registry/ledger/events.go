package ledger

import (
	"context"
	"log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/louisbranch/soulbound/internal/services/registry/storage"
)

// EventSink receives committed transfer notifications in log order.
type EventSink interface {
	Transferred(ctx context.Context, transfer storage.Transfer)
}

// LogSink writes committed transfers and administrator changes to the
// standard logger.
type LogSink struct{}

// Transferred logs one committed transfer.
func (LogSink) Transferred(_ context.Context, transfer storage.Transfer) {
	log.Printf("transfer seq=%d kind=%s token=%d from=%s to=%s",
		transfer.Seq, transfer.Kind, transfer.TokenID, transfer.From.Hex(), transfer.To.Hex())
}

// OwnershipTransferred logs one administrator change.
func (LogSink) OwnershipTransferred(_ context.Context, previous, next common.Address) {
	log.Printf("administrator changed from=%s to=%s", previous.Hex(), next.Hex())
}

type discardSink struct{}

func (discardSink) Transferred(context.Context, storage.Transfer) {}
