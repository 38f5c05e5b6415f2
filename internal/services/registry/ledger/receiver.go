package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Receiver is implemented by contract accounts that accept tokens. A receiver
// accepts by returning ReceivedSelector; any other selector or an error
// rejects the mint. Calls made through session run as the receiver's own
// address inside the minting transaction.
type Receiver interface {
	OnSoulboundReceived(ctx context.Context, session *Session, operator, from common.Address, id uint64, data []byte) (Selector, error)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, session *Session, operator, from common.Address, id uint64, data []byte) (Selector, error)

// OnSoulboundReceived calls f.
func (f ReceiverFunc) OnSoulboundReceived(ctx context.Context, session *Session, operator, from common.Address, id uint64, data []byte) (Selector, error) {
	return f(ctx, session, operator, from, id, data)
}

// ReceiverDirectory classifies addresses. Lookup reports whether addr is a
// contract account and, if so, the receiver it exposes (nil when it exposes
// none).
type ReceiverDirectory interface {
	Lookup(addr common.Address) (Receiver, bool)
}

// Directory is an in-memory ReceiverDirectory.
type Directory struct {
	mu        sync.RWMutex
	contracts map[common.Address]Receiver
}

// NewDirectory returns an empty directory; every address is a plain account
// until registered.
func NewDirectory() *Directory {
	return &Directory{contracts: make(map[common.Address]Receiver)}
}

// RegisterContract marks addr as a contract that exposes no receiver.
func (d *Directory) RegisterContract(addr common.Address) {
	d.Register(addr, nil)
}

// Register marks addr as a contract handled by receiver.
func (d *Directory) Register(addr common.Address, receiver Receiver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contracts[addr] = receiver
}

// Lookup implements ReceiverDirectory.
func (d *Directory) Lookup(addr common.Address) (Receiver, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	receiver, ok := d.contracts[addr]
	return receiver, ok
}
