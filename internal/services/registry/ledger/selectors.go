package ledger

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selector is the first four bytes of the keccak256 hash of a signature.
type Selector [4]byte

// SelectorOf returns the selector for signature, e.g. "NotImplemented()".
func SelectorOf(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(signature)))
	return s
}

// String renders the selector as 0x-prefixed hex.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

var (
	// ReceivedSelector is the acknowledgement a receiver must return to
	// accept a token.
	ReceivedSelector = SelectorOf("onERC721Received(address,address,uint256,bytes)")
	// NotImplementedSelector identifies the structured transfer rejection of
	// per-token-uri collections.
	NotImplementedSelector = SelectorOf("NotImplemented()")
)

// DefaultAddress derives a stable registry address from the collection name
// and symbol for deployments that do not configure one.
func DefaultAddress(name, symbol string) common.Address {
	seed := strings.TrimSpace(name) + "|" + strings.TrimSpace(symbol)
	return common.BytesToAddress(crypto.Keccak256([]byte(seed))[12:])
}
