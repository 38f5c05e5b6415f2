package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/louisbranch/soulbound/internal/platform/errors"
)

// ParseAddress parses a 0x-prefixed hex account address. The zero address
// parses successfully; callers decide whether it is acceptable.
func ParseAddress(value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) || !strings.HasPrefix(strings.ToLower(value), "0x") {
		return common.Address{}, apperrors.WithMetadata(apperrors.CodeInvalidAddress, "malformed address", map[string]string{
			"Address": value,
		})
	}
	return common.HexToAddress(value), nil
}

// ParseAddressList parses a comma separated address list, skipping blanks.
func ParseAddressList(value string) ([]common.Address, error) {
	var addrs []common.Address
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		addr, err := ParseAddress(part)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
