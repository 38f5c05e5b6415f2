// Package pagination normalizes list paging inputs shared by API surfaces.
package pagination

import (
	"fmt"
	"strconv"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// SeqToken renders a log position as an opaque page token.
func SeqToken(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}

// ParseSeqToken returns the log position encoded by token. An empty token
// means the start of the log.
func ParseSeqToken(token string) (uint64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	return seq, nil
}
