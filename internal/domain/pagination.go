package domain

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// Page size bounds for list operations.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

const pageTokenPrefix = "o:"

// PageRequest selects one page of a list. PageToken is opaque to callers and
// carries the offset of the first item.
type PageRequest struct {
	MaxResults int
	PageToken  string
}

// Validate rejects tokens that were not produced by EncodePageToken.
func (p PageRequest) Validate() error {
	if _, err := decodePageToken(p.PageToken); err != nil {
		return err
	}
	return nil
}

// Offset is the index of the first item. Invalid tokens count as zero; call
// Validate first where the caller supplied the token.
func (p PageRequest) Offset() int {
	off, _ := decodePageToken(p.PageToken)
	return off
}

// Limit is MaxResults clamped to [1, MaxPageSize], or DefaultPageSize when unset.
func (p PageRequest) Limit() int {
	switch {
	case p.MaxResults <= 0:
		return DefaultPageSize
	case p.MaxResults > MaxPageSize:
		return MaxPageSize
	default:
		return p.MaxResults
	}
}

// EncodePageToken returns the token for offset, or "" for the first page.
// Tokens are URL-safe.
func EncodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(pageTokenPrefix + strconv.Itoa(offset)))
}

// NextPageToken returns the token following a page of limit items at offset,
// or "" when total is exhausted.
func NextPageToken(offset, limit int, total int64) string {
	if next := offset + limit; int64(next) < total {
		return EncodePageToken(next)
	}
	return ""
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrValidation("malformed page token")
	}
	s, ok := strings.CutPrefix(string(raw), pageTokenPrefix)
	if !ok {
		return 0, ErrValidation("malformed page token")
	}
	off, err := strconv.Atoi(s)
	if err != nil || off < 0 {
		return 0, ErrValidation("malformed page token")
	}
	return off, nil
}
