package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when the client omits pageSize.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps pageSize.
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params are the paging inputs accepted by list endpoints.
type Params struct {
	PageSize  int
	PageToken string
}

// Options bound the accepted page size. Zero values use the package defaults.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// FromRequest reads pageSize and pageToken from the query string. Oversized pages are
// clamped; a token that does not decode is rejected before it reaches a store.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	def := opts.DefaultPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	maxSize := opts.MaxPageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPageSize
	}

	query := r.URL.Query()
	params := Params{PageSize: def, PageToken: strings.TrimSpace(query.Get("pageToken"))}
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Params{}, fmt.Errorf("%w: %q", ErrInvalidPageSize, raw)
		}
		params.PageSize = min(size, maxSize)
	}
	if params.PageToken != "" {
		if _, err := DecodeToken(params.PageToken); err != nil {
			return Params{}, err
		}
	}
	return params, nil
}
