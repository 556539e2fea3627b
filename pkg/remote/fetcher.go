package remote

import (
	"context"
	"fmt"
	"io"
)

// Fetcher reads a byte range of a single remote object.
// endOffset is inclusive. A nil startOffset with a non-nil endOffset returns the
// last *endOffset bytes of the object; nil for both returns the whole object.
type Fetcher interface {
	Fetch(ctx context.Context, startOffset *int64, endOffset *int64) (io.ReadCloser, error)
}

// buildRange returns the value of an HTTP Range header for the given offsets,
// or nil when the whole object is requested.
func buildRange(startOffset *int64, endOffset *int64) *string {
	var rng string
	switch {
	case startOffset != nil && endOffset != nil:
		rng = fmt.Sprintf("bytes=%d-%d", *startOffset, *endOffset)
	case startOffset != nil:
		rng = fmt.Sprintf("bytes=%d-", *startOffset)
	case endOffset != nil:
		rng = fmt.Sprintf("bytes=-%d", *endOffset)
	default:
		return nil
	}
	return &rng
}
