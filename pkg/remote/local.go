package remote

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
)

// LocalFetcher serves ranges of a file on the local filesystem.
// Ranges are read with ReadAt, so concurrent fetches don't share a file position.
type LocalFetcher struct {
	handle *os.File
}

func NewLocalFetcher(uri string) (*LocalFetcher, error) {
	filePath, err := localParseUri(uri)
	if err != nil {
		return nil, err
	}
	handle, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, ErrDoesNotExist
	} else if err != nil {
		return nil, err
	}

	return &LocalFetcher{
		handle: handle,
	}, nil
}

func (l *LocalFetcher) Fetch(_ context.Context, startOffset *int64, endOffset *int64) (io.ReadCloser, error) {
	info, err := l.handle.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	var start, end int64 = 0, size // end is exclusive here
	switch {
	case startOffset == nil && endOffset != nil:
		// only end offset, read the last endOffset bytes
		start = max(size-*endOffset, 0)
	case startOffset != nil && endOffset != nil:
		start = *startOffset
		end = min(*endOffset+1, size)
	case startOffset != nil:
		start = *startOffset
	}
	if start > end {
		start = end
	}
	return io.NopCloser(io.NewSectionReader(l.handle, start, end-start)), nil
}

func (l *LocalFetcher) Close() error {
	return l.handle.Close()
}

func localParseUri(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", ErrInvalidURI
	}
	if parsed.Scheme == "" {
		return path.Clean(uri), nil
	}
	return path.Clean(path.Join(parsed.Host, parsed.Path)), nil
}
