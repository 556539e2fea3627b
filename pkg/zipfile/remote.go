package zipfile

import (
	"context"
	"io"

	"github.com/ozkatz/zipmeta/pkg/remote"
)

// StorageAdapter binds a remote.Fetcher to a context so it can serve as an OffsetFetcher.
type StorageAdapter struct {
	f   remote.Fetcher
	ctx context.Context
}

func NewStorageAdapter(ctx context.Context, f remote.Fetcher) *StorageAdapter {
	return &StorageAdapter{
		f:   f,
		ctx: ctx,
	}
}

func (z *StorageAdapter) Fetch(start, end *int64) (io.ReadCloser, error) {
	return z.f.Fetch(z.ctx, start, end)
}
