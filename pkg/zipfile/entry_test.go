package zipfile_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ozkatz/zipmeta/pkg/zipfile"
)

func TestEntryBuilder_Defaults(t *testing.T) {
	e, err := zipfile.NewBuilder("a.txt").Build()
	require.NoError(t, err)

	assert.Equal(t, "a.txt", e.Path())
	assert.False(t, e.IsDir())
	assert.Equal(t, "", e.Comment())
	assert.NotNil(t, e.Extra())
	assert.Empty(t, e.Extra())
	assert.NotNil(t, e.Children())
	assert.Empty(t, e.Children())

	assert.Equal(t, int64(zipfile.Unset), e.CRC())
	assert.Equal(t, int64(zipfile.Unset), e.CompressedSize())
	assert.Equal(t, int64(zipfile.Unset), e.Size())
	assert.Equal(t, zipfile.MethodUnset, e.Method())
	assert.Equal(t, int32(zipfile.Unset), e.Time())
	assert.Equal(t, int64(zipfile.Unset), e.LocalHeaderOffset())
	assert.Equal(t, int64(zipfile.Unset), e.TimestampMillis())

	_, ok := e.CRC32()
	assert.False(t, ok)
	_, ok = e.Size64()
	assert.False(t, ok)
	_, ok = e.CompressedSize64()
	assert.False(t, ok)
	_, ok = e.LocalHeaderOffset64()
	assert.False(t, ok)
	_, ok = e.Modified(time.UTC)
	assert.False(t, ok)
}

func TestEntryBuilder_AllFields(t *testing.T) {
	e, err := zipfile.NewBuilder("dir/file.bin").
		Comment("hello").
		CRC(0xffffffff).
		CompressedSize(10).
		Size(20).
		Method(zipfile.MethodDeflated).
		Timestamp(0x0021, 0x0000).
		Extra([]byte{0x01, 0x02}).
		LocalHeaderOffset(1234).
		Build()
	require.NoError(t, err)

	crc, ok := e.CRC32()
	require.True(t, ok)
	assert.Equal(t, uint32(0xffffffff), crc)
	size, ok := e.Size64()
	require.True(t, ok)
	assert.Equal(t, uint64(20), size)
	compressed, ok := e.CompressedSize64()
	require.True(t, ok)
	assert.Equal(t, uint64(10), compressed)
	off, ok := e.LocalHeaderOffset64()
	require.True(t, ok)
	assert.Equal(t, uint64(1234), off)
	assert.Equal(t, "hello", e.Comment())
	assert.Equal(t, []byte{0x01, 0x02}, e.Extra())
	assert.Equal(t, zipfile.MethodDeflated, e.Method())
	assert.Equal(t, "deflated", e.Method().String())

	modified, ok := e.Modified(time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC), modified)
	assert.Equal(t, e.TimestampMillisIn(time.Local), e.TimestampMillis())
}

func TestEntryBuilder_FileChildrenRejected(t *testing.T) {
	b := zipfile.NewBuilder("file.txt")
	err := b.AppendChild("file.txt/other")
	assert.ErrorIs(t, err, zipfile.ErrNotDirectory)

	e, err := b.Build()
	require.NoError(t, err)
	assert.Empty(t, e.Children())
}

func TestEntryBuilder_ChildrenDroppedWhenNotDirectory(t *testing.T) {
	b := zipfile.NewBuilder("was-a-dir/").Directory(true)
	require.NoError(t, b.AppendChild("was-a-dir/a"))
	b.Directory(false)
	e, err := b.Build()
	require.NoError(t, err)
	assert.Empty(t, e.Children())
}

func TestEntryBuilder_DirectoryChildren(t *testing.T) {
	b := zipfile.NewBuilder("docs/").Directory(true)
	for _, c := range []string{"docs/b.md", "docs/a.md", "docs/img/"} {
		require.NoError(t, b.AppendChild(c))
	}
	e, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/b.md", "docs/a.md", "docs/img/"}, e.Children())

	// the returned slice is a copy
	children := e.Children()
	children[0] = "mutated"
	assert.Equal(t, "docs/b.md", e.Children()[0])

	// the builder no longer affects the built entry
	require.NoError(t, b.AppendChild("docs/late.md"))
	assert.Len(t, e.Children(), 3)
}

func TestEntryBuilder_ExtraIsCopied(t *testing.T) {
	extra := []byte{0xca, 0xfe}
	e, err := zipfile.NewBuilder("x").Extra(extra).Build()
	require.NoError(t, err)
	extra[0] = 0x00
	assert.Equal(t, []byte{0xca, 0xfe}, e.Extra())

	got := e.Extra()
	got[1] = 0x00
	assert.Equal(t, []byte{0xca, 0xfe}, e.Extra())

	e, err = zipfile.NewBuilder("y").Extra(nil).Build()
	require.NoError(t, err)
	assert.NotNil(t, e.Extra())
}

func TestEntryBuilder_Validation(t *testing.T) {
	_, err := zipfile.NewBuilder("").Build()
	assert.ErrorIs(t, err, zipfile.ErrInvalidEntry)

	_, err = zipfile.NewBuilder(strings.Repeat("a", zipfile.MaxPathLength+1)).Build()
	assert.ErrorIs(t, err, zipfile.ErrInvalidEntry)

	_, err = zipfile.NewBuilder(strings.Repeat("a", zipfile.MaxPathLength)).Build()
	assert.NoError(t, err)

	_, err = zipfile.NewBuilder("a").CRC(0x100000000).Build()
	assert.ErrorIs(t, err, zipfile.ErrInvalidEntry)

	_, err = zipfile.NewBuilder("a").CRC(-2).Build()
	assert.ErrorIs(t, err, zipfile.ErrInvalidEntry)
}

func TestEntryBuilder_PathNotSanitized(t *testing.T) {
	e, err := zipfile.NewBuilder("../../etc/passwd").Build()
	require.NoError(t, err)
	assert.Equal(t, "../../etc/passwd", e.Path())
}

func TestEntry_ConcurrentReads(t *testing.T) {
	b := zipfile.NewBuilder("shared/").Directory(true).
		Comment("shared").
		CRC(42).
		Size(100).
		CompressedSize(50).
		Method(zipfile.MethodStored).
		Timestamp(0x5a21, 0x6000).
		Extra([]byte{1, 2, 3}).
		LocalHeaderOffset(7)
	for i := 0; i < 16; i++ {
		require.NoError(t, b.AppendChild("shared/child"))
	}
	e, err := b.Build()
	require.NoError(t, err)
	expectedMillis := e.TimestampMillisIn(time.UTC)

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				assert.Equal(t, "shared/", e.Path())
				assert.Equal(t, "shared", e.Comment())
				assert.Equal(t, int64(42), e.CRC())
				assert.Equal(t, int64(100), e.Size())
				assert.Equal(t, int64(50), e.CompressedSize())
				assert.Equal(t, int64(7), e.LocalHeaderOffset())
				assert.Equal(t, []byte{1, 2, 3}, e.Extra())
				assert.Len(t, e.Children(), 16)
				assert.Equal(t, expectedMillis, e.TimestampMillisIn(time.UTC))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
