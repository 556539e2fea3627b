package zipfile

import (
	"errors"
	"fmt"
	"time"
)

// Unset marks a numeric field whose value was not recorded in the archive.
const Unset = -1

// MaxPathLength is the largest name a zip header can carry.
const MaxPathLength = 0xffff

type CompressionMethod int

const (
	MethodUnset    CompressionMethod = Unset
	MethodStored   CompressionMethod = 0
	MethodDeflated CompressionMethod = 8
)

func (m CompressionMethod) String() string {
	switch m {
	case MethodUnset:
		return "unset"
	case MethodStored:
		return "stored"
	case MethodDeflated:
		return "deflated"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

var (
	ErrInvalidEntry = errors.New("invalid entry")
	ErrNotDirectory = errors.New("not a directory")
)

// Entry holds the central directory metadata of a single archive member.
// All numeric fields use Unset (-1) when the value is unknown.
// An Entry is never modified once built and may be shared between goroutines.
type Entry struct {
	path              string
	isDir             bool
	comment           string
	crc               int64
	compressedSize    int64
	size              int64
	method            CompressionMethod
	modTime           int32
	modDate           int32
	extra             []byte
	localHeaderOffset int64
	children          []string
}

func (e *Entry) Path() string { return e.path }

func (e *Entry) IsDir() bool { return e.isDir }

func (e *Entry) Comment() string { return e.comment }

// CRC returns the raw checksum, or Unset.
func (e *Entry) CRC() int64 { return e.crc }

func (e *Entry) CompressedSize() int64 { return e.compressedSize }

func (e *Entry) Size() int64 { return e.size }

func (e *Entry) Method() CompressionMethod { return e.method }

// Time returns the packed MS-DOS time of day, or Unset.
func (e *Entry) Time() int32 { return e.modTime }

// ModDate returns the packed MS-DOS date. Only meaningful when Time is not Unset.
func (e *Entry) ModDate() int32 { return e.modDate }

func (e *Entry) LocalHeaderOffset() int64 { return e.localHeaderOffset }

// Extra returns a copy of the extra field bytes.
func (e *Entry) Extra() []byte {
	out := make([]byte, len(e.extra))
	copy(out, e.extra)
	return out
}

// Children returns the paths of the direct children of a directory entry, in the
// order they appear in the central directory.
func (e *Entry) Children() []string {
	out := make([]string, len(e.children))
	copy(out, e.children)
	return out
}

func (e *Entry) CRC32() (uint32, bool) {
	if e.crc == Unset {
		return 0, false
	}
	return uint32(e.crc), true
}

func (e *Entry) CompressedSize64() (uint64, bool) {
	return unsigned(e.compressedSize)
}

func (e *Entry) Size64() (uint64, bool) {
	return unsigned(e.size)
}

func (e *Entry) LocalHeaderOffset64() (uint64, bool) {
	return unsigned(e.localHeaderOffset)
}

// TimestampMillis decodes the modification time in the local time zone of the
// process. Returns Unset if the archive recorded no time.
func (e *Entry) TimestampMillis() int64 {
	return e.TimestampMillisIn(time.Local)
}

func (e *Entry) TimestampMillisIn(loc *time.Location) int64 {
	return DecodeTimestampMillis(e.modDate, e.modTime, loc)
}

// Modified returns the modification time as wall clock time in loc.
func (e *Entry) Modified(loc *time.Location) (time.Time, bool) {
	if e.modTime == Unset {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(e.TimestampMillisIn(loc)).In(loc), true
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s (dir=%t, size=%d, method=%s)", e.path, e.isDir, e.size, e.method)
}

func unsigned(v int64) (uint64, bool) {
	if v < 0 {
		return 0, false
	}
	return uint64(v), true
}

// EntryBuilder collects the fields of an Entry while the central directory is
// being read. It is owned by a single reader and is not safe for concurrent use.
type EntryBuilder struct {
	e Entry
}

func NewBuilder(path string) *EntryBuilder {
	return &EntryBuilder{e: Entry{
		path:              path,
		crc:               Unset,
		compressedSize:    Unset,
		size:              Unset,
		method:            MethodUnset,
		modTime:           Unset,
		modDate:           0,
		extra:             []byte{},
		localHeaderOffset: Unset,
		children:          []string{},
	}}
}

func (b *EntryBuilder) Path() string { return b.e.path }

func (b *EntryBuilder) IsDir() bool { return b.e.isDir }

func (b *EntryBuilder) Directory(isDir bool) *EntryBuilder {
	b.e.isDir = isDir
	return b
}

func (b *EntryBuilder) Comment(comment string) *EntryBuilder {
	b.e.comment = comment
	return b
}

func (b *EntryBuilder) CRC(crc int64) *EntryBuilder {
	b.e.crc = crc
	return b
}

func (b *EntryBuilder) CompressedSize(n int64) *EntryBuilder {
	b.e.compressedSize = n
	return b
}

func (b *EntryBuilder) Size(n int64) *EntryBuilder {
	b.e.size = n
	return b
}

func (b *EntryBuilder) Method(m CompressionMethod) *EntryBuilder {
	b.e.method = m
	return b
}

// Timestamp sets the packed MS-DOS date and time fields as found in the header.
func (b *EntryBuilder) Timestamp(modDate, modTime int32) *EntryBuilder {
	b.e.modDate = modDate
	b.e.modTime = modTime
	return b
}

func (b *EntryBuilder) Extra(extra []byte) *EntryBuilder {
	if extra == nil {
		extra = []byte{}
	}
	b.e.extra = extra
	return b
}

func (b *EntryBuilder) LocalHeaderOffset(off int64) *EntryBuilder {
	b.e.localHeaderOffset = off
	return b
}

// AppendChild records a direct child of a directory entry.
// Files have no children: the path is not recorded and ErrNotDirectory is returned.
func (b *EntryBuilder) AppendChild(child string) error {
	if !b.e.isDir {
		return fmt.Errorf("%w: cannot add '%s' to '%s'", ErrNotDirectory, child, b.e.path)
	}
	b.e.children = append(b.e.children, child)
	return nil
}

// Build returns the immutable Entry. The builder must not be used afterwards.
func (b *EntryBuilder) Build() (*Entry, error) {
	if b.e.path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidEntry)
	}
	if len(b.e.path) > MaxPathLength {
		return nil, fmt.Errorf("%w: path is %d bytes long", ErrInvalidEntry, len(b.e.path))
	}
	if b.e.crc != Unset && (b.e.crc < 0 || b.e.crc > 0xffffffff) {
		return nil, fmt.Errorf("%w: crc %d out of range for '%s'", ErrInvalidEntry, b.e.crc, b.e.path)
	}
	e := b.e
	e.extra = append([]byte{}, b.e.extra...)
	if e.isDir {
		e.children = append([]string{}, b.e.children...)
	} else {
		e.children = []string{}
	}
	return &e, nil
}
