package zipfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
)

const (
	EOCDPrefetchBufferSize = 65536 // 64kb is more than enough
	Zip64HeaderId          = 0x0001
)

var (
	EOCDSignature   = []byte{0x50, 0x4b, 0x05, 0x06}
	EOCD64Signature = []byte{0x50, 0x4b, 0x06, 0x06}
)

const cdrSignature = 0x02014b50

var (
	ErrInvalidZip   = errors.New("invalid zip file")
	ErrFileNotFound = errors.New("file not found")
)

type EOCD struct {
	Signature         uint32
	CurrentDiskNumber uint16
	CDDiskNumber      uint16
	DiskCDRs          uint16
	TotalCDRs         uint16
	CDSizeBytes       uint32
	CDByteOffset      uint32
}

type EOCD64 struct {
	Signature              uint32
	SizeBytes              uint64
	CreatorVersion         uint16
	VersionNeededToExtract uint16
	CurrentDiskNumber      uint32
	CDDiskNumber           uint32
	DiskCDRs               uint64
	TotalCDRs              uint64
	CDSizeBytes            uint64
	CDByteOffset           uint64
}

type cdrMetadata struct {
	FileHeaderSignature      uint32
	CreatorVersion           uint16
	VersionNeededToExtract   uint16
	GeneralPurposeBitFlag    uint16
	CompressionMethod        uint16
	ModTime                  uint16
	ModDate                  uint16
	CRC32Uncompressed        uint32
	CompressedSizeBytesRaw   uint32
	UncompressedSizeBytesRaw uint32
	FileNameLength           uint16
	ExtraFieldLength         uint16
	FileCommentLength        uint16
	FileStartDiskNumberRaw   uint16
	InternalFileAttributes   uint16
	ExternalFileAttributes   uint32
	LocalFileHeaderOffsetRaw uint32
}

type CDLocation struct {
	SizeBytes uint64
	Offset    uint64
	Zip64     bool
}

// OffsetFetcher returns the bytes between start and end (inclusive).
// A nil start with a non-nil end returns the last end bytes.
type OffsetFetcher interface {
	Fetch(start, end *int64) (io.ReadCloser, error)
}

type CentralDirectoryParser struct {
	reader OffsetFetcher
}

func NewCentralDirectoryParser(reader OffsetFetcher) *CentralDirectoryParser {
	return &CentralDirectoryParser{
		reader: reader,
	}
}

func (p *CentralDirectoryParser) fetchAll(start, end *int64) ([]byte, error) {
	r, err := p.reader.Fetch(start, end)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func (p *CentralDirectoryParser) getCDLocation() (*CDLocation, error) {
	var bufSize int64 = EOCDPrefetchBufferSize
	buf, err := p.fetchAll(nil, &bufSize)
	if err != nil {
		return nil, err
	}
	eocdStartOffset := bytes.LastIndex(buf, EOCDSignature)
	if eocdStartOffset == -1 {
		// no signature found!
		return nil, fmt.Errorf("%w: end of central directory not found", ErrInvalidZip)
	}
	eocd := &EOCD{}
	err = binary.Read(bytes.NewReader(buf[eocdStartOffset:]), binary.LittleEndian, eocd)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated end of central directory", ErrInvalidZip)
	}
	// check if zip64
	if eocd.CurrentDiskNumber == 0xffff ||
		eocd.CDDiskNumber == 0xffff ||
		eocd.DiskCDRs == 0xffff ||
		eocd.TotalCDRs == 0xffff ||
		eocd.CDByteOffset == 0xffffffff ||
		eocd.CDSizeBytes == 0xffffffff {
		return p.getCD64Location(buf[:eocdStartOffset])
	}

	return &CDLocation{
		SizeBytes: uint64(eocd.CDSizeBytes),
		Offset:    uint64(eocd.CDByteOffset),
		Zip64:     false,
	}, nil
}

func (p *CentralDirectoryParser) getCD64Location(buf []byte) (*CDLocation, error) {
	eocdStartOffset := bytes.LastIndex(buf, EOCD64Signature)
	if eocdStartOffset == -1 {
		// no signature found!
		return nil, fmt.Errorf("%w: zip64 end of central directory not found", ErrInvalidZip)
	}
	eocd := &EOCD64{}
	err := binary.Read(bytes.NewReader(buf[eocdStartOffset:]), binary.LittleEndian, eocd)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated zip64 end of central directory", ErrInvalidZip)
	}

	return &CDLocation{
		SizeBytes: eocd.CDSizeBytes,
		Offset:    eocd.CDByteOffset,
		Zip64:     true,
	}, nil
}

// zip64Values replaces the saturated 32 bit header values with the ones stored in
// the zip64 extended information field. Only saturated values are present in the
// field, in the order: uncompressed size, compressed size, local header offset.
func zip64Values(extra []byte, saturated ...*uint64) error {
	for i := 0; i+4 <= len(extra); {
		header := binary.LittleEndian.Uint16(extra[i : i+2])
		size := int(binary.LittleEndian.Uint16(extra[i+2 : i+4]))
		i += 4
		if i+size > len(extra) {
			break
		}
		if header != Zip64HeaderId {
			// otherwise, skip to next header
			i += size
			continue
		}
		field := extra[i : i+size]
		for _, v := range saturated {
			if *v != 0xffffffff {
				continue
			}
			if len(field) < 8 {
				return fmt.Errorf("%w: short zip64 extra field", ErrInvalidZip)
			}
			*v = binary.LittleEndian.Uint64(field[:8])
			field = field[8:]
		}
		return nil
	}
	for _, v := range saturated {
		if *v == 0xffffffff {
			return fmt.Errorf("%w: missing zip64 extra field", ErrInvalidZip)
		}
	}
	return nil
}

func offset(n uint64) *int64 {
	a := int64(n)
	return &a
}

// ReadCDR reads a single central directory header into a builder.
// Children are not linked; see GetCentralDirectory.
func ReadCDR(r io.Reader) (*EntryBuilder, error) {
	metadata := &cdrMetadata{}
	err := binary.Read(r, binary.LittleEndian, metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidZip, err)
	}
	if metadata.FileHeaderSignature != cdrSignature {
		return nil, fmt.Errorf("%w: bad central directory header signature 0x%08x",
			ErrInvalidZip, metadata.FileHeaderSignature)
	}

	fileNameBuffer := make([]byte, metadata.FileNameLength)
	extraFieldBuffer := make([]byte, metadata.ExtraFieldLength)
	fileCommentBuffer := make([]byte, metadata.FileCommentLength)
	for _, buf := range [][]byte{fileNameBuffer, extraFieldBuffer, fileCommentBuffer} {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidZip, err)
		}
	}

	uncompressed := uint64(metadata.UncompressedSizeBytesRaw)
	compressed := uint64(metadata.CompressedSizeBytesRaw)
	localHeaderOffset := uint64(metadata.LocalFileHeaderOffsetRaw)
	err = zip64Values(extraFieldBuffer, &uncompressed, &compressed, &localHeaderOffset)
	if err != nil {
		return nil, err
	}

	name := string(fileNameBuffer)
	b := NewBuilder(name).
		Directory(isDirectory(name, metadata.CreatorVersion, metadata.ExternalFileAttributes)).
		Comment(string(fileCommentBuffer)).
		CRC(int64(metadata.CRC32Uncompressed)).
		CompressedSize(int64(compressed)).
		Size(int64(uncompressed)).
		Method(CompressionMethod(metadata.CompressionMethod)).
		Timestamp(int32(metadata.ModDate), int32(metadata.ModTime)).
		Extra(extraFieldBuffer).
		LocalHeaderOffset(int64(localHeaderOffset))
	return b, nil
}

func (p *CentralDirectoryParser) parseCDR(loc *CDLocation) ([]*Entry, error) {
	if loc.SizeBytes == 0 {
		return []*Entry{}, nil
	}
	start := time.Now()
	buf, err := p.fetchAll(offset(loc.Offset), offset(loc.Offset+loc.SizeBytes-1))
	slog.Debug("read Central Directory",
		"size_bytes", len(buf), "zip64", loc.Zip64, "took_ms", time.Since(start).Milliseconds())
	if err != nil {
		return nil, err
	}
	if uint64(len(buf)) < loc.SizeBytes {
		return nil, fmt.Errorf("%w: central directory truncated (%d of %d bytes)",
			ErrInvalidZip, len(buf), loc.SizeBytes)
	}

	parsingStart := time.Now()
	r := bytes.NewReader(buf[:loc.SizeBytes])
	builders := make([]*EntryBuilder, 0)
	for r.Len() > 0 {
		b, err := ReadCDR(r)
		if err != nil {
			return nil, err
		}
		builders = append(builders, b)
	}
	linkChildren(builders)

	records := make([]*Entry, len(builders))
	for i, b := range builders {
		records[i], err = b.Build()
		if err != nil {
			return nil, err
		}
	}
	slog.Debug("parse Central Directory",
		"records", len(records), "took_ms", time.Since(parsingStart).Milliseconds())
	return records, nil
}

// linkChildren appends every entry to its parent directory, in file order.
// Parents that have no entry of their own are not created.
func linkChildren(builders []*EntryBuilder) {
	dirs := make(map[string]*EntryBuilder)
	for _, b := range builders {
		if b.IsDir() {
			dirs[dirKey(b.Path())] = b
		}
	}
	for _, b := range builders {
		key := dirKey(b.Path())
		if key == "" {
			continue
		}
		parentKey := path.Dir(key)
		if parentKey == "." || parentKey == "/" {
			continue
		}
		parent, ok := dirs[parentKey]
		if !ok || parent == b {
			continue
		}
		if err := parent.AppendChild(b.Path()); err != nil {
			slog.Warn("could not link entry to parent", "path", b.Path(), "error", err)
		}
	}
}

func dirKey(p string) string {
	return strings.TrimSuffix(p, "/")
}

func (p *CentralDirectoryParser) GetCentralDirectory() ([]*Entry, error) {
	loc, err := p.getCDLocation()
	if err != nil {
		return nil, err
	}
	return p.parseCDR(loc)
}

func (p *CentralDirectoryParser) Lookup(fileName string) (*Entry, error) {
	directory, err := p.GetCentralDirectory()
	if err != nil {
		return nil, err
	}
	for _, f := range directory {
		if f.Path() == fileName {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileName)
}
