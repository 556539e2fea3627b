package zipfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/flate"
)

const (
	localHeaderSignature = 0x04034b50
	localHeaderSize      = 30
)

var ErrUnsupportedMethod = errors.New("unsupported compression method")

type localHeader struct {
	Signature                uint32
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
}

type entryReader struct {
	io.Reader
	closers []io.Closer
}

func (r *entryReader) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Open returns the uncompressed payload of e.
func (p *CentralDirectoryParser) Open(e *Entry) (io.ReadCloser, error) {
	off, hasOffset := e.LocalHeaderOffset64()
	compressedSize, hasSize := e.CompressedSize64()
	if !hasOffset || !hasSize {
		return nil, fmt.Errorf("%w: '%s' has no location", ErrInvalidEntry, e.Path())
	}
	switch e.Method() {
	case MethodStored, MethodDeflated:
	default:
		return nil, fmt.Errorf("%w: %s for '%s'", ErrUnsupportedMethod, e.Method(), e.Path())
	}

	h, err := p.readLocalHeader(off)
	if err != nil {
		return nil, fmt.Errorf("%w: bad local header for '%s': %v", ErrInvalidZip, e.Path(), err)
	}

	// the local extra field may differ from the one in the central directory
	bodyStartsAt := off + localHeaderSize + uint64(h.FileNameLength) + uint64(h.ExtraFieldLength)
	slog.Debug("open entry", "path", e.Path(), "method", e.Method().String(),
		"offset", off, "body_offset", bodyStartsAt, "compressed_size", compressedSize)

	var dataReader io.ReadCloser = io.NopCloser(bytes.NewReader(nil))
	if compressedSize > 0 {
		dataReader, err = p.reader.Fetch(offset(bodyStartsAt), offset(bodyStartsAt+compressedSize-1))
		if err != nil {
			return nil, err
		}
	}
	body := &exactReader{r: dataReader, remaining: int64(compressedSize)}

	if e.Method() == MethodDeflated {
		inflater := flate.NewReader(body)
		return &entryReader{Reader: inflater, closers: []io.Closer{inflater, dataReader}}, nil
	}
	return &entryReader{Reader: body, closers: []io.Closer{dataReader}}, nil
}

func (p *CentralDirectoryParser) readLocalHeader(off uint64) (*localHeader, error) {
	r, err := p.reader.Fetch(offset(off), offset(off+localHeaderSize-1))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	h := &localHeader{}
	if err := binary.Read(r, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	if h.Signature != localHeaderSignature {
		return nil, fmt.Errorf("signature 0x%08x", h.Signature)
	}
	return h, nil
}

// exactReader reads exactly remaining bytes from r; running out early is an
// io.ErrUnexpectedEOF rather than a clean end of stream.
type exactReader struct {
	r         io.Reader
	remaining int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > e.remaining {
		p = p[:e.remaining]
	}
	n, err := e.r.Read(p)
	e.remaining -= int64(n)
	if err == io.EOF {
		if e.remaining > 0 {
			return n, io.ErrUnexpectedEOF
		}
		err = nil
	}
	return n, err
}

func (p *CentralDirectoryParser) Read(fileName string) (io.ReadCloser, error) {
	e, err := p.Lookup(fileName)
	if err != nil {
		return nil, err
	}
	return p.Open(e)
}
