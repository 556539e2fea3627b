package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkatz/zipmeta/pkg/zipfile"
)

var archiveModified = time.Date(2022, time.July, 4, 12, 30, 10, 0, time.UTC)

func writeArchive(t *testing.T, dir, name string, files map[string]string, order []string) string {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, p := range order {
		hdr := &zip.FileHeader{Name: p, Method: zip.Deflate}
		if p == "top.txt" {
			hdr.Comment = "hello"
		}
		hdr.ModifiedDate, hdr.ModifiedTime = zipfile.EncodeDosDateTime(archiveModified)
		fw, err := w.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = io.WriteString(fw, files[p])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

var archiveOrder = []string{"docs/", "docs/readme.md", "docs/img/", "docs/img/logo.png", "orphan/child.txt", "top.txt"}

var archiveFiles = map[string]string{
	"docs/readme.md":    "read me",
	"docs/img/logo.png": "png",
	"orphan/child.txt":  "orphan",
	"top.txt":           "top level file\n",
}

func sampleArchive(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	return dir, writeArchive(t, dir, "archive.zip", archiveFiles, archiveOrder)
}

func TestListEntries(t *testing.T) {
	_, p := sampleArchive(t)
	files, err := getEntries(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, files, len(archiveOrder))

	out := &bytes.Buffer{}
	listEntries(out, files, time.UTC)
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, len(archiveOrder))
	assert.True(t, strings.HasPrefix(lines[0], "d\t"))
	assert.True(t, strings.HasSuffix(lines[0], "\tdocs/"))
	assert.Contains(t, lines[5], archiveModified.Format(time.RFC822Z))
	assert.Contains(t, lines[5], "15")
	assert.True(t, strings.HasSuffix(lines[5], "\ttop.txt"))
}

func TestListEntries_Unset(t *testing.T) {
	e, err := zipfile.NewBuilder("unknown.bin").Build()
	require.NoError(t, err)
	out := &bytes.Buffer{}
	listEntries(out, []*zipfile.Entry{e}, time.UTC)
	fields := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\t")
	require.Len(t, fields, 5)
	assert.Equal(t, "-", strings.TrimSpace(fields[1]))
	assert.Equal(t, "-", strings.TrimSpace(fields[2]))
	assert.Equal(t, "-", fields[3])
}

func TestRenderTree(t *testing.T) {
	_, p := sampleArchive(t)
	files, err := getEntries(context.Background(), p)
	require.NoError(t, err)
	out := renderTree("archive.zip", files)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, len(archiveOrder)+1)
	assert.Equal(t, "archive.zip", lines[0])
	assert.Contains(t, lines[1], "docs/")
	assert.Contains(t, lines[2], "readme.md")
	assert.Contains(t, lines[3], "img/")
	assert.Contains(t, lines[4], "logo.png")
	assert.Contains(t, lines[5], "orphan/child.txt")
	assert.Contains(t, lines[6], "top.txt")
	assert.NotContains(t, out, "docs/readme.md")
}

func TestSummarizeAll(t *testing.T) {
	dir, first := sampleArchive(t)
	second := writeArchive(t, dir, "second.zip", map[string]string{"a.txt": "aaaa"}, []string{"a.txt"})

	summaries, err := summarizeAll(context.Background(), []string{first, second})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, first, summaries[0].URI)
	assert.Equal(t, uint64(4), summaries[0].Files)
	assert.Equal(t, uint64(2), summaries[0].Directories)
	var total uint64
	for _, body := range archiveFiles {
		total += uint64(len(body))
	}
	assert.Equal(t, total, summaries[0].TotalUncompressed)
	assert.Equal(t, uint64(4), summaries[0].Methods[zipfile.MethodDeflated])

	assert.Equal(t, second, summaries[1].URI)
	assert.Equal(t, uint64(1), summaries[1].Files)
	assert.Equal(t, uint64(4), summaries[1].TotalUncompressed)

	out := &bytes.Buffer{}
	summaries[1].print(out)
	assert.Contains(t, out.String(), "files: 1\n")
	assert.Contains(t, out.String(), "files (deflated): 1\n")

	_, err = summarizeAll(context.Background(), []string{first, filepath.Join(dir, "missing.zip")})
	assert.Error(t, err)
}

func TestPrintStat(t *testing.T) {
	_, p := sampleArchive(t)
	parser, closeArchive, err := openArchive(context.Background(), p)
	require.NoError(t, err)
	t.Cleanup(closeArchive)
	e, err := parser.Lookup("top.txt")
	require.NoError(t, err)

	out := &bytes.Buffer{}
	printStat(out, e, time.UTC)
	assert.Contains(t, out.String(), "path: top.txt\n")
	assert.Contains(t, out.String(), "comment: \"hello\"\n")
	assert.Contains(t, out.String(), fmt.Sprintf("timestamp (ms): %d\n", archiveModified.UnixMilli()))
	assert.Contains(t, out.String(), fmt.Sprintf("crc32: %d\n", crc32.ChecksumIEEE([]byte("top level file\n"))))

	dir, err := parser.Lookup("docs/")
	require.NoError(t, err)
	out.Reset()
	printStat(out, dir, time.UTC)
	assert.Contains(t, out.String(), "child: docs/readme.md\n")
	assert.Contains(t, out.String(), "child: docs/img/\n")
}

func TestOpenArchive_Release(t *testing.T) {
	_, p := sampleArchive(t)
	parser, closeArchive, err := openArchive(context.Background(), p)
	require.NoError(t, err)
	_, err = parser.GetCentralDirectory()
	require.NoError(t, err)

	closeArchive()
	_, err = parser.GetCentralDirectory()
	assert.ErrorIs(t, err, os.ErrClosed)
}

type closingFetcher struct {
	closed int
}

func (c *closingFetcher) Fetch(context.Context, *int64, *int64) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (c *closingFetcher) Close() error {
	c.closed++
	return nil
}

type plainFetcher struct{}

func (plainFetcher) Fetch(context.Context, *int64, *int64) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func TestRelease(t *testing.T) {
	f := &closingFetcher{}
	release(f)()
	assert.Equal(t, 1, f.closed)

	assert.NotPanics(t, release(plainFetcher{}))
}

func TestArchiveHandler(t *testing.T) {
	dir, _ := sampleArchive(t)
	loc := time.FixedZone("UTC+2", 2*60*60)
	srv := httptest.NewServer(archiveHandler(dir, loc))
	t.Cleanup(srv.Close)

	get := func(t *testing.T, method, target string) (*http.Response, string) {
		t.Helper()
		req, err := http.NewRequest(method, srv.URL+target, nil)
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	t.Run("file", func(t *testing.T) {
		resp, body := get(t, http.MethodGet, "/archive.zip?filename=top.txt")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "top level file\n", body)
		assert.Equal(t, fmt.Sprintf("\"%08x\"", crc32.ChecksumIEEE([]byte(body))), resp.Header.Get("ETag"))
		assert.Equal(t, "hello", resp.Header.Get("X-Zip-Comment"))
		// the archive stores wall clock time, read back in the server's zone
		wall := archiveModified
		modified := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc)
		assert.Equal(t, modified.UTC().Format(http.TimeFormat), resp.Header.Get("Last-Modified"))
		assert.Equal(t, "Mon, 04 Jul 2022 10:30:10 GMT", resp.Header.Get("Last-Modified"))
	})
	t.Run("head", func(t *testing.T) {
		resp, body := get(t, http.MethodHead, "/archive.zip?filename=top.txt")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, body)
		assert.Equal(t, int64(len("top level file\n")), resp.ContentLength)
	})
	t.Run("directory", func(t *testing.T) {
		resp, body := get(t, http.MethodGet, "/archive.zip?filename=docs/")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "docs/readme.md\ndocs/img/\n", body)
	})
	t.Run("missing entry", func(t *testing.T) {
		resp, _ := get(t, http.MethodGet, "/archive.zip?filename=nope.txt")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
	t.Run("missing archive", func(t *testing.T) {
		resp, _ := get(t, http.MethodGet, "/nope.zip?filename=top.txt")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
	t.Run("no filename", func(t *testing.T) {
		resp, _ := get(t, http.MethodGet, "/archive.zip")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("method not allowed", func(t *testing.T) {
		resp, _ := get(t, http.MethodPost, "/archive.zip?filename=top.txt")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestLoadLocation(t *testing.T) {
	loc, err := loadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = loadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = loadLocation("Not/AZone")
	assert.Error(t, err)
}

func TestByteCountIEC(t *testing.T) {
	assert.Equal(t, "512 B", byteCountIEC(512))
	assert.Equal(t, "1.5 KiB", byteCountIEC(1536))
	assert.Equal(t, "2.0 MiB", byteCountIEC(2*1024*1024))
}
