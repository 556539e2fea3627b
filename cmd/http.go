package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipmeta/pkg/remote"
	"github.com/ozkatz/zipmeta/pkg/zipfile"
)

// archiveHandler serves single archive members: the request path names the archive
// relative to remotePath and the filename query parameter names the member.
// Entry metadata is exposed through the usual HTTP headers, with timestamps decoded
// in loc.
func archiveHandler(remotePath string, loc *time.Location) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		internalPath := r.URL.Query().Get("filename")
		slog.Debug("HTTP Handler", "objectPath", r.URL.Path, "internalPath", internalPath)
		if internalPath == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		obj, err := remote.Object(remotePath + r.URL.Path)
		if errors.Is(err, remote.ErrDoesNotExist) {
			w.WriteHeader(http.StatusNotFound)
			return
		} else if err != nil {
			slog.Warn("could not open zip file", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		defer release(obj)()
		zip := zipfile.NewCentralDirectoryParser(zipfile.NewStorageAdapter(r.Context(), obj))
		e, err := zip.Lookup(internalPath)
		if errors.Is(err, remote.ErrDoesNotExist) || errors.Is(err, zipfile.ErrFileNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		} else if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			slog.Warn("Error reading zip file from upstream", "error", err)
			return
		}
		if e.IsDir() {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			for _, c := range e.Children() {
				_, _ = fmt.Fprintln(w, c)
			}
			return
		}
		setEntryHeaders(w.Header(), e, loc)
		if r.Method == http.MethodHead {
			return
		}
		reader, err := zip.Open(e)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			slog.Warn("Error opening zip file entry", "path", e.Path(), "error", err)
			return
		}
		defer func() { _ = reader.Close() }()
		if _, err := io.Copy(w, reader); err != nil {
			slog.Warn("Error streaming zip file entry", "path", e.Path(), "error", err)
		}
	})
}

func setEntryHeaders(h http.Header, e *zipfile.Entry, loc *time.Location) {
	h.Set("Content-Type", "application/octet-stream")
	if size, ok := e.Size64(); ok {
		h.Set("Content-Length", strconv.FormatUint(size, 10))
	}
	if crc, ok := e.CRC32(); ok {
		h.Set("ETag", fmt.Sprintf("\"%08x\"", crc))
	}
	if millis := e.TimestampMillisIn(loc); millis != zipfile.Unset {
		h.Set("Last-Modified", time.UnixMilli(millis).UTC().Format(http.TimeFormat))
	}
	if e.Comment() != "" {
		h.Set("X-Zip-Comment", e.Comment())
	}
}

var httpCmd = &cobra.Command{
	Use:     "http",
	Short:   "Run HTTP proxy server mode",
	Example: "zipmeta http s3://example-bucket/path",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		remotePath := strings.TrimSuffix(args[0], "/")
		bindAddress, err := cmd.Flags().GetString("listen")
		if err != nil {
			die("Could not parse command flag listen: %v\n", err)
		}
		loc := timeZone(cmd)

		listener, err := net.Listen("tcp", bindAddress)
		if err != nil {
			die("Failed to bind port: %v\n", err)
		}
		fmt.Printf("HTTP server listening on %s\n", listener.Addr().String())
		err = http.Serve(listener, archiveHandler(remotePath, loc))
		if err != nil {
			slog.Error("Error running HTTP server", "error", err)
		}
	},
}

func init() {
	httpCmd.Flags().StringP("listen", "l", "127.0.0.1:0", "address to listen on")
	rootCmd.AddCommand(httpCmd)
}
