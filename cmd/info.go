package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ozkatz/zipmeta/pkg/zipfile"
)

const maxConcurrentArchives = 8

type archiveSummary struct {
	URI               string
	Files             uint64
	Directories       uint64
	TotalCompressed   uint64
	TotalUncompressed uint64
	Methods           map[zipfile.CompressionMethod]uint64
}

func summarize(uri string, files []*zipfile.Entry) *archiveSummary {
	s := &archiveSummary{URI: uri, Methods: make(map[zipfile.CompressionMethod]uint64)}
	for _, f := range files {
		if f.IsDir() {
			s.Directories++
			continue
		}
		s.Files++
		s.Methods[f.Method()]++
		if n, ok := f.CompressedSize64(); ok {
			s.TotalCompressed += n
		}
		if n, ok := f.Size64(); ok {
			s.TotalUncompressed += n
		}
	}
	return s
}

// summarizeAll reads the central directories of all archives concurrently.
// Results are returned in the order of uris.
func summarizeAll(ctx context.Context, uris []string) ([]*archiveSummary, error) {
	summaries := make([]*archiveSummary, len(uris))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentArchives)
	for i, uri := range uris {
		i, uri := i, uri
		g.Go(func() error {
			files, err := getEntries(ctx, uri)
			if err != nil {
				return fmt.Errorf("%s: %w", uri, err)
			}
			summaries[i] = summarize(uri, files)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *archiveSummary) print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "zip file: %s\n", s.URI)
	_, _ = fmt.Fprintf(w, "files: %d\n", s.Files)
	_, _ = fmt.Fprintf(w, "directories: %d\n", s.Directories)
	for _, m := range []zipfile.CompressionMethod{zipfile.MethodStored, zipfile.MethodDeflated} {
		_, _ = fmt.Fprintf(w, "files (%s): %d\n", m, s.Methods[m])
	}
	_, _ = fmt.Fprintf(w, "total bytes (compressed): %d\n", s.TotalCompressed)
	_, _ = fmt.Fprintf(w, "total bytes (uncompressed): %d\n", s.TotalUncompressed)
	_, _ = fmt.Fprintf(w, "total bytes (compressed, human readable): %s\n", byteCountIEC(s.TotalCompressed))
	_, _ = fmt.Fprintf(w, "total bytes (uncompressed, human readable): %s\n", byteCountIEC(s.TotalUncompressed))
}

var infoCmd = &cobra.Command{
	Use:     "info",
	Short:   "Display aggregate information about one or more archives (number of files, total size, etc)",
	Example: "zipmeta info s3://example-bucket/path/to/archive.zip https://example.com/other.zip",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		summaries, err := summarizeAll(cmd.Context(), args)
		if err != nil {
			die("%v", err)
		}
		for i, s := range summaries {
			if i > 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
			}
			s.print(cmd.OutOrStdout())
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
