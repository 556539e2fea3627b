package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipmeta/pkg/zipfile"
)

var statCmd = &cobra.Command{
	Use:     "stat",
	Short:   "Show the central directory record of a single file in the archive",
	Example: "zipmeta stat s3://example-bucket/path/to/archive.zip images/file.png",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		zip, closeArchive, err := openArchive(cmd.Context(), args[0])
		if err != nil {
			die("%v", err)
		}
		defer closeArchive()
		e, err := zip.Lookup(args[1])
		if err != nil {
			die("could not stat %s: %v", args[1], err)
		}
		printStat(cmd.OutOrStdout(), e, timeZone(cmd))
	},
}

func printStat(w io.Writer, e *zipfile.Entry, loc *time.Location) {
	_, _ = fmt.Fprintf(w, "path: %s\n", e.Path())
	_, _ = fmt.Fprintf(w, "directory: %t\n", e.IsDir())
	_, _ = fmt.Fprintf(w, "comment: %q\n", e.Comment())
	_, _ = fmt.Fprintf(w, "crc32: %d\n", e.CRC())
	_, _ = fmt.Fprintf(w, "compressed size: %d\n", e.CompressedSize())
	_, _ = fmt.Fprintf(w, "size: %d\n", e.Size())
	_, _ = fmt.Fprintf(w, "method: %d (%s)\n", int(e.Method()), e.Method())
	_, _ = fmt.Fprintf(w, "dos date: %d\n", e.ModDate())
	_, _ = fmt.Fprintf(w, "dos time: %d\n", e.Time())
	_, _ = fmt.Fprintf(w, "timestamp (ms): %d\n", e.TimestampMillisIn(loc))
	_, _ = fmt.Fprintf(w, "modified: %s\n", formatModified(e, loc))
	_, _ = fmt.Fprintf(w, "extra: %d bytes\n", len(e.Extra()))
	_, _ = fmt.Fprintf(w, "local header offset: %d\n", e.LocalHeaderOffset())
	for _, c := range e.Children() {
		_, _ = fmt.Fprintf(w, "child: %s\n", c)
	}
}

func init() {
	rootCmd.AddCommand(statCmd)
}
