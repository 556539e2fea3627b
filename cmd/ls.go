package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipmeta/pkg/zipfile"
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Short:   "List the files that exist in the remote zip archive",
	Example: "zipmeta ls s3://example-bucket/path/to/archive.zip",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		files := mustGetEntries(cmd.Context(), args[0])
		listEntries(cmd.OutOrStdout(), files, timeZone(cmd))
	},
}

func listEntries(w io.Writer, files []*zipfile.Entry, loc *time.Location) {
	for _, f := range files {
		kind := "f"
		if f.IsDir() {
			kind = "d"
		}
		_, _ = fmt.Fprintf(w, "%s\t%-12s\t%-12s\t%s\t%s\n",
			kind, formatSize(f.CompressedSize()), formatSize(f.Size()), formatModified(f, loc), f.Path())
	}
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
