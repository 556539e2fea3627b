package cmd

import (
	"io"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:     "cat",
	Short:   "Extract a specific file from the remote archive to stdout",
	Example: "zipmeta cat s3://example-bucket/path/to/archive.zip images/file.png > image.png",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		zip, closeArchive, err := openArchive(cmd.Context(), args[0])
		if err != nil {
			die("%v", err)
		}
		defer closeArchive()
		reader, err := zip.Read(args[1])
		if err != nil {
			die("could not open zip file stream: %v", err)
		}
		defer func() { _ = reader.Close() }()
		_, err = io.Copy(cmd.OutOrStdout(), reader)
		if err != nil {
			die("could not download file: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}
