package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	ZipMetaVersion = "0.0.1dev"
)

var rootCmd = &cobra.Command{
	Use:               "zipmeta",
	Short:             "Inspect the central directory of local and remote zip files (without downloading the entire file)",
	Version:           ZipMetaVersion,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, err = fmt.Fprintln(os.Stderr, err)
		if err != nil {
			return
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("tz", "",
		"time zone used to decode entry timestamps (IANA name, default: local time zone)")
}
