package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ozkatz/zipmeta/pkg/remote"
	"github.com/ozkatz/zipmeta/pkg/zipfile"
)

const loggingEnvVar = "ZIPMETA_LOGGING"

func expandStdin(arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	expanded := string(data)
	return strings.Trim(expanded, "\n \t"), nil
}

func die(fstring string, args ...interface{}) {
	if !strings.HasSuffix(fstring, "\n") {
		fstring += "\n"
	}
	_, _ = os.Stderr.WriteString(fmt.Sprintf(fstring, args...))
	os.Exit(1)
}

func setupLogging() {
	level := slog.LevelError
	if os.Getenv(loggingEnvVar) == "DEBUG" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})))
}

// timeZone resolves the --tz flag. Zip timestamps are local wall clock time,
// so the default is the local zone of this process.
func timeZone(cmd *cobra.Command) *time.Location {
	name, err := cmd.Flags().GetString("tz")
	if err != nil {
		die("could not parse command flag tz: %v", err)
	}
	loc, err := loadLocation(name)
	if err != nil {
		die("unknown time zone '%s': %v", name, err)
	}
	return loc
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// openArchive returns a parser over remoteFile and a func that releases the
// underlying fetcher once the caller is done reading.
func openArchive(ctx context.Context, remoteFile string) (*zipfile.CentralDirectoryParser, func(), error) {
	zipfilePath, err := expandStdin(remoteFile)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read stdin: %w", err)
	}
	obj, err := remote.Object(zipfilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open remote zip file: %w", err)
	}
	return zipfile.NewCentralDirectoryParser(zipfile.NewStorageAdapter(ctx, obj)), release(obj), nil
}

// release closes obj if it holds a resource such as an open file.
func release(obj remote.Fetcher) func() {
	return func() {
		closer, ok := obj.(io.Closer)
		if !ok {
			return
		}
		if err := closer.Close(); err != nil {
			slog.Debug("could not close remote object", "error", err)
		}
	}
}

func getEntries(ctx context.Context, remoteFile string) ([]*zipfile.Entry, error) {
	zip, closeArchive, err := openArchive(ctx, remoteFile)
	if err != nil {
		return nil, err
	}
	defer closeArchive()
	files, err := zip.GetCentralDirectory()
	if err != nil {
		return nil, fmt.Errorf("could not read zip file contents: %w", err)
	}
	return files, nil
}

func mustGetEntries(ctx context.Context, remoteFile string) []*zipfile.Entry {
	files, err := getEntries(ctx, remoteFile)
	if err != nil {
		die("%v", err)
	}
	return files
}

func formatSize(n int64) string {
	if n == zipfile.Unset {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

func formatModified(e *zipfile.Entry, loc *time.Location) string {
	modified, ok := e.Modified(loc)
	if !ok {
		return "-"
	}
	return modified.Format(time.RFC822Z)
}

func byteCountIEC(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB",
		float64(b)/float64(div), "KMGTPE"[exp])
}
