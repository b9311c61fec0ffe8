// Package cli implements the mops command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jvs-project/mops/pkg/color"
	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/logging"
	"github.com/jvs-project/mops/pkg/model"
	"github.com/jvs-project/mops/pkg/mops"
)

var (
	jsonOutput bool
	dataDir    string
	noColor    bool
	logLevel   string
	rootCmd    = &cobra.Command{
		Use:   "mops",
		Short: "mops - client workspace store",
		Long: `mops keeps one workspace document per client together with a bounded
history of snapshots, and moves workspaces between stores as checksummed
export bundles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "C", "", "data directory (default: search upward from the current directory)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
}

// outputJSON prints v as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "mops: "
	if color.Enabled() {
		prefix = color.Error("mops:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}

func workDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot get current directory: %w", err)
	}
	return cwd, nil
}

// openClient opens the data directory named by --data-dir or found above
// the current directory.
func openClient() (*mops.Client, error) {
	dir, err := workDir()
	if err != nil {
		return nil, err
	}
	var opts mops.Options
	if logLevel != "" {
		opts.Logger = logging.New(os.Stderr, logging.Options{
			Level:   logging.Level(logLevel),
			Format:  logging.FormatText,
			NoColor: noColor,
		})
	}
	c, err := mops.Open(dir, opts)
	if err != nil {
		if errors.Is(err, errclass.ErrNotFound) {
			return nil, errors.New(formatNotInDataDirError())
		}
		return nil, err
	}
	return c, nil
}

// withClient opens the store, runs fn and closes the store, draining
// any queued saves.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *mops.Client) error) (err error) {
	c, err := openClient()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.Close())
	}()
	return fn(cmd.Context(), c)
}

// readInput reads a file, or stdin when path is "" or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func clientArg(args []string) model.ClientID {
	return model.ClientID(args[0])
}
