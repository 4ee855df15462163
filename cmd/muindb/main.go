// Command muindb classifies the genres of charting songs and artists.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "muindb",
		Short: "Multi-source genre classification for chart data",
		Long: `muindb imports weekly chart rows, asks several music data sources
what genre each artist plays, and stores a weighted primary genre,
subgenres and producer credits for every song.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $MUINDB_CONFIG_PATH)")

	root.AddCommand(
		newImportCmd(opts),
		newClassifyCmd(opts),
		newClassifySongCmd(opts),
		newClassifyCreatorCmd(opts),
		newBatchCmd(opts),
		newCreditsCmd(opts),
		newProducersCmd(opts),
		newSubgenresCmd(opts),
		newTrainCmd(opts),
		newAnalyzeCmd(opts),
		newKeysCmd(opts),
		newBackupCmd(opts),
		newMaintainCmd(opts),
	)
	return root
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(*app) error) error {
	a, err := newApp(cmd.Context(), opts.configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
