package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nzaccagnino/notesync/internal/api"
	"github.com/nzaccagnino/notesync/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print note changes as they happen",
	Long: `Follow the selected collection without the terminal UI. Every pushed
update or deletion, poll result and connection change is printed as one line.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, out io.Writer) error {
	logger, closeLog, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	col := cfg.Selected()
	store, err := newStore(cfg, col, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	tr := translator()
	lines := make(chan string, 64)
	unsubscribe := store.Subscribe(func(c api.Change) {
		select {
		case lines <- ui.FormatChange(c, tr, time.Now()):
		default:
			logger.Warn("watch output behind, dropping event", "kind", c.Kind)
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() {
		done <- store.Run(ctx)
	}()

	fmt.Fprintf(out, "%s %s\n", col.Title, col.Server)
	for {
		select {
		case line := <-lines:
			fmt.Fprintln(out, line)
		case <-done:
			return nil
		}
	}
}
