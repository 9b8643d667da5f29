package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nzaccagnino/notesync/internal/api"
	"github.com/nzaccagnino/notesync/internal/config"
	"github.com/nzaccagnino/notesync/internal/i18n"
	"github.com/nzaccagnino/notesync/internal/model"
)

var (
	configPath     string
	collectionFlag string
	cfg            *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "Markdown notes kept in sync across clients",
	Long: `notesync edits markdown notes stored on a notesync server.
Changes made by other clients are pushed in live; a periodic poll catches
anything the push channel missed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !config.ConfigExists(configPath) {
			if err := config.Default().Save(configPath); err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Created %s\n", configPath)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if collectionFlag != "" {
			if err := cfg.Select(collectionFlag); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return runWatch(cmd.Context(), os.Stdout)
		}
		return runTUI(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&collectionFlag, "collection", "", "collection title to open instead of the selected one")
}

// newLogger writes to the configured log file, or to w when there is none.
func newLogger(w io.Writer) (*log.Logger, func(), error) {
	closeFn := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	}

	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger, closeFn, nil
}

func newStore(c *config.Config, col model.Collection, logger *log.Logger) (*api.Store, error) {
	store, err := api.NewStore(api.StoreOptions{
		Collection:   col,
		PollInterval: c.PollInterval,
		Channel:      c.ChannelSettings(),
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", col.Title, err)
	}
	return store, nil
}

func translator() i18n.Translator {
	return i18n.New(cfg.Language)
}
