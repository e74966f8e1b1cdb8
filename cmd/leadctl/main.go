// leadctl drives the lead intelligence chat and inference flows from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/leadintel/internal/config"
	"github.com/ashureev/leadintel/internal/credential"
	"github.com/ashureev/leadintel/internal/provider"
	"github.com/ashureev/leadintel/internal/store"
)

var (
	deviceFlag    string
	ephemeralFlag bool
	verboseFlag   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Chat with the lead assistant and run lead analysis models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&deviceFlag, "device", "cli", "Owner id under which credentials are stored")
	root.PersistentFlags().BoolVar(&ephemeralFlag, "ephemeral", false, "Keep credentials in memory only")
	root.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newCredentialCommand(),
		newChatCommand(),
		newInferCommand(),
		newTasksCommand(),
	)
	return root
}

// app holds the dependencies shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	creds     *credential.Store
	chat      *provider.ChatClient
	inference *provider.InferenceClient
	closer    io.Closer
}

func newApp() (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a := &app{cfg: cfg, logger: logger}

	var adapter credential.Adapter = credential.NewMemoryAdapter()
	if !ephemeralFlag {
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open credential store: %w", err)
		}
		adapter = repo
		a.closer = repo
	}
	a.creds = credential.NewVault(adapter, logger).For(deviceFlag)

	a.chat = provider.NewChatClient(provider.ChatConfig{
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
		Timeout:     cfg.Chat.Timeout,
	}, nil, logger)
	a.inference = provider.NewInferenceClient(provider.InferenceConfig{
		BaseURL: cfg.Inference.BaseURL,
		Timeout: cfg.Inference.Timeout,
	}, nil, logger)

	return a, nil
}

func (a *app) Close() {
	if a.closer == nil {
		return
	}
	if err := a.closer.Close(); err != nil {
		a.logger.Warn("failed to close credential store", "error", err)
	}
}
