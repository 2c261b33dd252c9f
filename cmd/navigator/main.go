// Package main provides the Navigator terminal chat client: an
// encrypted journaling assistant that keeps every conversation's
// why/what/how crystallized alongside its message history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pcl-labs/navigator/pkg/config"
	"github.com/pcl-labs/navigator/pkg/executor/cli"
	"github.com/pcl-labs/navigator/pkg/prompts"
	"github.com/pcl-labs/navigator/pkg/session"
	"github.com/pcl-labs/navigator/pkg/store"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	UserID      string
	Passphrase  string
	APIKey      string
	BaseURL     string
	Model       string
	ConfigFile  string
	DataDir     string
	PromptsDir  string
	Language    string
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("Navigator v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cliConfig); err != nil && !errors.Is(err, context.Canceled) {
		cancel()
		log.Printf("Navigator failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.UserID, "user", os.Getenv("NAVIGATOR_USER"), "User id (owner of the encrypted stores)")
	flag.StringVar(&cliConfig.Passphrase, "passphrase", os.Getenv("NAVIGATOR_PASSPHRASE"), "Owner passphrase for key derivation")
	flag.StringVar(&cliConfig.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY)")
	flag.StringVar(&cliConfig.BaseURL, "base-url", "", "OpenAI API base URL")
	flag.StringVar(&cliConfig.Model, "model", "", "Chat model to use")
	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to settings file (YAML)")
	flag.StringVar(&cliConfig.DataDir, "data-dir", "", "Directory for the encrypted store")
	flag.StringVar(&cliConfig.PromptsDir, "prompts-dir", "", "Directory holding prompt template overrides")
	flag.StringVar(&cliConfig.Language, "language", "", "Prompt language (e.g. en, ja)")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Navigator - Encrypted Journaling Chat Assistant\n\n")
		fmt.Fprintf(os.Stderr, "Usage: navigator [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start a chat session\n")
		fmt.Fprintf(os.Stderr, "  navigator -user alice@example.com -passphrase 'correct horse'\n\n")
		fmt.Fprintf(os.Stderr, "  # Use a local model gateway\n")
		fmt.Fprintf(os.Stderr, "  navigator -user alice -base-url http://localhost:8080/v1 -model llama3\n\n")
	}

	flag.Parse()
	return cliConfig
}

func run(ctx context.Context, cliConfig *CLIConfig) error {
	if cliConfig.UserID == "" {
		return fmt.Errorf("user id is required (set -user or NAVIGATOR_USER)")
	}
	if cliConfig.Passphrase == "" {
		return fmt.Errorf("passphrase is required (set -passphrase or NAVIGATOR_PASSPHRASE)")
	}

	cfg, err := config.Load(cliConfig.UserID, config.Flags{
		Model:        cliConfig.Model,
		BaseURL:      cliConfig.BaseURL,
		APIKey:       cliConfig.APIKey,
		DataDir:      cliConfig.DataDir,
		PromptsDir:   cliConfig.PromptsDir,
		Language:     cliConfig.Language,
		SettingsPath: cliConfig.ConfigFile,
	})
	if err != nil {
		return err
	}

	provider, err := cfg.BuildProvider()
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer s.Close()

	sctx, err := session.Login(cliConfig.UserID, cliConfig.Passphrase, cfg.Language)
	if err != nil {
		return err
	}
	defer sctx.Close()

	fmt.Printf("Navigator v%s - logged in as %s (model %s)\n", version, sctx.UserID, provider.GetModel())

	conv := session.NewConversation(sctx, s, provider, prompts.NewLibrary(cfg.PromptsDir))
	executor := cli.NewExecutor(conv, sctx, s, cfg)
	return executor.Run(ctx)
}
