package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"optchain/internal/app"
	"optchain/internal/config"
	"optchain/internal/infrastructure"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (searched in the usual locations when empty)")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the environment is read")
	once := flag.Bool("once", false, "run a single collection round, print the reports and exit")
	flag.Parse()

	if err := run(*configPath, *envFile, *once); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, envFile string, once bool) error {
	// A missing dotenv file is normal outside development.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to load env file", slog.String("path", envFile), slog.String("error", err.Error()))
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = infrastructure.CloseLogFile() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(cfg, logger, nil)
	if err != nil {
		logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		return err
	}

	if once {
		reports, err := application.RunOnce(ctx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(reports); encErr != nil {
			logger.Error("Failed to print reports", slog.String("error", encErr.Error()))
		}
		return err
	}

	return application.Run(ctx)
}
