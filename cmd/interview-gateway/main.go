// ABOUTME: Entry point for interview-gateway, the interview orchestration core
// ABOUTME: serve speaks JSON lines on stdin/stdout; init writes a default config

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/interview-gateway/internal/config"
	"github.com/2389/interview-gateway/internal/events"
	"github.com/2389/interview-gateway/internal/logging"
	"github.com/2389/interview-gateway/internal/session"
	"github.com/2389/interview-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _     _                  _                                  _
 (_)_ _| |_ ___ _ ___ _(_)_____ __ _____ __ _ __ _| |_ _____ __ ____ _ _  _
 | | ' \  _/ -_) '_\ V / / -_) V  V /___/ _' / _' |  _/ -_) V  V / _' | || |
 |_|_||_\__\___|_|  \_/|_\___|\_/\_/    \__, \__,_|\__\___|\_/\_/\__,_|\_, |
                                        |___/                          |__/
`

// drainQuiet is how long serve waits for the session to go quiet after stdin closes.
const drainQuiet = 250 * time.Millisecond

// getConfigPath returns the path to the config file.
// Priority: INTERVIEW_CONFIG env var > XDG_CONFIG_HOME/interview-gateway/config.yaml > ~/.config/interview-gateway/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("INTERVIEW_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "interview-gateway", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: interview-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve      Run a session, reading commands from stdin")
		fmt.Println("  init       Write a default config file")
		fmt.Println("  version    Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Stdin, os.Stdout)
	case "init":
		err = runInit(getConfigPath(), os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEnv reads a .env file next to the config, if there is one.
func loadEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envPath, err)
	}
	return nil
}

func runServe(ctx context.Context, in io.Reader, out io.Writer) error {
	configPath := getConfigPath()

	// stdout carries the protocol; everything human-facing goes to stderr.
	cyan := color.New(color.FgCyan)
	cyan.Fprint(os.Stderr, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(os.Stderr, "    version: %s\n\n", version)

	if err := loadEnv(configPath); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config (run `interview-gateway init` to create one): %w", err)
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}, os.Stderr)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "Config:    %s\n", configPath)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "Database:  %s\n", cfg.Database.Path)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "Phases:    %d (starting at %s)\n\n", len(cfg.Phases), cfg.Phases[0].Name)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	opts := session.OptionsFromConfig(cfg)
	opts.Logger = logger
	sess, err := session.New(opts, db)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer sess.Close()

	logger.Info("starting interview-gateway", "config", configPath, "tools", len(sess.Tools()))
	return serve(ctx, sess, in, out, logger)
}

// serve runs sess until ctx is cancelled or in is exhausted and the session has gone quiet.
func serve(ctx context.Context, sess Session, in io.Reader, out io.Writer, logger *slog.Logger) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(runCtx) }()

	if err := sess.WaitReady(runCtx); err != nil {
		return fmt.Errorf("waiting for session: %w", err)
	}

	downstream := sess.Subscribe(runCtx, events.TopicLLM, events.TopicTool, events.TopicPhase, events.TopicProcessing)
	activity := make(chan struct{}, 1)
	writerDone := make(chan error, 1)
	go func() { writerDone <- writeDownstream(downstream, out, activity) }()

	readErr := make(chan error, 1)
	go func() { readErr <- readCommands(runCtx, in, sess, logger) }()

	select {
	case <-ctx.Done():
	case err := <-runErr:
		return err
	case err := <-readErr:
		if err != nil {
			return err
		}
		waitQuiet(ctx, activity, drainQuiet)
	}

	stop()
	err := <-runErr
	<-writerDone
	return err
}

// waitQuiet returns once no activity has been signalled for quiet.
func waitQuiet(ctx context.Context, activity <-chan struct{}, quiet time.Duration) {
	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-activity:
			timer.Reset(quiet)
		case <-timer.C:
			return
		}
	}
}

// runInit writes the default config to path. --force overwrites an existing file.
func runInit(path string, args []string) error {
	force := false
	for _, arg := range args {
		switch arg {
		case "--force", "-f":
			force = true
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	data, err := config.Default().EncodeYAML()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Wrote %s\n", path)
	return nil
}
