// ABOUTME: Entry point for the rentabot daemon
// ABOUTME: Wires config, store, transport and rental service together

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/ximpify/rentabot/internal/bot"
	"github.com/ximpify/rentabot/internal/config"
	"github.com/ximpify/rentabot/internal/notify"
	"github.com/ximpify/rentabot/internal/protocol"
	"github.com/ximpify/rentabot/internal/rental"
	"github.com/ximpify/rentabot/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                 _        _           _
 _ __ ___ _ __ | |_ __ _| |__   ___ | |_
| '__/ _ \ '_ \| __/ _' | '_ \ / _ \| __|
| | |  __/ | | | || (_| | |_) | (_) | |_
|_|  \___|_| |_|\__\__,_|_.__/ \___/ \__|
`

// getConfigPath returns the path to the daemon config file.
// Priority: RENTABOT_CONFIG env var > XDG_CONFIG_HOME/rentabot/rentabotd.yaml > ~/.config/rentabot/rentabotd.yaml
func getConfigPath() string {
	if envPath := os.Getenv("RENTABOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "rentabotd.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "rentabot", "rentabotd.yaml")
}

// getDataPath returns the path to the rentabot data directory.
// Priority: XDG_DATA_HOME/rentabot > ~/.local/share/rentabot
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "rentabot")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: rentabotd <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the bot rental daemon")
		fmt.Println("  init      Create a new config file interactively")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
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

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Server:    %s\n", cfg.Server.Addr())
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)

	if cfg.Notify.WebhookURL != "" {
		green.Print("    ▶ ")
		fmt.Printf("Webhook:   ")
		cyan.Println(cfg.Notify.WebhookURL)
	}
	if cfg.Auth.Mode != "" && cfg.Auth.Mode != "disabled" {
		yellow.Print("    ▶ ")
		fmt.Printf("Auth:      %s\n", cfg.Auth.Mode)
	}

	fmt.Println()

	logger.Info("starting rentabotd",
		"config", configPath,
		"server", cfg.Server.Addr(),
		"database", cfg.Database.Path,
	)

	// Open the rental store
	st, err := store.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	// Notification and dispatch sinks
	var notifier notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, logger)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	var dispatcher notify.CommandDispatcher
	if cfg.Notify.DispatchURL != "" {
		dispatcher = notify.NewWebhookDispatcher(cfg.Notify.DispatchURL, logger)
	} else {
		dispatcher = notify.NewLogDispatcher(logger)
	}

	transport := protocol.NewWebsocketTransport(cfg.Server.Addr(), logger)

	registry := bot.NewRegistry(bot.Deps{
		Transport:  transport,
		Notifier:   notifier,
		Dispatcher: dispatcher,
		Behavior:   cfg.Behavior,
		Auth:       cfg.Auth,
		Logger:     logger,
		Persist: func(b *bot.Bot) {
			if err := st.Upsert(context.Background(), b.Record()); err != nil {
				logger.Error("persisting bot state", "bot", b.Name(), "error", err)
			}
		},
	}, cfg.Naming)

	service := rental.NewService(cfg, registry, st, notifier, logger)

	// Reconcile persisted rentals and bring active bots back online
	if err := service.Load(ctx); err != nil {
		return fmt.Errorf("loading rentals: %w", err)
	}

	sweeper := rental.NewSweeper(service)
	go sweeper.Run(ctx)
	go registry.RunIdleLoop(ctx)

	logger.Info("rentabotd ready", "bots", registry.Len())

	<-ctx.Done()

	logger.Info("shutting down")
	registry.DisconnectAll()
	service.SaveAll(context.Background())

	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("rentabotd configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "rentals.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	host := prompt(reader, "Game server host", "localhost")
	port := prompt(reader, "Game server port", "25565")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Auth
	fmt.Println("\n--- Auth Configuration ---")
	authMode := prompt(reader, "Auth mode (disabled/pre-registered/auto-register)", "disabled")
	var authPassword string
	if authMode != "disabled" {
		authPassword = prompt(reader, "Shared bot password", "")
	}

	// Notifications
	fmt.Println("\n--- Notification Configuration ---")
	webhookURL := prompt(reader, "Owner webhook URL (leave empty to log)", "")
	dispatchURL := prompt(reader, "Command dispatch URL (leave empty to log)", "")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# rentabotd configuration\n")
	cfg.WriteString("# Generated by rentabotd init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  host: \"%s\"\n", host))
	cfg.WriteString(fmt.Sprintf("  port: %s\n", port))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  mode: \"%s\"\n", authMode))
	if authPassword != "" {
		cfg.WriteString(fmt.Sprintf("  password: \"%s\"\n", authPassword))
	}
	cfg.WriteString("\n")

	if webhookURL != "" || dispatchURL != "" {
		cfg.WriteString("notify:\n")
		if webhookURL != "" {
			cfg.WriteString(fmt.Sprintf("  webhook_url: \"%s\"\n", webhookURL))
		}
		if dispatchURL != "" {
			cfg.WriteString(fmt.Sprintf("  dispatch_url: \"%s\"\n", dispatchURL))
		}
		cfg.WriteString("\n")
	}

	cfg.WriteString("rentals:\n")
	cfg.WriteString("  warnings_enabled: true\n")
	cfg.WriteString("  warning_times: [60, 30, 10, 5, 1]\n")
	cfg.WriteString("  check_interval: \"30s\"\n")
	cfg.WriteString("  grace_period: \"60s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the daemon:")
	fmt.Printf("  rentabotd serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
