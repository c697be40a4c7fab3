// Package main provides the CLI entrypoint for posd, the offline-first
// point-of-sale sync agent.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ankitmehra/posd/internal/api"
	"github.com/ankitmehra/posd/internal/config"
	"github.com/ankitmehra/posd/internal/logger"
	"github.com/ankitmehra/posd/internal/queue"
	"github.com/ankitmehra/posd/internal/report"
	"github.com/ankitmehra/posd/internal/store"
	"github.com/ankitmehra/posd/internal/sync"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "posd",
	Short: "Offline-first sync agent for point-of-sale data",
	Long: `posd keeps a local point-of-sale dataset in sync with the cloud backend.
Local mutations are queued durably and pushed when connectivity allows;
remote changes are pulled incrementally and applied to the local store.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync engine until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue statistics",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List failed and dead-letter operations",
	Args:  cobra.NoArgs,
	RunE:  runFailed,
}

var retryCmd = &cobra.Command{
	Use:   "retry <operation-id>",
	Short: "Requeue a dead-letter operation for another attempt",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <create|update|delete> <collection> <document-id> <payload-json>",
	Short: "Queue a mutation directly (for smoke-testing a deployment)",
	Args:  cobra.ExactArgs(4),
	RunE:  runEnqueue,
}

func init() {
	defaultConfig := "posd.yml"
	if homeDir, err := os.UserHomeDir(); err == nil {
		defaultConfig = filepath.Join(homeDir, ".config", "posd", "config.yml")
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(failedCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(enqueueCmd)
}

// loadConfig reads the config file and applies the logging settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, err
	}
	logger.SetLevel(level)

	if cfg.LogFile != "" {
		if err := logger.SetLogFile(cfg.LogFile); err != nil {
			return cfg, fmt.Errorf("failed to open log file: %w", err)
		}
	}
	return cfg, nil
}

// openStore opens the queue database, creating its directory if needed.
func openStore(cfg config.Config) (*store.DB, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return store.InitDB(cfg.DBPath)
}

// buildEngine wires the store, transport client, and engine together.
func buildEngine(cfg config.Config, db *store.DB) (*sync.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := api.New(cfg.BaseURL, api.DefaultTokenProvider, cfg.Timeout())

	return sync.NewEngine(db, client, sync.Config{
		TenantID:       cfg.TenantID,
		MaxBatchSize:   cfg.MaxBatchSize,
		MaxRetries:     cfg.MaxRetries,
		BaseDelay:      cfg.BaseDelay(),
		MaxDelay:       cfg.MaxDelay(),
		PullInterval:   cfg.PullInterval(),
		RequestTimeout: cfg.Timeout(),
	})
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	engine, err := buildEngine(cfg, db)
	if err != nil {
		return err
	}

	if err := engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	fmt.Printf("syncing tenant %s against %s\n", cfg.TenantID, cfg.BaseURL)
	fmt.Println("press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("stopping...")
	engine.Stop()

	// Best effort final drain so a clean shutdown leaves nothing
	// deliverable behind.
	if err := engine.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: final drain failed: %v\n", err)
	}

	fmt.Println("stopped")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	stats, err := db.GetStats(cfg.TenantID)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Print(report.FormatStats(stats))
	return nil
}

func runFailed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	items, err := db.GetFailedItems(cfg.TenantID)
	if err != nil {
		return fmt.Errorf("failed to list failed operations: %w", err)
	}

	fmt.Print(report.FormatItems(items))
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	if err := db.RetryDeadLetter(args[0]); err != nil {
		return err
	}

	fmt.Printf("operation %s requeued\n", args[0])
	return nil
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	op := queue.Op(args[0])
	switch op {
	case queue.OpCreate, queue.OpUpdate, queue.OpDelete:
	default:
		return fmt.Errorf("invalid operation type %q: must be create, update, or delete", args[0])
	}

	var payload json.RawMessage
	if err := json.Unmarshal([]byte(args[3]), &payload); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	item := queue.New(cfg.TenantID, op, args[1], args[2], payload)
	if err := db.Enqueue(item); err != nil {
		return err
	}

	fmt.Printf("queued operation %s\n", item.OperationID)
	return nil
}
