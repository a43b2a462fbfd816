package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stadtwache/opsclient/client"
	"github.com/stadtwache/opsclient/credstore"
	"github.com/stadtwache/opsclient/observability"
)

var (
	configFile string
	serverURL  string
	storePath  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "opsclient",
	Short: "Operations dashboard client for the Stadtwache control center",
	Long: `opsclient signs in to the control center API, keeps the session on this
device and shows the live dashboard figures: open incidents, officers on
duty and general channel messages.

  opsclient login admin@stadtwache.sys --password admin123
  opsclient status
  opsclient watch`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Control center base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Credential store location (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, statusCmd, watchCmd, fakeServerCmd)
}

// loadConfig resolves the effective configuration. Without a configured
// store the CLI keeps credentials in a file store under the user config
// directory, so a session survives between invocations.
func loadConfig() (*client.Config, error) {
	cfg := client.DefaultConfig()
	if configFile != "" {
		loaded, err := client.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if cfg.Store.Driver == credstore.DriverMemory {
		cfg.Store.Driver = credstore.DriverFile
	}
	if cfg.Store.Path == "" && cfg.Store.Driver != credstore.DriverRedis {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		cfg.Store.Path = filepath.Join(dir, "opsclient", "credentials")
	}

	cfg.Observer = "zap"
	return &cfg, nil
}

// openClient builds a client from the flags and restores the stored session.
// The returned cleanup closes the client and flushes the logger.
func openClient(ctx context.Context) (*client.Client, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := observability.NewZapLogger(cfg.Log)
	restore := zap.ReplaceGlobals(logger)

	c, err := client.New(cfg)
	if err != nil {
		restore()
		return nil, nil, err
	}

	cleanup := func() {
		c.Close()
		logger.Sync()
		restore()
	}

	if err := c.Start(ctx); err != nil {
		zap.L().Debug("no session restored", zap.Error(err))
	}
	return c, cleanup, nil
}
