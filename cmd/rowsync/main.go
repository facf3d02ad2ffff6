// Command rowsync runs a demo HTTP server over a cached users table and
// offers one-shot maintenance commands against the configured backends.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/rowsync/pkg/rowsync"
)

var (
	configPath string
	logLevel   string
	rootCmd    *cobra.Command
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "rowsync",
		Short: "Write-through row cache between a relational database and a key-value store",
		Long: `rowsync caches relational rows as key-value hashes and pushes changes
back to the database on demand or through a rate-limited drainer.

Examples:
  rowsync serve --config rowsync.yaml --addr :8080
  rowsync push users 42
  rowsync config`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML or JSON config file (ROWSYNC_* variables override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(configCmd)
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      l,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})), nil
}

// connect loads the configuration and opens a client with the demo tables
// defined.
func connect(cmd *cobra.Command) (*rowsync.Client, error) {
	cfg, err := rowsync.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	client, err := rowsync.Connect(cfg)
	if err != nil {
		return nil, err
	}
	for _, s := range demoTables() {
		if err := client.Define(cmd.Context(), s, true); err != nil {
			client.Close()
			return nil, fmt.Errorf("define %s: %w", s.TableName, err)
		}
	}
	return client, nil
}
