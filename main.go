// Command hogscan finds secrets in source trees and their git history.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/internal/vault"
)

// errIssuesFound makes the process exit with status 1 after the report has
// been written.
var errIssuesFound = errors.New("issues found")

var verbose int

var rootCmd = &cobra.Command{
	Use:           "hogscan",
	Short:         "Find secrets in your codebase",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logger.Options{
			Level:   logger.LevelFromVerbosity(verbose),
			LogPath: os.Getenv("HOGSCAN_LOG_PATH"),
		})
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "enable verbose logging (-v, -vv, -vvv)")
}

// gitVault uses GIT_TOKEN when it is set and clones anonymously otherwise.
func gitVault() vault.VaultClient {
	if os.Getenv("GIT_TOKEN") != "" {
		return &vault.DefaultVaultClient{}
	}
	return &vault.NoOpVaultClient{}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()

	switch {
	case err == nil:
	case errors.Is(err, errIssuesFound):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
