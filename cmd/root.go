package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adrata/record-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "record-sync",
	Short: "Optimistic CRM record synchronization engine",
	Long:  "Routes field edits to the owning entity, applies them optimistically, reconciles server echoes, invalidates the multi-tier cache and fires stage-transition side effects.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
