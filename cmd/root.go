package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lodgeleads/enrich/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Facility record enrichment engine",
	Long:  "Resolves facility websites via candidate-domain generation, DNS filtering, HTTP validation and search fallback, then crawls the resolved sites for contact emails.",
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
