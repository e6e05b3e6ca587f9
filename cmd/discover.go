package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lodgeleads/enrich/internal/model"
)

var discoverFlags runFlags

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run website discovery over pending facilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := buildEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		return runJob(ctx, env, model.JobTypeWebsite, &discoverFlags)
	},
}

func init() {
	discoverCmd.Flags().StringSliceVar(&discoverFlags.ids, "id", nil, "facility ids to process (repeatable)")
	discoverCmd.Flags().BoolVar(&discoverFlags.failed, "failed", false, "retry facilities whose last discovery failed")
	discoverCmd.Flags().IntVar(&discoverFlags.concurrency, "concurrency", 0, "records in flight (default from config)")
	discoverCmd.Flags().Float64Var(&discoverFlags.rateLimit, "rate", 0, "records per second, 0 = unpaced")
	rootCmd.AddCommand(discoverCmd)
}
