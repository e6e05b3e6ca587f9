package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lodgeleads/enrich/internal/model"
)

var emailFlags runFlags

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Crawl resolved websites for contact emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := buildEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		return runJob(ctx, env, model.JobTypeEmail, &emailFlags)
	},
}

func init() {
	emailCmd.Flags().StringSliceVar(&emailFlags.ids, "id", nil, "facility ids to process (repeatable)")
	emailCmd.Flags().BoolVar(&emailFlags.failed, "failed", false, "retry facilities whose last crawl failed")
	emailCmd.Flags().IntVar(&emailFlags.concurrency, "concurrency", 0, "records in flight (default from config)")
	emailCmd.Flags().Float64Var(&emailFlags.rateLimit, "rate", 0, "records per second, 0 = unpaced")
	rootCmd.AddCommand(emailCmd)
}
