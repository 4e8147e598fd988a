package main

import (
	"github.com/spf13/cobra"
)

var statusLookbackHours int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show quoting and experimentation metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Collector.Collect(ctx, statusLookbackHours)
		if err != nil {
			return err
		}
		return printJSON(snap)
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLookbackHours, "lookback-hours", 24, "metrics window in hours")
	rootCmd.AddCommand(statusCmd)
}
