package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/SlpAus/guideu-backend/internal/platform/startup"
	"github.com/SlpAus/guideu-backend/internal/reconcile"
	"github.com/spf13/cobra"
)

func newReconcileCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "执行一次对账并打印修复结果",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := startup.InitializeApplication(cmd.Context()); err != nil {
				return err
			}
			report, err := reconcile.RunOnce(cfg.Reconcile, timeout)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", reconcileTimeout, "单次对账的超时时间")
	return cmd
}
