package main

import (
	"fmt"
	"time"

	"github.com/SlpAus/guideu-backend/pkg/token"
	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "为本地调试签发一个会话令牌",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.Auth.TokenSecret == "" {
				return fmt.Errorf("签发令牌需要配置 auth.tokenSecret")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			tok, err := token.Issue(args[0], ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "令牌有效期，默认使用 auth.tokenTTL")
	return cmd
}
