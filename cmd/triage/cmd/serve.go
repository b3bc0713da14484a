// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os/signal"
	"syscall"

	"github.com/kusari-oss/triage/internal/app"
	"github.com/kusari-oss/triage/internal/cli"
	"github.com/kusari-oss/triage/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(env *cli.Env) *cobra.Command {
	var bind string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bind == "" {
				bind = env.Config.Server.Bind
			}

			flush, err := env.StartTracing(cmd, "triage")
			if err != nil {
				return err
			}
			defer flush()

			a, err := app.NewAgent(env.Config, env.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			limiter := app.NewRateLimiter(env.Config.Server.RateLimit, env.Config.Server.RateBurst)
			if limiter != nil {
				go limiter.Cleanup(ctx)
			}

			handler := server.NewAgentHandler(a, server.Options{Logger: env.Logger, RateLimiter: limiter})
			return server.Run(ctx, bind, handler, env.Logger)
		},
	}

	serveCmd.Flags().StringVarP(&bind, "bind", "b", "", "Address to listen on (default from config)")

	return serveCmd
}

