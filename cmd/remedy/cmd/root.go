// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kusari-oss/triage/internal/app"
	"github.com/kusari-oss/triage/internal/cli"
	"github.com/kusari-oss/triage/internal/server"
	"github.com/kusari-oss/triage/internal/version"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the remedy root command
func NewRootCmd() *cobra.Command {
	env := &cli.Env{}

	rootCmd := &cobra.Command{
		Use:   "remedy",
		Short: "Remedy - whitelisted remediation endpoint",
		Long: `Remedy accepts remediation requests from triage and runs only the actions on
its whitelist. Every other request is denied.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.Load(cmd)
		},
	}

	env.BindFlags(rootCmd)

	rootCmd.AddCommand(newServeCmd(env))
	rootCmd.AddCommand(newActionsCmd(env))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func newServeCmd(env *cli.Env) *cobra.Command {
	var bind string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the remediation guard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bind == "" {
				bind = env.Config.Guard.Bind
			}

			flush, err := env.StartTracing(cmd, "remedy")
			if err != nil {
				return err
			}
			defer flush()

			g, err := app.NewGuard(env.Config, env.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			limiter := app.NewRateLimiter(env.Config.Guard.RateLimit, env.Config.Guard.RateBurst)
			if limiter != nil {
				go limiter.Cleanup(ctx)
			}

			handler := server.NewGuardHandler(g, server.Options{Logger: env.Logger, RateLimiter: limiter})
			return server.Run(ctx, bind, handler, env.Logger)
		},
	}

	serveCmd.Flags().StringVarP(&bind, "bind", "b", "", "Address to listen on (default from config)")

	return serveCmd
}

func newActionsCmd(env *cli.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the whitelisted actions and their handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := app.NewGuard(env.Config, env.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range g.Whitelist().List() {
				handler := "simulation"
				if h, ok := env.Config.Guard.Handlers[name]; ok && h.Command != "" {
					handler = "command: " + h.Command
				}
				schema := ""
				if _, ok := env.Config.Guard.Schemas[name]; ok {
					schema = " (schema)"
				}
				fmt.Fprintf(out, "%s\t%s%s\n", name, handler, schema)
			}
			return nil
		},
	}
}
