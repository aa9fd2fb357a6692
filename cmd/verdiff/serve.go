package main

import (
	"github.com/spf13/cobra"

	"verdiff/internal/app"
	"verdiff/internal/config"
	"verdiff/internal/infrastructure"
)

func newServeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the diff and trace API over HTTP",
		Long: `Starts the HTTP API. POST /api/v1/diff compares two tables and
POST /api/v1/trace traces a value column across versions. GET /healthz and
GET /metrics report liveness and Prometheus metrics.`,
		Example: `  verdiff serve --addr :8080`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd.Flags(), o)
			if err != nil {
				return err
			}

			application, err := app.NewApplication(env.cfg, env.paths,
				app.WithLogger(env.logger),
				app.WithMetrics(env.metrics),
				app.WithOTel(env.providers),
			)
			if err != nil {
				return err
			}

			newPrinter(cmd.OutOrStdout()).step("serving %s on %s", config.APIBasePath, env.cfg.Server.Addr)
			err = application.Run(cmd.Context())
			infrastructure.CloseLogFile()
			return err
		},
	}

	cmd.Flags().StringVar(&o.addr, "addr", "", "override server.addr, e.g. :8080")
	return cmd
}
