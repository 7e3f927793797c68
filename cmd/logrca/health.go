package main

import (
	"context"
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-logrca/internal/api"
	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/report"
)

var errDegraded = errors.New("one or more components are unhealthy")

func newHealthCmd(c *cli) *cobra.Command {
	var (
		server  string
		noColor bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the log store, advisor and run store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var (
				health models.HealthReport
				err    error
			)
			if server != "" {
				client, dialErr := api.Dial(server)
				if dialErr != nil {
					return dialErr
				}
				defer client.Close()
				health, err = client.Health(ctx)
				if err != nil {
					return err
				}
			} else {
				a, buildErr := buildApp(ctx, c.cfg, c.logger)
				if buildErr != nil {
					return buildErr
				}
				defer a.Close()
				health = a.service.Health(ctx)
			}

			if err := report.WriteHealth(cmd.OutOrStdout(), health, !noColor && !color.NoColor); err != nil {
				return err
			}
			if health.OverallStatus != "healthy" {
				return errDegraded
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "query a running logrca gRPC server instead of local components")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable coloured output")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "health check timeout")
	return cmd
}
