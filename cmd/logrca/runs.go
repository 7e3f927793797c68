package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-logrca/internal/api"
	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/report"
)

type runReader interface {
	ListRuns(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error)
	GetRun(ctx context.Context, req models.GetRunRequest) (models.AnalysisResult, error)
}

func newRunsCmd(c *cli) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored analysis runs",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "", "read runs from a running logrca gRPC server")

	// open returns the reader plus its release function.
	open := func(ctx context.Context) (runReader, func(), error) {
		if server != "" {
			client, err := api.Dial(server)
			if err != nil {
				return nil, nil, err
			}
			return client, func() { _ = client.Close() }, nil
		}
		a, err := buildApp(ctx, c.cfg, c.logger)
		if err != nil {
			return nil, nil, err
		}
		return a.service, func() { _ = a.Close() }, nil
	}

	var (
		limit     int
		pageToken string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			resp, err := reader.ListRuns(cmd.Context(), models.ListRunsRequest{Limit: limit, PageToken: pageToken})
			if err != nil {
				return err
			}
			return writeRunTable(cmd.OutOrStdout(), resp)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum runs to return")
	list.Flags().StringVar(&pageToken, "page-token", "", "continue from a previous listing")

	var (
		asJSON  bool
		noColor bool
	)
	get := &cobra.Command{
		Use:   "get RUN_ID",
		Short: "Show one stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			result, err := reader.GetRun(cmd.Context(), models.GetRunRequest{RunID: args[0]})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return report.Write(cmd.OutOrStdout(), result, report.Options{Color: !noColor && !color.NoColor})
		},
	}
	get.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	get.Flags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	cmd.AddCommand(list, get)
	return cmd
}

func writeRunTable(w io.Writer, resp models.ListRunsResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATUS\tSTARTED\tLOGS\tGROUPS\tCONFIDENCE\tTOP ROOT CAUSE")
	for _, run := range resp.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.0f%%\t%s\n",
			run.RunID, run.Status, run.StartedAt, run.TotalLogs, run.ErrorGroups, run.ConfidenceScore, run.TopRootCause)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if resp.NextPageToken != "" {
		_, err := fmt.Fprintf(w, "\nnext page: --page-token %s\n", resp.NextPageToken)
		return err
	}
	return nil
}
