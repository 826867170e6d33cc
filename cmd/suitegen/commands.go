package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/suitegen/internal/application"
	"github.com/ericfisherdev/suitegen/internal/config"
	"github.com/ericfisherdev/suitegen/internal/domain/model"
)

var (
	exportFormat string

	rootCmd = &cobra.Command{
		Use:   "suitegen",
		Short: "Generate test suites for repository files and submit them as pull requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	suitesCmd = &cobra.Command{
		Use:   "suites",
		Short: "Inspect saved test suites",
	}

	suitesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved test suites",
		Args:  cobra.NoArgs,
		RunE:  runSuitesList,
	}

	suitesExportCmd = &cobra.Command{
		Use:   "export <suite-id>",
		Short: "Write a suite to stdout as code, json, yaml, markdown or html",
		Args:  cobra.ExactArgs(1),
		RunE:  runSuitesExport,
	}
)

func init() {
	suitesExportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(model.ExportFormatCode),
		"export format: code, json, yaml, markdown or html")

	suitesCmd.AddCommand(suitesListCmd, suitesExportCmd)
	rootCmd.AddCommand(serveCmd, suitesCmd)
}

// loadSuites opens the configured store read-side and loads the suite list.
func loadSuites(ctx context.Context) (*application.SuiteService, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	suites := application.NewSuiteService(store)
	if err := suites.Load(ctx); err != nil {
		_ = closeStore()
		return nil, nil, err
	}
	return suites, closeStore, nil
}

func runSuitesList(cmd *cobra.Command, _ []string) error {
	suites, closeStore, err := loadSuites(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCASES\tUPDATED")
	for _, s := range suites.List() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Name, len(s.TestCases), s.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runSuitesExport(cmd *cobra.Command, args []string) error {
	suites, closeStore, err := loadSuites(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	export, err := suites.Export(args[0], model.ExportFormat(exportFormat))
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(export.Data)
	return err
}
