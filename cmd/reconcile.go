package cmd

import (
	"context"
	"os"

	"github.com/emrgen/rard/internal/app"
	"github.com/emrgen/rard/internal/fixture"
	"github.com/emrgen/rard/internal/server"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(serveCmd())
}

func reconcileCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "reconcile",
		Short: "rebuild every position index",
		Long:  `collate the Unknown Works and rebuild the position of every work, book and link`,
		Run: run(nil, func(ctx context.Context, a *app.App) error {
			writes, err := a.Service.Reconcile(ctx)
			if err != nil {
				return err
			}
			if writes == 0 {
				color.Green("catalogue is consistent")
				return nil
			}
			color.Yellow("repaired %d positions", writes)
			return nil
		}),
	}

	return command
}

func checkCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "check",
		Short: "report broken invariants without writing",
		Run: run(nil, func(ctx context.Context, a *app.App) error {
			violations, err := a.Service.Check(ctx)
			if err != nil {
				return err
			}
			if len(violations) == 0 {
				color.Green("no violations")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Rule", "Scope", "Detail"})
			for _, v := range violations {
				table.Append([]string{v.Rule, v.Scope, v.Detail})
			}
			table.Render()
			color.Red("%d violations, run `rard reconcile` to repair them", len(violations))
			return nil
		}),
	}

	return command
}

func importCmd() *cobra.Command {
	var file string
	var reconcile bool

	command := &cobra.Command{
		Use:     "import",
		Short:   "import a yaml catalogue",
		Example: "rard import -f catalogue.yml",
		Run: run([]string{"file"}, func(ctx context.Context, a *app.App) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := fixture.Import(ctx, a.Service, f)
			if err != nil {
				return err
			}
			color.Green("imported %d links", res.Links)

			if !reconcile {
				return nil
			}
			writes, err := a.Service.Reconcile(ctx)
			if err != nil {
				return err
			}
			if writes > 0 {
				color.Yellow("repaired %d positions", writes)
			}
			return nil
		}),
	}

	command.Flags().StringVarP(&file, "file", "f", "", "yaml file (required)")
	command.Flags().BoolVar(&reconcile, "reconcile", true, "run a full reconciliation after the import")

	return command
}

func serveCmd() *cobra.Command {
	var port string

	command := &cobra.Command{
		Use:   "serve",
		Short: "serve the catalogue api",
		Run: func(cmd *cobra.Command, args []string) {
			server.NewServer(port).Start()
		},
	}

	command.Flags().StringVarP(&port, "port", "p", "", "http port, defaults to HTTP_PORT")

	return command
}
