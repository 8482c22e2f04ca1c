package cmd

import (
	"context"
	"os"

	"github.com/emrgen/rard/internal/app"
	"github.com/emrgen/rard/internal/service"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var antiquarianCmd = &cobra.Command{
	Use:   "antiquarian",
	Short: "antiquarian commands",
}

func init() {
	rootCmd.AddCommand(antiquarianCmd)
	antiquarianCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	antiquarianCmd.AddCommand(createAntiquarianCmd())
	antiquarianCmd.AddCommand(listAntiquarianCmd())
	antiquarianCmd.AddCommand(deleteAntiquarianCmd())
	antiquarianCmd.AddCommand(listAntiquarianWorksCmd())
	antiquarianCmd.AddCommand(listAntiquarianLinksCmd())
}

func createAntiquarianCmd() *cobra.Command {
	var name string
	var sortName string

	command := &cobra.Command{
		Use:     "create",
		Short:   "create an antiquarian",
		Long:    `create an antiquarian together with its Unknown Work`,
		Example: "rard antiquarian create -n <name> -s <sort-name>",
		Run: run([]string{"name"}, func(ctx context.Context, a *app.App) error {
			antiquarian, err := a.Service.CreateAntiquarian(ctx, &service.CreateAntiquarianRequest{Name: name, SortName: sortName})
			if err != nil {
				return err
			}
			logrus.Infof("antiquarian created with id: %d", antiquarian.ID)
			return nil
		}),
	}

	command.Flags().StringVarP(&name, "name", "n", "", "name of the antiquarian (required)")
	command.Flags().StringVarP(&sortName, "sort-name", "s", "", "name used for sorting")
	command.Flags().SortFlags = false

	return command
}

func listAntiquarianCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "list",
		Short: "list antiquarians",
		Run: run(nil, func(ctx context.Context, a *app.App) error {
			antiquarians, err := a.Service.ListAntiquarians(ctx)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Name", "Sort Name"})
			for _, antiquarian := range antiquarians {
				table.Append([]string{utoa(antiquarian.ID), antiquarian.Name, antiquarian.SortName})
			}
			table.Render()
			return nil
		}),
	}

	return command
}

func deleteAntiquarianCmd() *cobra.Command {
	var id uint

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete an antiquarian",
		Long:    `delete an antiquarian with its links and its Unknown Work`,
		Example: "rard antiquarian delete -a <antiquarian-id>",
		Run: run([]string{"antiquarian-id"}, func(ctx context.Context, a *app.App) error {
			if err := a.Service.DeleteAntiquarian(ctx, id); err != nil {
				return err
			}
			color.Green("antiquarian %d deleted", id)
			return nil
		}),
	}

	command.Flags().UintVarP(&id, "antiquarian-id", "a", 0, "antiquarian id (required)")

	return command
}

func listAntiquarianWorksCmd() *cobra.Command {
	var id uint

	command := &cobra.Command{
		Use:     "works",
		Short:   "list the works of an antiquarian",
		Example: "rard antiquarian works -a <antiquarian-id>",
		Run: run([]string{"antiquarian-id"}, func(ctx context.Context, a *app.App) error {
			works, err := a.Service.ListAntiquarianWorks(ctx, id)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Work", "Name", "Order", "Unknown"})
			for _, wl := range works {
				name := ""
				if wl.Work != nil {
					name = wl.Work.Name
				}
				order := itoa(wl.Order)
				if wl.Unknown() {
					order = "-"
				}
				table.Append([]string{utoa(wl.WorkID), name, order, flag(wl.Unknown())})
			}
			table.Render()
			return nil
		}),
	}

	command.Flags().UintVarP(&id, "antiquarian-id", "a", 0, "antiquarian id (required)")

	return command
}

func listAntiquarianLinksCmd() *cobra.Command {
	var id uint
	var kind string

	command := &cobra.Command{
		Use:     "links",
		Short:   "list the links of an antiquarian",
		Long:    `list the links of one kind held by an antiquarian, or the unattributed links when no antiquarian is given`,
		Example: "rard antiquarian links -a <antiquarian-id> -k fragment",
		Run: func(cmd *cobra.Command, args []string) {
			antiquarianID := optional(cmd, "antiquarian-id", id)
			run(nil, func(ctx context.Context, a *app.App) error {
				k, err := parseKind(kind)
				if err != nil {
					return err
				}
				links, err := a.Service.ListAntiquarianLinks(ctx, k, antiquarianID)
				if err != nil {
					return err
				}
				renderLinks(links)
				return nil
			})(cmd, args)
		},
	}

	command.Flags().UintVarP(&id, "antiquarian-id", "a", 0, "antiquarian id")
	command.Flags().StringVarP(&kind, "kind", "k", "fragment", "evidence kind: fragment, testimonium or appositum")

	return command
}
