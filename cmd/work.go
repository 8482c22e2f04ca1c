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

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "work commands",
}

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "book commands",
}

func init() {
	rootCmd.AddCommand(workCmd)
	workCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	workCmd.AddCommand(createWorkCmd())
	workCmd.AddCommand(deleteWorkCmd())
	workCmd.AddCommand(addWorkCmd())
	workCmd.AddCommand(removeWorkCmd())
	workCmd.AddCommand(moveWorkCmd())
	workCmd.AddCommand(listWorkLinksCmd())

	rootCmd.AddCommand(bookCmd)
	bookCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	bookCmd.AddCommand(createBookCmd())
	bookCmd.AddCommand(listBooksCmd())
	bookCmd.AddCommand(moveBookCmd())
	bookCmd.AddCommand(deleteBookCmd())
}

func createWorkCmd() *cobra.Command {
	var name string
	var subtitle string
	var antiquarianIDs []uint

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a work",
		Example: "rard work create -n <name> -a <antiquarian-id> -a <antiquarian-id>",
		Run: run([]string{"name"}, func(ctx context.Context, a *app.App) error {
			work, err := a.Service.CreateWork(ctx, &service.CreateWorkRequest{Name: name, Subtitle: subtitle, AntiquarianIDs: antiquarianIDs})
			if err != nil {
				return err
			}
			logrus.Infof("work created with id: %d", work.ID)
			return nil
		}),
	}

	command.Flags().StringVarP(&name, "name", "n", "", "name of the work (required)")
	command.Flags().StringVarP(&subtitle, "subtitle", "s", "", "subtitle of the work")
	command.Flags().UintSliceVarP(&antiquarianIDs, "antiquarian-id", "a", nil, "antiquarians holding the work")
	command.Flags().SortFlags = false

	return command
}

func deleteWorkCmd() *cobra.Command {
	var id uint

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete a work with its books and links",
		Example: "rard work delete -w <work-id>",
		Run: run([]string{"work-id"}, func(ctx context.Context, a *app.App) error {
			if err := a.Service.DeleteWork(ctx, id); err != nil {
				return err
			}
			color.Green("work %d deleted", id)
			return nil
		}),
	}

	command.Flags().UintVarP(&id, "work-id", "w", 0, "work id (required)")

	return command
}

func addWorkCmd() *cobra.Command {
	var antiquarianID uint
	var workID uint

	command := &cobra.Command{
		Use:     "add",
		Short:   "associate a work with an antiquarian",
		Long:    `associate a work with an antiquarian, copying every attribution already made through the work`,
		Example: "rard work add -a <antiquarian-id> -w <work-id>",
		Run: run([]string{"antiquarian-id", "work-id"}, func(ctx context.Context, a *app.App) error {
			if err := a.Service.AddWork(ctx, antiquarianID, workID); err != nil {
				return err
			}
			color.Green("work %d added to antiquarian %d", workID, antiquarianID)
			return nil
		}),
	}

	command.Flags().UintVarP(&antiquarianID, "antiquarian-id", "a", 0, "antiquarian id (required)")
	command.Flags().UintVarP(&workID, "work-id", "w", 0, "work id (required)")
	command.Flags().SortFlags = false

	return command
}

func removeWorkCmd() *cobra.Command {
	var antiquarianID uint
	var workID uint

	command := &cobra.Command{
		Use:     "remove",
		Short:   "detach a work from an antiquarian",
		Example: "rard work remove -a <antiquarian-id> -w <work-id>",
		Run: run([]string{"antiquarian-id", "work-id"}, func(ctx context.Context, a *app.App) error {
			if err := a.Service.RemoveWork(ctx, antiquarianID, workID); err != nil {
				return err
			}
			color.Green("work %d removed from antiquarian %d", workID, antiquarianID)
			return nil
		}),
	}

	command.Flags().UintVarP(&antiquarianID, "antiquarian-id", "a", 0, "antiquarian id (required)")
	command.Flags().UintVarP(&workID, "work-id", "w", 0, "work id (required)")
	command.Flags().SortFlags = false

	return command
}

func moveWorkCmd() *cobra.Command {
	var antiquarianID uint
	var workID uint
	var position int

	command := &cobra.Command{
		Use:     "move",
		Short:   "move a work among the works of an antiquarian",
		Example: "rard work move -a <antiquarian-id> -w <work-id> -p <position>",
		Run: run([]string{"antiquarian-id", "work-id", "position"}, func(ctx context.Context, a *app.App) error {
			return a.Service.MoveWork(ctx, antiquarianID, workID, position)
		}),
	}

	command.Flags().UintVarP(&antiquarianID, "antiquarian-id", "a", 0, "antiquarian id (required)")
	command.Flags().UintVarP(&workID, "work-id", "w", 0, "work id (required)")
	command.Flags().IntVarP(&position, "position", "p", 0, "new position (required)")
	command.Flags().SortFlags = false

	return command
}

func listWorkLinksCmd() *cobra.Command {
	var workID uint
	var kind string

	command := &cobra.Command{
		Use:     "links",
		Short:   "list the links made through a work",
		Example: "rard work links -w <work-id> -k fragment",
		Run: run([]string{"work-id"}, func(ctx context.Context, a *app.App) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			links, err := a.Service.ListWorkLinks(ctx, k, workID)
			if err != nil {
				return err
			}
			renderLinks(links)
			return nil
		}),
	}

	command.Flags().UintVarP(&workID, "work-id", "w", 0, "work id (required)")
	command.Flags().StringVarP(&kind, "kind", "k", "fragment", "evidence kind: fragment, testimonium or appositum")

	return command
}

func createBookCmd() *cobra.Command {
	var workID uint
	var number int
	var subtitle string

	command := &cobra.Command{
		Use:     "create",
		Short:   "add a book to a work",
		Example: "rard book create -w <work-id> --number <number> -s <subtitle>",
		Run: func(cmd *cobra.Command, args []string) {
			var n *int
			if cmd.Flag("number").Changed {
				n = &number
			}
			run([]string{"work-id"}, func(ctx context.Context, a *app.App) error {
				book, err := a.Service.CreateBook(ctx, &service.CreateBookRequest{WorkID: workID, Number: n, Subtitle: subtitle})
				if err != nil {
					return err
				}
				logrus.Infof("book created with id: %d", book.ID)
				return nil
			})(cmd, args)
		},
	}

	command.Flags().UintVarP(&workID, "work-id", "w", 0, "work id (required)")
	command.Flags().IntVar(&number, "number", 0, "book number")
	command.Flags().StringVarP(&subtitle, "subtitle", "s", "", "subtitle of the book")
	command.Flags().SortFlags = false

	return command
}

func listBooksCmd() *cobra.Command {
	var workID uint

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the books of a work",
		Example: "rard book list -w <work-id>",
		Run: run([]string{"work-id"}, func(ctx context.Context, a *app.App) error {
			books, err := a.Service.ListBooks(ctx, workID)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Number", "Subtitle", "Order", "Unknown"})
			for _, b := range books {
				table.Append([]string{utoa(b.ID), position(b.Number), b.Subtitle, itoa(b.Order), flag(b.Unknown)})
			}
			table.Render()
			return nil
		}),
	}

	command.Flags().UintVarP(&workID, "work-id", "w", 0, "work id (required)")

	return command
}

func moveBookCmd() *cobra.Command {
	var bookID uint
	var position int

	command := &cobra.Command{
		Use:     "move",
		Short:   "move a book among the books of its work",
		Example: "rard book move -b <book-id> -p <position>",
		Run: run([]string{"book-id", "position"}, func(ctx context.Context, a *app.App) error {
			return a.Service.MoveBook(ctx, bookID, position)
		}),
	}

	command.Flags().UintVarP(&bookID, "book-id", "b", 0, "book id (required)")
	command.Flags().IntVarP(&position, "position", "p", 0, "new position (required)")

	return command
}

func deleteBookCmd() *cobra.Command {
	var bookID uint

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete a book with its links",
		Example: "rard book delete -b <book-id>",
		Run: run([]string{"book-id"}, func(ctx context.Context, a *app.App) error {
			if err := a.Service.DeleteBook(ctx, bookID); err != nil {
				return err
			}
			color.Green("book %d deleted", bookID)
			return nil
		}),
	}

	command.Flags().UintVarP(&bookID, "book-id", "b", 0, "book id (required)")

	return command
}
