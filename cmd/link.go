package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/emrgen/rard/internal/app"
	"github.com/emrgen/rard/internal/event"
	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/service"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "link commands",
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "evidence commands",
}

func init() {
	rootCmd.AddCommand(linkCmd)
	linkCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	linkCmd.AddCommand(createLinkCmd())
	linkCmd.AddCommand(deleteLinkCmd())
	linkCmd.AddCommand(moveLinkCmd())

	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	evidenceCmd.AddCommand(createEvidenceCmd())
	evidenceCmd.AddCommand(listEvidenceCmd())
	evidenceCmd.AddCommand(deleteEvidenceCmd())
	evidenceCmd.AddCommand(attributionsCmd())
}

func createLinkCmd() *cobra.Command {
	var kind string
	var evidenceID, antiquarianID, workID, bookID uint
	var definiteAntiquarian, definiteWork, definiteBook, exclusive bool

	command := &cobra.Command{
		Use:     "create",
		Short:   "attribute an evidence item",
		Long:    `attribute an evidence item to an antiquarian, and optionally to one of its works and a book of that work`,
		Example: "rard link create -k fragment -e <evidence-id> -a <antiquarian-id> -w <work-id> -b <book-id> --definite-work",
		Run: func(cmd *cobra.Command, args []string) {
			req := &service.LinkRequest{
				EvidenceID:          evidenceID,
				AntiquarianID:       optional(cmd, "antiquarian-id", antiquarianID),
				WorkID:              optional(cmd, "work-id", workID),
				BookID:              optional(cmd, "book-id", bookID),
				DefiniteAntiquarian: definiteAntiquarian,
				DefiniteWork:        definiteWork,
				DefiniteBook:        definiteBook,
				Exclusive:           exclusive,
			}
			run([]string{"kind", "evidence-id"}, func(ctx context.Context, a *app.App) error {
				k, err := parseKind(kind)
				if err != nil {
					return err
				}
				req.Kind = k
				link, err := a.Service.CreateLink(ctx, req)
				if err != nil {
					return err
				}
				logrus.Infof("link created with id: %d", link.ID)
				renderLinks([]*model.Link{link})
				return nil
			})(cmd, args)
		},
	}

	command.Flags().StringVarP(&kind, "kind", "k", "", "evidence kind: fragment, testimonium or appositum (required)")
	command.Flags().UintVarP(&evidenceID, "evidence-id", "e", 0, "evidence id (required)")
	command.Flags().UintVarP(&antiquarianID, "antiquarian-id", "a", 0, "antiquarian id")
	command.Flags().UintVarP(&workID, "work-id", "w", 0, "work id")
	command.Flags().UintVarP(&bookID, "book-id", "b", 0, "book id")
	command.Flags().BoolVar(&definiteAntiquarian, "definite-antiquarian", false, "the antiquarian is certain")
	command.Flags().BoolVar(&definiteWork, "definite-work", false, "the work is certain")
	command.Flags().BoolVar(&definiteBook, "definite-book", false, "the book is certain")
	command.Flags().BoolVar(&exclusive, "exclusive", false, "keep the appositum to this antiquarian")
	command.Flags().SortFlags = false

	return command
}

func deleteLinkCmd() *cobra.Command {
	var kind string
	var id uint

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete a link",
		Example: "rard link delete -k fragment -l <link-id>",
		Run: run([]string{"kind", "link-id"}, func(ctx context.Context, a *app.App) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			if err := a.Service.DeleteLink(ctx, k, id); err != nil {
				return err
			}
			color.Green("%s link %d deleted", k, id)
			return nil
		}),
	}

	command.Flags().StringVarP(&kind, "kind", "k", "", "evidence kind (required)")
	command.Flags().UintVarP(&id, "link-id", "l", 0, "link id (required)")

	return command
}

func moveLinkCmd() *cobra.Command {
	var kind string
	var scope string
	var id uint
	var position int

	command := &cobra.Command{
		Use:     "move",
		Short:   "move a link inside its work or its book",
		Example: "rard link move -k fragment -l <link-id> --scope book -p <position>",
		Run: run([]string{"kind", "link-id", "position"}, func(ctx context.Context, a *app.App) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			return a.Service.MoveLink(ctx, &service.MoveLinkRequest{Kind: k, LinkID: id, Scope: event.MoveScope(scope), Position: position})
		}),
	}

	command.Flags().StringVarP(&kind, "kind", "k", "", "evidence kind (required)")
	command.Flags().UintVarP(&id, "link-id", "l", 0, "link id (required)")
	command.Flags().StringVar(&scope, "scope", string(event.ScopeWork), "work or book")
	command.Flags().IntVarP(&position, "position", "p", 0, "new position (required)")
	command.Flags().SortFlags = false

	return command
}

func createEvidenceCmd() *cobra.Command {
	var kind string
	var name string
	var meta string

	command := &cobra.Command{
		Use:     "create",
		Short:   "create an evidence item",
		Example: `rard evidence create -k fragment -n "Gellius 1.16.3" -m '{"source": "Noctes Atticae"}'`,
		Run: run([]string{"kind", "name"}, func(ctx context.Context, a *app.App) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			req := &service.CreateEvidenceRequest{Kind: k, Name: name}
			if meta != "" {
				if err := json.Unmarshal([]byte(meta), &req.Meta); err != nil {
					return err
				}
			}
			evidence, err := a.Service.CreateEvidence(ctx, req)
			if err != nil {
				return err
			}
			logrus.Infof("%s created with id: %d", k, evidence.ID)
			return nil
		}),
	}

	command.Flags().StringVarP(&kind, "kind", "k", "", "evidence kind (required)")
	command.Flags().StringVarP(&name, "name", "n", "", "name of the evidence item (required)")
	command.Flags().StringVarP(&meta, "meta", "m", "", "json metadata")
	command.Flags().SortFlags = false

	return command
}

func listEvidenceCmd() *cobra.Command {
	var kind string

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the evidence items of a kind",
		Example: "rard evidence list -k testimonium",
		Run: run([]string{"kind"}, func(ctx context.Context, a *app.App) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			items, err := a.Service.ListEvidence(ctx, k)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Name", "Meta"})
			for _, e := range items {
				table.Append([]string{utoa(e.ID), e.Name, e.Meta.String()})
			}
			table.Render()
			return nil
		}),
	}

	command.Flags().StringVarP(&kind, "kind", "k", "", "evidence kind (required)")

	return command
}

func deleteEvidenceCmd() *cobra.Command {
	var evidence string

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete an evidence item with its links",
		Example: "rard evidence delete -r fragment:12",
		Run: run([]string{"ref"}, func(ctx context.Context, a *app.App) error {
			ref, err := model.ParseEvidenceRef(evidence)
			if err != nil {
				return err
			}
			if err := a.Service.DeleteEvidence(ctx, ref); err != nil {
				return err
			}
			color.Green("%s deleted", ref)
			return nil
		}),
	}

	command.Flags().StringVarP(&evidence, "ref", "r", "", "evidence reference <kind>:<id> (required)")

	return command
}

func attributionsCmd() *cobra.Command {
	var evidence string

	command := &cobra.Command{
		Use:     "attributions",
		Short:   "show the definite and possible attributions of an evidence item",
		Example: "rard evidence attributions -r fragment:12",
		Run: run([]string{"ref"}, func(ctx context.Context, a *app.App) error {
			ref, err := model.ParseEvidenceRef(evidence)
			if err != nil {
				return err
			}
			attribution, err := a.Service.Attributions(ctx, ref)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Level", "Definite", "Possible"})
			table.Append([]string{"antiquarian", ids(attribution.Definite.Antiquarians), ids(attribution.Possible.Antiquarians)})
			table.Append([]string{"work", ids(attribution.Definite.Works), ids(attribution.Possible.Works)})
			table.Append([]string{"book", ids(attribution.Definite.Books), ids(attribution.Possible.Books)})
			table.Render()
			return nil
		}),
	}

	command.Flags().StringVarP(&evidence, "ref", "r", "", "evidence reference <kind>:<id> (required)")

	return command
}

func ids(values []uint) string {
	out := ""
	for i, id := range values {
		if i > 0 {
			out += ", "
		}
		out += utoa(id)
	}
	return out
}
