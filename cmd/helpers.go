package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/emrgen/rard/internal/app"
	"github.com/emrgen/rard/internal/config"
	"github.com/emrgen/rard/internal/model"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// withApp runs f against the configured catalogue.
func withApp(f func(ctx context.Context, a *app.App) error) error {
	cfg := config.LoadConfig()
	config.SetupLogging(cfg)

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return f(context.Background(), a)
}

// run wraps a command body that needs the catalogue.
func run(required []string, f func(ctx context.Context, a *app.App) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if checkMissingFlags(cmd, required) {
			return
		}
		if err := withApp(f); err != nil {
			logrus.Error(err)
		}
	}
}

func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		var msg string
		for _, f := range missingFlags {
			msg += fmt.Sprintf("--%s ", f)
		}

		color.Red("missing: %s\n", msg)
		if len(providedFlags) > 0 {
			provided := strings.Join(providedFlags, " ")
			color.Yellow("provided: %s\n", provided)
		}
		return true
	}

	return false
}

// optional returns a pointer to the flag value when the flag was given.
func optional(cmd *cobra.Command, flag string, value uint) *uint {
	if !cmd.Flag(flag).Changed {
		return nil
	}
	return &value
}

func parseKind(kind string) (model.EvidenceKind, error) {
	return model.ParseKind(kind)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func utoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func ref(id *uint) string {
	if id == nil {
		return "-"
	}
	return utoa(*id)
}

func position(p *int) string {
	if p == nil {
		return "-"
	}
	return itoa(*p)
}

func flag(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func renderLinks(links []*model.Link) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Evidence", "Antiquarian", "Work", "Book", "Order", "Work Order", "Order In Book", "Definite", "Exclusive"})
	for _, l := range links {
		var definite []string
		if l.DefiniteAntiquarian {
			definite = append(definite, "antiquarian")
		}
		if l.DefiniteWork {
			definite = append(definite, "work")
		}
		if l.DefiniteBook {
			definite = append(definite, "book")
		}
		table.Append([]string{
			utoa(l.ID),
			utoa(l.EvidenceID),
			ref(l.AntiquarianID),
			ref(l.WorkID),
			ref(l.BookID),
			itoa(l.Order),
			itoa(l.WorkOrder),
			position(l.OrderInBook),
			strings.Join(definite, ","),
			flag(l.Exclusive),
		})
	}
	table.Render()
}
