package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rard",
	Short: "antiquarian fragment catalogue tool",
	Example: `rard antiquarian create -n Varro
rard work create -n Antiquitates -a 1
rard book create -w 2 --number 1
rard evidence create -k fragment -n "Gellius 1.16.3"
rard link create -k fragment -e 1 -a 1 -w 2 -b 3
rard antiquarian links -a 1 -k fragment
rard reconcile
rard check
rard import -f catalogue.yml
rard serve`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dbCmd)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
