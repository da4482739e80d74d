package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "lazygrid",
	Short:         "User defined tables with persisted filters and sorts",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: <user config dir>/lazygrid/config.yaml)")

	rootCmd.AddCommand(
		serveCmd,
		tablesCmd,
		createTableCmd,
		addColumnCmd,
		addRowCmd,
		setCellCmd,
		showCmd,
		filterCmd,
		sortCmd,
		resetCmd,
		historyCmd,
		presetCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
