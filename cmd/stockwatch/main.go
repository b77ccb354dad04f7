package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stockwatch",
	Short: "Turn free-text investment notes into price and time alerts",
	Long: `stockwatch keeps investment notes written in plain language, extracts the
ticker and trigger conditions with an LLM, and reports which notes fire when
a check is run.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.AddCommand(addCmd, checkCmd, listCmd, showCmd, deleteCmd, reactivateCmd, historyCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
