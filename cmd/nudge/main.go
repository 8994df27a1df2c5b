package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Behavioral event analysis and suggestion daemon",
	Long: `nudge ingests timestamped behavioral events, detects recurring
inefficiency patterns, and serves ranked suggestions that adapt to your
accept/reject feedback.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the nudge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("nudge version " + version)
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd, statusCmd, pruneCmd, trainCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
