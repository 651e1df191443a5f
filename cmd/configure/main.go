package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ansonkao/time-tracker/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "time-tracker-configure",
		Short: "Configuration tool for the Time Tracker API",
		Long:  "CLI tool for managing categories and checking backing services",
	}

	rootCmd.AddCommand(commands.NewCategoriesCmd())
	rootCmd.AddCommand(commands.NewTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
