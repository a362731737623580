package main

import (
	"github.com/spf13/cobra"

	"github.com/thrane20/dillinger/internal/setup"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Run the interactive setup wizard and write config.yml",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setup.Run(cmd.Context(), configPath)
	},
}
