package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/thrash-sh/thrash/core/config"
)

// initCmd scaffolds the shell configuration.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		dir := cfgPath
		if dir == "" {
			d, err := config.DefaultDir()
			if err != nil {
				return err
			}
			dir = d
		}

		logger := log.New(cmd.ErrOrStderr(), "", 0)
		_, err := config.Initialize(dir, logger)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
