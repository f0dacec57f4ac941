package main

import (
	"github.com/spf13/cobra"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <releases.txt>",
		Short: "Search, download and organize every release in one pass",
		Long: "Runs the whole pipeline without a separate selection step: each release " +
			"is searched, its best candidate downloaded (alternates retried on failure) " +
			"and the completed download moved into the library. The batch shares one " +
			"wall-clock deadline.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := root.loadSettings()
			if err != nil {
				return err
			}
			releases, err := parseReleaseFile(args[0], settings.StrictInput)
			if err != nil {
				return err
			}

			coord, err := newCoordinator(settings, root.printer())
			if err != nil {
				return err
			}
			results, err := coord.Run(cmd.Context(), releases)
			if err != nil {
				return err
			}
			return reportLedger(results)
		},
	}
}
