package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rymdl/rymdl/internal/search"
)

func newDownloadCommand(root *rootOptions) *cobra.Command {
	selectionsPath := "selections.json"

	cmd := &cobra.Command{
		Use:   "download <releases.txt>",
		Short: "Download and organize releases from a saved selections file",
		Long: "Downloads each release using the candidate recorded by a previous " +
			"\"rymdl search\" run, retrying persisted alternates on failure, and moves " +
			"completed releases into the library.",
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
			selections, err := search.LoadSelections(selectionsPath)
			if err != nil {
				return fmt.Errorf("load selections: %w", err)
			}

			coord, err := newCoordinator(settings, root.printer())
			if err != nil {
				return err
			}
			results, err := coord.RunSelected(cmd.Context(), releases, selections)
			if err != nil {
				return err
			}
			return reportLedger(results)
		},
	}

	cmd.Flags().StringVarP(&selectionsPath, "selections", "s", selectionsPath, "Selections file written by \"rymdl search\"")
	return cmd
}
