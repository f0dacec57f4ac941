package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rymdl/rymdl/internal/audio"
	"github.com/rymdl/rymdl/internal/search"
)

func newOrganizeCommand(root *rootOptions) *cobra.Command {
	selectionsPath := "selections.json"

	cmd := &cobra.Command{
		Use:   "organize <releases.txt>",
		Short: "Move already-downloaded releases into the library",
		Long: "Re-runs only the organize step for releases whose downloads already " +
			"finished, using the directories recorded in the selections file. Already " +
			"organized releases are skipped; partial leftovers in the library are " +
			"replaced.",
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

			library := newLibrary(settings)
			var tagger *audio.Tagger
			if settings.ModifyTags {
				tagger = audio.NewTagger(nil)
			}

			organized := 0
			for _, rel := range releases {
				chosen, ok := selections[rel.String()].Chosen()
				if !ok {
					fmt.Printf("x %s (no selection)\n", rel)
					continue
				}
				if err := library.Organize(rel, chosen.Directory); err != nil {
					fmt.Printf("x %s (%v)\n", rel, err)
					continue
				}
				if tagger != nil {
					if _, err := tagger.TagRelease(library.TargetDir(rel), rel); err != nil {
						fmt.Printf("! %s: tagging failed: %v\n", rel, err)
					}
				}
				organized++
				fmt.Printf("+ %s\n", rel)
			}

			fmt.Printf("\nOrganized %d/%d releases\n", organized, len(releases))
			if organized < len(releases) {
				return fmt.Errorf("%d release(s) not organized", len(releases)-organized)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&selectionsPath, "selections", "s", selectionsPath, "Selections file written by \"rymdl search\"")
	return cmd
}
