package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rymdl/rymdl/internal/config"
	"github.com/rymdl/rymdl/internal/model"
	"github.com/rymdl/rymdl/internal/search"
)

// pickerWindow is how many ranked candidates the interactive picker
// shows per release.
const pickerWindow = 5

type searchOptions struct {
	Output string
	Auto   bool
}

func newSearchCommand(root *rootOptions) *cobra.Command {
	opts := searchOptions{Output: "selections.json"}

	cmd := &cobra.Command{
		Use:   "search <releases.txt>",
		Short: "Search the broker for each release and persist the selections",
		Long: "Searches slskd for every release in the list and writes a selections file " +
			"recording the chosen candidate and up to two alternates per release. " +
			"By default the top candidates are shown for interactive confirmation; " +
			"--auto takes the best-ranked candidate without prompting.",
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

			var selections search.Selections
			if opts.Auto {
				coord, err := newCoordinator(settings, root.printer())
				if err != nil {
					return err
				}
				selections, err = coord.Search(cmd.Context(), releases)
				if err != nil {
					return err
				}
			} else {
				selections, err = interactiveSearch(cmd, root, settings, releases)
				if err != nil {
					return err
				}
			}

			if err := selections.Save(opts.Output); err != nil {
				return fmt.Errorf("save selections: %w", err)
			}

			found := 0
			for _, rec := range selections {
				if rec != nil {
					found++
				}
			}
			fmt.Printf("\nFound candidates for %d/%d releases, selections written to %s\n",
				found, len(releases), opts.Output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", opts.Output, "Selections file to write")
	cmd.Flags().BoolVar(&opts.Auto, "auto", false, "Take the best-ranked candidate without prompting")
	return cmd
}

func interactiveSearch(cmd *cobra.Command, root *rootOptions, settings *config.Settings, releases []model.Release) (search.Selections, error) {
	orc, err := newOrchestrator(settings, root.printer())
	if err != nil {
		return nil, err
	}

	reader := bufio.NewScanner(os.Stdin)
	selections := make(search.Selections, len(releases))

	for _, rel := range releases {
		ranked, err := orc.SearchRelease(cmd.Context(), rel)
		if err != nil {
			return nil, err
		}
		if len(ranked) == 0 {
			fmt.Printf("\n%s: nothing found\n", rel)
			selections[rel.String()] = nil
			continue
		}

		fmt.Printf("\n%s:\n", rel)
		shown := ranked
		if len(shown) > pickerWindow {
			shown = shown[:pickerWindow]
		}
		for i, cand := range shown {
			slot := " "
			if cand.HasFreeSlot {
				slot = "free slot"
			}
			fmt.Printf("  %d) %s  %s %d kbps, %d files, %s\n",
				i+1, cand.Username, cand.Format, cand.BitRate, len(cand.Files), slot)
		}
		fmt.Printf("Pick [1-%d, enter=1, s=skip]: ", len(shown))

		chosen := 0
		if reader.Scan() {
			input := strings.TrimSpace(reader.Text())
			switch {
			case input == "":
				chosen = 0
			case strings.EqualFold(input, "s"):
				selections[rel.String()] = nil
				continue
			default:
				n, err := strconv.Atoi(input)
				if err != nil || n < 1 || n > len(shown) {
					fmt.Println("  Invalid choice, taking the top candidate")
				} else {
					chosen = n - 1
				}
			}
		}
		selections[rel.String()] = search.NewSelectionRecord(ranked, chosen)
	}
	return selections, nil
}
