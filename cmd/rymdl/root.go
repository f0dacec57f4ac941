package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rymdl/rymdl/internal/audio"
	"github.com/rymdl/rymdl/internal/config"
	"github.com/rymdl/rymdl/internal/model"
	"github.com/rymdl/rymdl/internal/orchestrate"
	"github.com/rymdl/rymdl/internal/organize"
	"github.com/rymdl/rymdl/internal/search"
	"github.com/rymdl/rymdl/internal/slskd"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "rymdl",
		Short: "Fetch music release lists from the Soulseek network",
		Long: "rymdl takes a text file of releases (one \"Artist - Title (Year)\" per line), " +
			"searches a slskd instance for each, downloads the best match and organizes " +
			"completed releases into an Artist/Title (Year) library layout.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show verbose output")

	cmd.AddCommand(
		newSearchCommand(opts),
		newDownloadCommand(opts),
		newRunCommand(opts),
		newOrganizeCommand(opts),
	)
	return cmd
}

func (o *rootOptions) loadSettings() (*config.Settings, error) {
	path := o.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	settings, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return settings, nil
}

// printer returns a progress callback writing to stderr, filtering
// verbose events unless --verbose is set.
func (o *rootOptions) printer() func(orchestrate.ProgressEvent) {
	return func(event orchestrate.ProgressEvent) {
		if event.Level == orchestrate.LevelVerbose && !o.Verbose {
			return
		}
		prefix := "  "
		switch event.Level {
		case orchestrate.LevelError:
			prefix = "x "
		case orchestrate.LevelWarning:
			prefix = "! "
		case orchestrate.LevelSuccess:
			prefix = "+ "
		case orchestrate.LevelInfo:
			prefix = "> "
		}
		fmt.Fprintln(os.Stderr, prefix+event.Message)
	}
}

func parseReleaseFile(path string, strict bool) ([]model.Release, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	releases, lineErrs, err := model.ParseReleaseList(f, strict)
	if err != nil {
		return nil, err
	}
	for _, le := range lineErrs {
		fmt.Fprintf(os.Stderr, "! Skipping line %d: %q\n", le.Line, le.Text)
	}
	if len(releases) == 0 {
		return nil, fmt.Errorf("%s: no parsable releases", path)
	}
	return releases, nil
}

func newBrokerClient(settings *config.Settings) (*slskd.Client, error) {
	client, err := slskd.NewClient(settings.SlskdHost, settings.SlskdAPIKey)
	if err != nil {
		return nil, err
	}
	client.SearchTimeout = settings.SearchTimeoutDuration()
	client.PollDelay = settings.SearchPollDelayDuration()
	return client, nil
}

func newLibrary(settings *config.Settings) organize.Library {
	return organize.Library{
		DownloadsDir: settings.DownloadsDir,
		OutputRoot:   settings.OutputDir,
	}
}

func newOrchestrator(settings *config.Settings, onProgress func(orchestrate.ProgressEvent)) (*orchestrate.Orchestrator, error) {
	client, err := newBrokerClient(settings)
	if err != nil {
		return nil, err
	}

	opts := orchestrate.Options{
		Constraints: search.Constraints{
			AllowedFormats: settings.PreferredFormats,
			MinBitrate:     settings.MinBitrate,
			MinFiles:       settings.MinFiles,
		},
		PreferredFormats: settings.PreferredFormats,
		PollInterval:     settings.TransferPollIntervalDuration(),
		OnProgress:       onProgress,
	}
	if settings.ModifyTags {
		opts.Tagger = audio.NewTagger(nil)
	}
	return orchestrate.New(client, newLibrary(settings), opts), nil
}

func newCoordinator(settings *config.Settings, onProgress func(orchestrate.ProgressEvent)) (*orchestrate.Coordinator, error) {
	orc, err := newOrchestrator(settings, onProgress)
	if err != nil {
		return nil, err
	}
	return orchestrate.NewCoordinator(orc, settings.MaxConcurrentReleases, settings.BatchTimeout()), nil
}

// reportLedger prints the batch outcome and returns an error when any
// release was not organized, so the process exits nonzero.
func reportLedger(results []orchestrate.ReleaseResult) error {
	succeeded := 0
	for _, res := range results {
		if res.Succeeded {
			succeeded++
			fmt.Printf("+ %s (from %s)\n", res.Release, res.Chosen.Username)
		} else {
			fmt.Printf("x %s (%s)\n", res.Release, res.Reason)
		}
	}

	fmt.Printf("\nOrganized %d/%d releases\n", succeeded, len(results))
	if succeeded < len(results) {
		return fmt.Errorf("%d release(s) not organized", len(results)-succeeded)
	}
	return nil
}
