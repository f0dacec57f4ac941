package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rymdl/rymdl/internal/model"
	"github.com/rymdl/rymdl/internal/search"
	"github.com/rymdl/rymdl/internal/slskd"
)

// Broker is the transfer-broker surface the orchestrator drives.
// *slskd.Client implements it; tests script it.
type Broker interface {
	Search(ctx context.Context, query string) (string, error)
	SearchStabilized(ctx context.Context, id string) ([]model.Candidate, error)
	Enqueue(ctx context.Context, cand model.Candidate) ([]slskd.TransferID, error)
	PollTransfers(ctx context.Context, ids []slskd.TransferID) ([]slskd.TransferStatus, error)
}

// Organizer moves a completed download into the library layout.
// organize.Library implements it.
type Organizer interface {
	Organize(rel model.Release, remoteDir string) error
	TargetDir(rel model.Release) string
}

// Tagger rewrites tags of an organized release directory.
// audio.Tagger implements it.
type Tagger interface {
	TagRelease(dir string, rel model.Release) (int, error)
}

// errTransferFailed marks a candidate whose transfers went terminal
// without all succeeding. The caller moves on to the next alternative.
var errTransferFailed = errors.New("transfer failed")

// ReleaseResult is the final outcome for one release.
type ReleaseResult struct {
	Release   model.Release
	Succeeded bool
	Reason    AbandonReason
	Attempts  int

	// Chosen is the candidate that delivered the release, when one did.
	Chosen *model.Candidate

	Err error
}

// Options configures an Orchestrator.
type Options struct {
	Constraints      search.Constraints
	PreferredFormats []string

	// PollInterval is the delay between transfer polls.
	PollInterval time.Duration

	// MaxAttempts bounds how many ranked candidates are tried per
	// release before it is abandoned.
	MaxAttempts int

	// Tagger, when set, retags organized releases. Tag failures only
	// warn; the release already landed.
	Tagger Tagger

	OnProgress func(ProgressEvent)
	OnPhase    func(model.Release, Phase)
}

// Orchestrator runs one release through its whole lifecycle: search,
// rank, enqueue, poll, organize, with alternates retried on failure.
type Orchestrator struct {
	broker    Broker
	organizer Organizer
	tagger    Tagger

	constraints      search.Constraints
	preferredFormats []string
	pollInterval     time.Duration
	maxAttempts      int

	onProgress func(ProgressEvent)
	onPhase    func(model.Release, Phase)
}

// New creates an Orchestrator.
func New(broker Broker, organizer Organizer, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Orchestrator{
		broker:           broker,
		organizer:        organizer,
		tagger:           opts.Tagger,
		constraints:      opts.Constraints,
		preferredFormats: opts.PreferredFormats,
		pollInterval:     opts.PollInterval,
		maxAttempts:      opts.MaxAttempts,
		onProgress:       opts.OnProgress,
		onPhase:          opts.OnPhase,
	}
}

// SearchRelease searches the broker for a release and returns the
// filtered candidates, best first.
func (o *Orchestrator) SearchRelease(ctx context.Context, rel model.Release) ([]model.Candidate, error) {
	o.phase(rel, PhaseSearching)
	o.progress(ProgressEvent{Message: fmt.Sprintf("Searching: %s", rel), Level: LevelVerbose})

	id, err := o.broker.Search(ctx, rel.Query())
	if err != nil {
		return nil, err
	}
	raw, err := o.broker.SearchStabilized(ctx, id)
	if err != nil && len(raw) == 0 {
		return nil, err
	}

	filtered := search.Filter(raw, rel, o.constraints)
	ranked := search.Rank(filtered, o.preferredFormats)
	o.progress(ProgressEvent{
		Message: fmt.Sprintf("%s: %d of %d results usable", rel, len(ranked), len(raw)),
		Level:   LevelVerbose,
	})
	return ranked, nil
}

// Run takes a release end to end: search, then try ranked candidates
// until one lands in the library or the attempt budget runs out.
func (o *Orchestrator) Run(ctx context.Context, rel model.Release) ReleaseResult {
	ranked, err := o.SearchRelease(ctx, rel)
	if err != nil {
		return o.failure(rel, err)
	}
	if len(ranked) == 0 {
		o.progress(ProgressEvent{Message: fmt.Sprintf("No candidates for %s", rel), Level: LevelWarning})
		o.phase(rel, PhaseDone)
		return ReleaseResult{Release: rel, Reason: ReasonNoCandidates}
	}
	if len(ranked) > o.maxAttempts {
		ranked = ranked[:o.maxAttempts]
	}
	return o.runCandidates(ctx, rel, ranked)
}

// RunSelected downloads a release from a previously persisted
// selection record, chosen alternative first.
func (o *Orchestrator) RunSelected(ctx context.Context, rel model.Release, rec *search.SelectionRecord) ReleaseResult {
	if rec == nil || len(rec.Alternatives) == 0 {
		o.phase(rel, PhaseDone)
		return ReleaseResult{Release: rel, Reason: ReasonNoCandidates}
	}

	chosen := rec.Selected
	if chosen < 0 || chosen >= len(rec.Alternatives) {
		chosen = 0
	}
	candidates := make([]model.Candidate, 0, len(rec.Alternatives))
	candidates = append(candidates, rec.Alternatives[chosen].Candidate())
	for i, alt := range rec.Alternatives {
		if i != chosen {
			candidates = append(candidates, alt.Candidate())
		}
	}
	return o.runCandidates(ctx, rel, candidates)
}

func (o *Orchestrator) runCandidates(ctx context.Context, rel model.Release, candidates []model.Candidate) ReleaseResult {
	result := ReleaseResult{Release: rel}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			result.Err = err
			result.Reason = reasonForContext(err)
			return result
		}

		cand := candidates[i]
		result.Attempts = i + 1
		if i > 0 {
			o.progress(ProgressEvent{
				Message: fmt.Sprintf("%s: trying alternative %d (%s, %s)", rel, i+1, cand.Username, cand.Format),
				Level:   LevelInfo,
			})
		}

		if err := o.downloadCandidate(ctx, rel, cand); err != nil {
			if slskd.IsAuth(err) {
				result.Err = err
				result.Reason = ReasonBrokerError
				return result
			}
			if reason := reasonForContext(err); reason != "" {
				result.Err = err
				result.Reason = reason
				return result
			}
			o.progress(ProgressEvent{
				Message: fmt.Sprintf("%s: candidate from %s failed: %v", rel, cand.Username, err),
				Level:   LevelWarning,
			})
			continue
		}

		o.phase(rel, PhaseOrganizing)
		if err := o.organizer.Organize(rel, cand.Directory); err != nil {
			result.Err = err
			result.Reason = ReasonOrganizeFailed
			return result
		}

		if o.tagger != nil {
			if _, err := o.tagger.TagRelease(o.organizer.TargetDir(rel), rel); err != nil {
				o.progress(ProgressEvent{Message: fmt.Sprintf("%s: tagging failed: %v", rel, err), Level: LevelWarning})
			}
		}

		result.Succeeded = true
		result.Chosen = &cand
		o.phase(rel, PhaseDone)
		o.progress(ProgressEvent{Message: fmt.Sprintf("Organized: %s", rel), Level: LevelSuccess})
		return result
	}

	result.Reason = ReasonCandidatesExhausted
	o.phase(rel, PhaseDone)
	return result
}

// downloadCandidate enqueues all files of a candidate and polls until
// every transfer succeeds. A single failed file condemns the whole
// candidate; a partial release is worthless in the library.
func (o *Orchestrator) downloadCandidate(ctx context.Context, rel model.Release, cand model.Candidate) error {
	o.phase(rel, PhaseEnqueuing)
	ids, err := o.broker.Enqueue(ctx, cand)
	if err != nil {
		return err
	}
	o.phase(rel, PhaseDownloading)

	lastDone := -1
	for {
		statuses, err := o.broker.PollTransfers(ctx, ids)
		if err != nil {
			var nerr *slskd.NetworkError
			if errors.As(err, &nerr) {
				// Transient; the next poll may succeed.
				o.progress(ProgressEvent{Message: fmt.Sprintf("%s: poll failed: %v", rel, err), Level: LevelVerbose})
			} else {
				return err
			}
		} else {
			done := 0
			for _, s := range statuses {
				switch s.State {
				case model.StateSucceeded:
					done++
				case model.StateFailedTerminal, model.StateFailedTransient:
					return fmt.Errorf("%w: %s: %s", errTransferFailed, s.ID.Path, s.State)
				}
			}
			if done == len(statuses) {
				return nil
			}
			if done != lastDone {
				lastDone = done
				o.progress(ProgressEvent{
					Message: fmt.Sprintf("%s: %d/%d files", rel, done, len(statuses)),
					Level:   LevelVerbose,
				})
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}
}

func (o *Orchestrator) failure(rel model.Release, err error) ReleaseResult {
	res := ReleaseResult{Release: rel, Err: err}
	if reason := reasonForContext(err); reason != "" {
		res.Reason = reason
	} else {
		res.Reason = ReasonBrokerError
	}
	o.phase(rel, PhaseDone)
	o.progress(ProgressEvent{Message: fmt.Sprintf("%s: %v", rel, err), Level: LevelError})
	return res
}

// reasonForContext maps context termination to an abandon reason, or
// "" when err is not a context error.
func reasonForContext(err error) AbandonReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return ReasonAborted
	default:
		return ""
	}
}

func (o *Orchestrator) progress(event ProgressEvent) {
	if o.onProgress != nil {
		o.onProgress(event)
	}
}

func (o *Orchestrator) phase(rel model.Release, p Phase) {
	if o.onPhase != nil {
		o.onPhase(rel, p)
	}
}
