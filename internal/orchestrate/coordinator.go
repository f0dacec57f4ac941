package orchestrate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rymdl/rymdl/internal/model"
	"github.com/rymdl/rymdl/internal/search"
	"github.com/rymdl/rymdl/internal/slskd"
)

// ReleaseStatus is a point-in-time view of one release, for display.
type ReleaseStatus struct {
	Release   model.Release
	Phase     Phase
	Done      bool
	Succeeded bool
	Reason    AbandonReason
}

// Coordinator fans a batch of releases out over a bounded worker pool
// under one shared wall-clock deadline. Results come back in caller
// order regardless of which release finished first.
type Coordinator struct {
	orc     *Orchestrator
	limit   int
	timeout time.Duration

	mu       sync.Mutex
	statuses []ReleaseStatus
}

// NewCoordinator wraps an Orchestrator for batch runs. The
// coordinator hooks the orchestrator's phase callback to keep its
// status board current; an already-set callback still fires.
func NewCoordinator(orc *Orchestrator, limit int, timeout time.Duration) *Coordinator {
	if limit <= 0 {
		limit = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	c := &Coordinator{orc: orc, limit: limit, timeout: timeout}

	prev := orc.onPhase
	orc.onPhase = func(rel model.Release, p Phase) {
		c.setPhase(rel, p)
		if prev != nil {
			prev(rel, p)
		}
	}
	return c
}

// Run takes every release end to end: search, download, organize.
//
// The returned slice matches the input order. A non-nil error means
// the batch was aborted (broker authentication failure); per-release
// failures are reported in the results, not the error.
func (c *Coordinator) Run(ctx context.Context, releases []model.Release) ([]ReleaseResult, error) {
	return c.run(ctx, releases, func(ctx context.Context, rel model.Release) ReleaseResult {
		return c.orc.Run(ctx, rel)
	})
}

// RunSelected downloads releases from previously persisted selections,
// skipping the search phase. Releases missing from the selections are
// reported as having no candidates.
func (c *Coordinator) RunSelected(ctx context.Context, releases []model.Release, selections search.Selections) ([]ReleaseResult, error) {
	return c.run(ctx, releases, func(ctx context.Context, rel model.Release) ReleaseResult {
		return c.orc.RunSelected(ctx, rel, selections[rel.String()])
	})
}

// Search runs only the search phase for every release and returns the
// selections artifact with the top-ranked candidate chosen for each.
func (c *Coordinator) Search(ctx context.Context, releases []model.Release) (search.Selections, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	c.reset(releases)

	records := make([]*search.SelectionRecord, len(releases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	for i, rel := range releases {
		i, rel := i, rel
		g.Go(func() error {
			ranked, err := c.orc.SearchRelease(gctx, rel)
			c.setPhase(rel, PhaseDone)
			if err != nil {
				if slskd.IsAuth(err) {
					return err
				}
				c.orc.progress(ProgressEvent{Message: rel.String() + ": " + err.Error(), Level: LevelWarning})
				return nil
			}
			records[i] = search.NewSelectionRecord(ranked, 0)
			return nil
		})
	}
	err := g.Wait()

	selections := make(search.Selections, len(releases))
	for i, rel := range releases {
		selections[rel.String()] = records[i]
	}
	return selections, err
}

// Snapshot returns a copy of the per-release status board.
func (c *Coordinator) Snapshot() []ReleaseStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ReleaseStatus, len(c.statuses))
	copy(out, c.statuses)
	return out
}

func (c *Coordinator) run(ctx context.Context, releases []model.Release, f func(context.Context, model.Release) ReleaseResult) ([]ReleaseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	c.reset(releases)

	results := make([]ReleaseResult, len(releases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	for i, rel := range releases {
		i, rel := i, rel
		g.Go(func() error {
			res := f(gctx, rel)
			results[i] = res
			c.finish(rel, res)
			if res.Err != nil && slskd.IsAuth(res.Err) {
				// Every later call would be rejected the same way.
				return res.Err
			}
			return nil
		})
	}
	return results, g.Wait()
}

func (c *Coordinator) reset(releases []model.Release) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = make([]ReleaseStatus, len(releases))
	for i, rel := range releases {
		c.statuses[i] = ReleaseStatus{Release: rel, Phase: PhasePending}
	}
}

func (c *Coordinator) setPhase(rel model.Release, p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.statuses {
		if c.statuses[i].Release == rel {
			c.statuses[i].Phase = p
			return
		}
	}
}

func (c *Coordinator) finish(rel model.Release, res ReleaseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.statuses {
		if c.statuses[i].Release == rel {
			c.statuses[i].Done = true
			c.statuses[i].Succeeded = res.Succeeded
			c.statuses[i].Reason = res.Reason
			c.statuses[i].Phase = PhaseDone
			return
		}
	}
}
