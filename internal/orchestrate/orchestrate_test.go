package orchestrate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rymdl/rymdl/internal/model"
	"github.com/rymdl/rymdl/internal/search"
	"github.com/rymdl/rymdl/internal/slskd"
)

// fakeBroker scripts search results and transfer outcomes. Transfers
// report InProgress on the first poll and their final state afterward,
// so the poll loop is exercised.
type fakeBroker struct {
	mu        sync.Mutex
	results   map[string][]model.Candidate   // search id (the query) -> stabilized candidates
	outcomes  map[string]model.TransferState // file path -> final state, default Succeeded
	hang      map[string]bool                // username -> transfers never finish
	polls     map[string]int                 // username -> poll count
	enqueued  []string                       // usernames in enqueue order
	searchErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		results:  make(map[string][]model.Candidate),
		outcomes: make(map[string]model.TransferState),
		hang:     make(map[string]bool),
		polls:    make(map[string]int),
	}
}

func (f *fakeBroker) Search(ctx context.Context, query string) (string, error) {
	if f.searchErr != nil {
		return "", f.searchErr
	}
	return query, nil
}

func (f *fakeBroker) SearchStabilized(ctx context.Context, id string) ([]model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[id], nil
}

func (f *fakeBroker) Enqueue(ctx context.Context, cand model.Candidate) ([]slskd.TransferID, error) {
	f.mu.Lock()
	f.enqueued = append(f.enqueued, cand.Username)
	f.mu.Unlock()

	ids := make([]slskd.TransferID, len(cand.Files))
	for i, file := range cand.Files {
		ids[i] = slskd.TransferID{Username: cand.Username, Path: file.Name}
	}
	return ids, nil
}

func (f *fakeBroker) PollTransfers(ctx context.Context, ids []slskd.TransferID) ([]slskd.TransferStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	username := ids[0].Username
	f.polls[username]++

	statuses := make([]slskd.TransferStatus, len(ids))
	for i, id := range ids {
		state := model.StateInProgress
		if !f.hang[username] && f.polls[username] >= 2 {
			state = model.StateSucceeded
			if s, ok := f.outcomes[id.Path]; ok {
				state = s
			}
		}
		statuses[i] = slskd.TransferStatus{ID: id, State: state}
	}
	return statuses, nil
}

type fakeOrganizer struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeOrganizer) Organize(rel model.Release, remoteDir string) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteDir)
	return nil
}

func (f *fakeOrganizer) TargetDir(rel model.Release) string {
	return "/library/" + rel.String()
}

func makeCandidate(username, dir, format string, files ...string) model.Candidate {
	fs := make([]model.File, len(files))
	for i, name := range files {
		fs[i] = model.File{
			Name:      dir + `\` + name,
			Size:      1 << 20,
			BitRate:   320,
			Extension: format,
		}
	}
	return model.Candidate{
		Username:    username,
		Directory:   dir,
		Files:       fs,
		Format:      format,
		BitRate:     320,
		HasFreeSlot: true,
	}
}

func testOptions() Options {
	return Options{
		Constraints:      search.Constraints{MinFiles: 1},
		PreferredFormats: []string{"flac", "mp3"},
		PollInterval:     time.Millisecond,
	}
}

var okComputer = model.Release{Artist: "Radiohead", Title: "OK Computer", Year: 1997}

const okComputerDir = `Music\Radiohead\OK Computer (1997)`

func TestRunSuccess(t *testing.T) {
	broker := newFakeBroker()
	broker.results[okComputer.Query()] = []model.Candidate{
		makeCandidate("goodpeer", okComputerDir, "flac", "01.flac", "02.flac"),
	}
	org := &fakeOrganizer{}

	orc := New(broker, org, testOptions())
	res := orc.Run(context.Background(), okComputer)

	if !res.Succeeded {
		t.Fatalf("Run failed: reason=%q err=%v", res.Reason, res.Err)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if res.Chosen == nil || res.Chosen.Username != "goodpeer" {
		t.Errorf("Chosen = %+v, want goodpeer", res.Chosen)
	}
	if len(org.calls) != 1 || org.calls[0] != okComputerDir {
		t.Errorf("organized dirs = %v", org.calls)
	}
}

func TestRunNoCandidates(t *testing.T) {
	broker := newFakeBroker()
	org := &fakeOrganizer{}

	orc := New(broker, org, testOptions())
	res := orc.Run(context.Background(), okComputer)

	if res.Succeeded {
		t.Fatal("Run succeeded with no candidates")
	}
	if res.Reason != ReasonNoCandidates {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonNoCandidates)
	}
	if len(org.calls) != 0 {
		t.Errorf("organizer was called: %v", org.calls)
	}
}

func TestRunRetriesAlternateOnFailure(t *testing.T) {
	failing := makeCandidate("fastpeer", okComputerDir, "flac", "01.flac")
	working := makeCandidate("slowpeer", okComputerDir, "mp3", "01.mp3")

	broker := newFakeBroker()
	broker.results[okComputer.Query()] = []model.Candidate{failing, working}
	broker.outcomes[failing.Files[0].Name] = model.StateFailedTerminal
	org := &fakeOrganizer{}

	orc := New(broker, org, testOptions())
	res := orc.Run(context.Background(), okComputer)

	if !res.Succeeded {
		t.Fatalf("Run failed: reason=%q err=%v", res.Reason, res.Err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	// flac ranks first, so fastpeer is tried and fails, then slowpeer.
	if want := []string{"fastpeer", "slowpeer"}; len(broker.enqueued) != 2 ||
		broker.enqueued[0] != want[0] || broker.enqueued[1] != want[1] {
		t.Errorf("enqueue order = %v, want %v", broker.enqueued, want)
	}
}

func TestRunPartialDownloadCondemnsCandidate(t *testing.T) {
	cand := makeCandidate("peer", okComputerDir, "flac", "01.flac", "02.flac")

	broker := newFakeBroker()
	broker.results[okComputer.Query()] = []model.Candidate{cand}
	// One file lands, the other dies. The candidate must count as failed.
	broker.outcomes[cand.Files[1].Name] = model.StateFailedTerminal
	org := &fakeOrganizer{}

	orc := New(broker, org, testOptions())
	res := orc.Run(context.Background(), okComputer)

	if res.Succeeded {
		t.Fatal("partial download reported as success")
	}
	if res.Reason != ReasonCandidatesExhausted {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonCandidatesExhausted)
	}
	if len(org.calls) != 0 {
		t.Errorf("organizer was called for a partial download: %v", org.calls)
	}
}

func TestRunCandidatesExhausted(t *testing.T) {
	a := makeCandidate("peer1", okComputerDir, "flac", "01.flac")
	b := makeCandidate("peer2", okComputerDir, "flac", "01.flac")

	broker := newFakeBroker()
	broker.results[okComputer.Query()] = []model.Candidate{a, b}
	broker.outcomes[a.Files[0].Name] = model.StateFailedTerminal
	broker.outcomes[b.Files[0].Name] = model.StateFailedTerminal
	org := &fakeOrganizer{}

	orc := New(broker, org, testOptions())
	res := orc.Run(context.Background(), okComputer)

	if res.Succeeded {
		t.Fatal("Run succeeded though every candidate failed")
	}
	if res.Reason != ReasonCandidatesExhausted {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonCandidatesExhausted)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
}

func TestRunDeadlineExceeded(t *testing.T) {
	cand := makeCandidate("stuckpeer", okComputerDir, "flac", "01.flac")

	broker := newFakeBroker()
	broker.results[okComputer.Query()] = []model.Candidate{cand}
	broker.hang["stuckpeer"] = true
	org := &fakeOrganizer{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	orc := New(broker, org, testOptions())
	res := orc.Run(ctx, okComputer)

	if res.Succeeded {
		t.Fatal("Run succeeded past the deadline")
	}
	if res.Reason != ReasonDeadlineExceeded {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonDeadlineExceeded)
	}
}

func TestRunOrganizeFailed(t *testing.T) {
	broker := newFakeBroker()
	broker.results[okComputer.Query()] = []model.Candidate{
		makeCandidate("peer", okComputerDir, "flac", "01.flac"),
	}
	org := &fakeOrganizer{fail: true}

	orc := New(broker, org, testOptions())
	res := orc.Run(context.Background(), okComputer)

	if res.Succeeded {
		t.Fatal("Run succeeded though organize failed")
	}
	if res.Reason != ReasonOrganizeFailed {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonOrganizeFailed)
	}
}

func TestRunSelectedUsesChosenAlternative(t *testing.T) {
	first := makeCandidate("peer1", okComputerDir, "flac", "01.flac")
	second := makeCandidate("peer2", okComputerDir, "mp3", "01.mp3")
	rec := search.NewSelectionRecord([]model.Candidate{first, second}, 1)

	broker := newFakeBroker()
	broker.searchErr = errors.New("search must not run")
	org := &fakeOrganizer{}

	orc := New(broker, org, testOptions())
	res := orc.RunSelected(context.Background(), okComputer, rec)

	if !res.Succeeded {
		t.Fatalf("RunSelected failed: reason=%q err=%v", res.Reason, res.Err)
	}
	if len(broker.enqueued) != 1 || broker.enqueued[0] != "peer2" {
		t.Errorf("enqueued = %v, want chosen peer2 first", broker.enqueued)
	}
}

func TestRunSelectedNilRecord(t *testing.T) {
	orc := New(newFakeBroker(), &fakeOrganizer{}, testOptions())
	res := orc.RunSelected(context.Background(), okComputer, nil)
	if res.Reason != ReasonNoCandidates {
		t.Errorf("Reason = %q, want %q", res.Reason, ReasonNoCandidates)
	}
}

func TestCoordinatorLedgerInCallerOrder(t *testing.T) {
	releases := []model.Release{
		{Artist: "Radiohead", Title: "OK Computer", Year: 1997},
		{Artist: "Nobody", Title: "Unfindable", Year: 2001},
		{Artist: "Neurosis", Title: "Times of Grace", Year: 1999},
	}

	broker := newFakeBroker()
	broker.results[releases[0].Query()] = []model.Candidate{
		makeCandidate("peer1", `Music\Radiohead\OK Computer (1997)`, "flac", "01.flac"),
	}
	broker.results[releases[2].Query()] = []model.Candidate{
		makeCandidate("peer2", `Music\Neurosis\Times of Grace (1999)`, "flac", "01.flac"),
	}
	org := &fakeOrganizer{}

	coord := NewCoordinator(New(broker, org, testOptions()), 2, time.Minute)
	results, err := coord.Run(context.Background(), releases)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, res := range results {
		if res.Release != releases[i] {
			t.Errorf("results[%d] is %s, want %s (caller order)", i, res.Release, releases[i])
		}
	}
	if !results[0].Succeeded || !results[2].Succeeded {
		t.Errorf("expected releases 0 and 2 to succeed: %+v", results)
	}
	if results[1].Succeeded || results[1].Reason != ReasonNoCandidates {
		t.Errorf("results[1] = %+v, want no candidates", results[1])
	}
}

func TestCoordinatorSharedDeadline(t *testing.T) {
	releases := []model.Release{
		{Artist: "Radiohead", Title: "OK Computer", Year: 1997},
		{Artist: "Portishead", Title: "Dummy", Year: 1994},
	}

	broker := newFakeBroker()
	broker.results[releases[0].Query()] = []model.Candidate{
		makeCandidate("quickpeer", `Music\Radiohead\OK Computer (1997)`, "flac", "01.flac"),
	}
	broker.results[releases[1].Query()] = []model.Candidate{
		makeCandidate("stuckpeer", `Music\Portishead\Dummy (1994)`, "flac", "01.flac"),
	}
	broker.hang["stuckpeer"] = true
	org := &fakeOrganizer{}

	coord := NewCoordinator(New(broker, org, testOptions()), 2, 100*time.Millisecond)
	results, err := coord.Run(context.Background(), releases)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if !results[0].Succeeded {
		t.Errorf("fast release should finish before the deadline: %+v", results[0])
	}
	if results[1].Succeeded || results[1].Reason != ReasonDeadlineExceeded {
		t.Errorf("stuck release = %+v, want deadline exceeded", results[1])
	}
}

func TestCoordinatorAbortsOnAuthFailure(t *testing.T) {
	broker := newFakeBroker()
	broker.searchErr = &slskd.AuthError{Status: 401}
	org := &fakeOrganizer{}

	coord := NewCoordinator(New(broker, org, testOptions()), 2, time.Minute)
	_, err := coord.Run(context.Background(), []model.Release{okComputer})

	if !slskd.IsAuth(err) {
		t.Errorf("Run error = %v, want auth failure", err)
	}
}

func TestCoordinatorSearchBuildsSelections(t *testing.T) {
	releases := []model.Release{
		{Artist: "Radiohead", Title: "OK Computer", Year: 1997},
		{Artist: "Nobody", Title: "Unfindable", Year: 2001},
	}

	flac := makeCandidate("peer1", `Music\Radiohead\OK Computer (1997)`, "flac", "01.flac")
	mp3 := makeCandidate("peer2", `Music\Radiohead\OK Computer (1997)`, "mp3", "01.mp3")

	broker := newFakeBroker()
	// mp3 listed first; ranking must still put flac on top.
	broker.results[releases[0].Query()] = []model.Candidate{mp3, flac}
	org := &fakeOrganizer{}

	coord := NewCoordinator(New(broker, org, testOptions()), 2, time.Minute)
	selections, err := coord.Search(context.Background(), releases)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}

	rec := selections[releases[0].String()]
	if rec == nil {
		t.Fatal("no record for found release")
	}
	chosen, ok := rec.Chosen()
	if !ok || chosen.Username != "peer1" || chosen.Format != "flac" {
		t.Errorf("chosen = %+v, want flac from peer1", chosen)
	}

	if rec, present := selections[releases[1].String()]; !present || rec != nil {
		t.Errorf("unfindable release should map to an explicit nil record, got %+v (present=%v)", rec, present)
	}
}

func TestCoordinatorSnapshot(t *testing.T) {
	broker := newFakeBroker()
	broker.results[okComputer.Query()] = []model.Candidate{
		makeCandidate("peer", okComputerDir, "flac", "01.flac"),
	}
	org := &fakeOrganizer{}

	coord := NewCoordinator(New(broker, org, testOptions()), 1, time.Minute)
	if _, err := coord.Run(context.Background(), []model.Release{okComputer}); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	snap := coord.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d entries, want 1", len(snap))
	}
	if !snap[0].Done || !snap[0].Succeeded || snap[0].Phase != PhaseDone {
		t.Errorf("snapshot = %+v, want done and succeeded", snap[0])
	}
}
