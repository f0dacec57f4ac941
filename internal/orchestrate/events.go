package orchestrate

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a batch progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Phase is where a release currently is in its lifecycle.
type Phase int

const (
	PhasePending Phase = iota
	PhaseSearching
	PhaseEnqueuing
	PhaseDownloading
	PhaseOrganizing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseSearching:
		return "searching"
	case PhaseEnqueuing:
		return "enqueuing"
	case PhaseDownloading:
		return "downloading"
	case PhaseOrganizing:
		return "organizing"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// AbandonReason explains why a release did not land in the library.
type AbandonReason string

const (
	// ReasonNoCandidates means the search produced nothing that
	// survived filtering.
	ReasonNoCandidates AbandonReason = "no candidates"

	// ReasonCandidatesExhausted means every tried candidate failed to
	// deliver a complete release.
	ReasonCandidatesExhausted AbandonReason = "all candidates failed"

	// ReasonDeadlineExceeded means the shared batch deadline expired
	// before the release completed.
	ReasonDeadlineExceeded AbandonReason = "deadline exceeded"

	// ReasonAborted means the batch was cancelled, typically because
	// the broker rejected our credentials.
	ReasonAborted AbandonReason = "batch aborted"

	// ReasonOrganizeFailed means the files downloaded but could not be
	// moved into the library.
	ReasonOrganizeFailed AbandonReason = "organize failed"

	// ReasonBrokerError means the broker failed in a way retries
	// cannot fix.
	ReasonBrokerError AbandonReason = "broker error"
)
