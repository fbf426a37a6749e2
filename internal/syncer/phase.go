package syncer

// Phase names one step of a backup or restore run. Transitions are
// monotonic: no phase is revisited within one run.
type Phase string

const (
	PhaseIdle Phase = "idle"

	PhasePreparing         Phase = "preparing"
	PhaseClearingPrevious  Phase = "clearing_previous"
	PhaseWritingCategories Phase = "writing_categories"
	PhaseWritingItems      Phase = "writing_items"
	PhaseWritingMetadata   Phase = "writing_metadata"

	PhaseReadingMetadata   Phase = "reading_metadata"
	PhaseReadingCategories Phase = "reading_categories"
	PhaseReadingItems      Phase = "reading_items"

	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Progress is one observable snapshot of a run: the current phase and a
// monotonically increasing completion fraction in [0, 1].
type Progress struct {
	Phase    Phase
	Fraction float64
}

// Observer receives progress snapshots. Called from the orchestrator's
// single logical thread of control, never concurrently.
type Observer func(Progress)
