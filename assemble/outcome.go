package assemble

// Outcome is the terminal state of one receive session.
type Outcome string

const (
	// OutcomeComplete means every part arrived and the file was restored.
	OutcomeComplete Outcome = "complete"
	// OutcomeStalled means no new part arrived within the stall timeout;
	// a draft and manifest were persisted if anything was received.
	OutcomeStalled Outcome = "stalled"
	// OutcomeInterrupted means an external cancellation ended the session;
	// a draft and manifest were persisted if anything was received.
	OutcomeInterrupted Outcome = "interrupted"
	// OutcomeEmpty means the session ended with nothing received; no
	// artifacts were written.
	OutcomeEmpty Outcome = "empty"
)

// Result reports how a receive session ended.
type Result struct {
	Outcome  Outcome
	FileName string
	Total    int
	Received int
	Missing  []int

	// RestoredPath is set for OutcomeComplete.
	RestoredPath string
	// DraftPath and ManifestPath are set when a partial session was
	// persisted.
	DraftPath    string
	ManifestPath string

	// AllPartsUnsaved marks the narrow race where every part was present
	// at interrupt time but the final file had not been written yet.
	// Nothing is persisted in that case; a re-run recaptures cleanly.
	AllPartsUnsaved bool
}
