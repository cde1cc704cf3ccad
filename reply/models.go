package reply

// Outcome is the terminal state of one orchestrator run.
type Outcome string

const (
	// OutcomeSuccess means every submitted request produced a persisted reply.
	OutcomeSuccess Outcome = "success"
	// OutcomePartialSuccess means the run ended but some result lines were
	// dropped during reconciliation or persistence.
	OutcomePartialSuccess Outcome = "partial_success"
	// OutcomeEmptyResult means no qualifying targets or personas existed, so
	// no external submission was made.
	OutcomeEmptyResult Outcome = "empty_result"
	// OutcomeTimeout means the poll budget was exhausted before the batch
	// ended. The run ends cleanly with zero insertions; the external job may
	// still complete out-of-band with no consumer.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeAlreadyRan means this scheduling period was already claimed by
	// another invocation.
	OutcomeAlreadyRan Outcome = "already_ran"
	// OutcomeFailed means the run aborted with a hard error.
	OutcomeFailed Outcome = "failed"
)

// Reconciliation breaks result lines down by class so operators can tell
// systemic generation failures from expected self-filtering.
type Reconciliation struct {
	Succeeded    int `json:"succeeded"`
	Errored      int `json:"errored"`
	Expired      int `json:"expired"`
	InvalidLocal int `json:"invalid_local"`
}

// RunSummary is returned to the caller and written to the run audit trail.
type RunSummary struct {
	Outcome         Outcome        `json:"outcome"`
	BatchJobID      string         `json:"batch_job_id,omitempty"`
	Requests        int            `json:"requests"`
	Inserted        int            `json:"inserted"`
	PersonasTouched int            `json:"personas_touched"`
	Reconciliation  Reconciliation `json:"reconciliation"`
}

// slot maps a correlation key back to its (persona, target) pair. The table of
// slots lives only for the duration of one run.
type slot struct {
	personaID string
	targetID  string
}
