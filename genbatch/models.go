package genbatch

// Request is one unit of work inside a batch submission. CorrelationID is the
// only mechanism for mapping the unordered result line back to its origin.
type Request struct {
	CorrelationID string
	Prompt        string
	MaxTokens     int
}

// Job lifecycle statuses reported by the generation service.
const (
	StatusSubmitted = "submitted"
	StatusRunning   = "in_progress"
	StatusEnded     = "ended"
)

// Job is the external asynchronous unit created by one batch submission.
type Job struct {
	ID     string `json:"id"`
	Status string `json:"processing_status"`
}

// Per-line outcomes. OutcomeInvalid is assigned locally to lines the service
// returned but this client could not decode.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeErrored   = "errored"
	OutcomeExpired   = "expired"
	OutcomeInvalid   = "invalid"
)

// ResultLine is one decoded entry of the newline-delimited result set.
type ResultLine struct {
	CorrelationID string
	Outcome       string
	Text          string
}

// Wire shapes of the batch endpoint (Anthropic Messages Batch API).

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestParams struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type batchRequest struct {
	CustomID string        `json:"custom_id"`
	Params   requestParams `json:"params"`
}

type submitPayload struct {
	Requests []batchRequest `json:"requests"`
}

type contentBlock struct {
	Text string `json:"text"`
}

type resultMessage struct {
	Content []contentBlock `json:"content"`
}

type lineResult struct {
	Type    string         `json:"type"`
	Message *resultMessage `json:"message"`
}

type resultEnvelope struct {
	CustomID string     `json:"custom_id"`
	Result   lineResult `json:"result"`
}
