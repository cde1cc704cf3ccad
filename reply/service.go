package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/samber/lo"

	"tradefeed/genbatch"
	"tradefeed/joblock"
	"tradefeed/metrics"
	"tradefeed/persona"
	"tradefeed/post"
	"tradefeed/schedule"
)

const resultFetchAttempts = 3

// PersonaDirectory abstracts persona reads and the activity stamp.
type PersonaDirectory interface {
	ListActive(ctx context.Context) ([]persona.Persona, error)
	TouchLastActivity(ctx context.Context, ids []string, at time.Time) error
}

// TargetSource abstracts reply target selection.
type TargetSource interface {
	TopSince(ctx context.Context, since time.Time, limit int) ([]post.TargetPost, error)
}

// ReplyWriter abstracts reply persistence.
type ReplyWriter interface {
	InsertReply(ctx context.Context, reply post.Reply) (bool, error)
}

// BatchClient abstracts the external batched generation service.
type BatchClient interface {
	Submit(ctx context.Context, reqs []genbatch.Request) (genbatch.Job, error)
	Status(ctx context.Context, jobID string) (genbatch.Job, error)
	Results(ctx context.Context, jobID string) ([]genbatch.ResultLine, error)
}

// RunGuard abstracts the run-level idempotency lock.
type RunGuard interface {
	Claim(ctx context.Context, kind string, date time.Time) (string, error)
	Release(ctx context.Context, id string) error
	Finish(ctx context.Context, id, status string, summary any) error
}

// Service drives one orchestrator run through target selection, persona
// sampling, a single batched submission, bounded polling, reconciliation, and
// persistence. A run is single-threaded; the only asynchrony is the external
// call boundary.
type Service struct {
	personas PersonaDirectory
	targets  TargetSource
	writer   ReplyWriter
	batch    BatchClient
	guard    RunGuard
	logger   *slog.Logger

	targetLimit     int
	perPersona      int
	maxTokens       int
	replyMaxLength  int
	pollInterval    time.Duration
	pollMaxAttempts int

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

type ServiceParams struct {
	Personas PersonaDirectory
	Targets  TargetSource
	Writer   ReplyWriter
	Batch    BatchClient
	Guard    RunGuard
	Logger   *slog.Logger

	TargetLimit       int
	RepliesPerPersona int
	MaxTokens         int
	ReplyMaxLength    int
	PollInterval      time.Duration
	PollMaxAttempts   int
}

func NewService(params ServiceParams) *Service {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		personas:        params.Personas,
		targets:         params.Targets,
		writer:          params.Writer,
		batch:           params.Batch,
		guard:           params.Guard,
		logger:          logger.With("job", "ghost-replies"),
		targetLimit:     params.TargetLimit,
		perPersona:      params.RepliesPerPersona,
		maxTokens:       params.MaxTokens,
		replyMaxLength:  params.ReplyMaxLength,
		pollInterval:    params.PollInterval,
		pollMaxAttempts: params.PollMaxAttempts,
		now:             time.Now,
		shuffle:         rand.Shuffle,
	}
}

// WithClock overrides the time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithShuffle overrides the sampling shuffle, used by tests.
func (s *Service) WithShuffle(shuffle func(n int, swap func(i, j int))) *Service {
	s.shuffle = shuffle
	return s
}

// Run executes one orchestrator run. Soft failures (timeout, empty result,
// already-ran) return a summary with a nil error; only pre-submission aborts
// surface as errors, and those release the run lock so the whole run is safe
// to retry. Nothing downstream of submission ever resubmits.
func (s *Service) Run(ctx context.Context) (RunSummary, error) {
	now := s.now()
	runID, err := s.guard.Claim(ctx, joblock.JobGhostReplies, dateOf(now))
	if err != nil {
		if errors.Is(err, joblock.ErrAlreadyRan) {
			s.logger.InfoContext(ctx, "run already claimed for today, skipping")
			metrics.JobRuns.WithLabelValues(joblock.JobGhostReplies, string(OutcomeAlreadyRan)).Inc()
			return RunSummary{Outcome: OutcomeAlreadyRan}, nil
		}
		return RunSummary{}, err
	}

	summary, err := s.run(ctx, runID, now)
	outcome := summary.Outcome
	if err != nil {
		outcome = OutcomeFailed
	}
	metrics.JobRuns.WithLabelValues(joblock.JobGhostReplies, string(outcome)).Inc()
	return summary, err
}

func (s *Service) run(ctx context.Context, runID string, now time.Time) (RunSummary, error) {
	// Step 1: target selection since the start of the local day.
	targets, err := s.targets.TopSince(ctx, midnightOf(now), s.targetLimit)
	if err != nil {
		s.release(ctx, runID)
		return RunSummary{}, err
	}
	if len(targets) == 0 {
		return s.finishEmpty(ctx, runID, "no qualifying target posts today")
	}

	// Step 2: persona sampling.
	personas, err := s.personas.ListActive(ctx)
	if err != nil {
		s.release(ctx, runID)
		return RunSummary{}, err
	}
	if len(personas) == 0 {
		return s.finishEmpty(ctx, runID, "no active personas")
	}

	// Step 3: request construction.
	requests, table := s.buildRequests(personas, targets)
	if len(requests) == 0 {
		return s.finishEmpty(ctx, runID, "no eligible persona/target pairs")
	}

	// Step 4: single batched submission. A failure here means nothing was
	// created externally, so the lock is released and the run can be redone.
	job, err := s.batch.Submit(ctx, requests)
	if err != nil {
		s.release(ctx, runID)
		return RunSummary{}, fmt.Errorf("reply: submit batch: %w", err)
	}

	summary := RunSummary{BatchJobID: job.ID, Requests: len(requests)}
	s.logger.InfoContext(ctx, "batch submitted", "batch_job_id", job.ID, "requests", len(requests))

	// Step 5: bounded polling. Individual poll errors consume attempts; an
	// exhausted budget is a soft failure, never a resubmission.
	err = schedule.Poll(ctx, s.pollInterval, s.pollMaxAttempts, func(ctx context.Context) (bool, error) {
		status, err := s.batch.Status(ctx, job.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "poll failed", "batch_job_id", job.ID, "error", err)
			return false, err
		}
		return status.Status == genbatch.StatusEnded, nil
	})
	if err != nil {
		if errors.Is(err, schedule.ErrBudgetExhausted) {
			summary.Outcome = OutcomeTimeout
			s.logger.WarnContext(ctx, "batch did not end within the poll budget",
				"batch_job_id", job.ID, "attempts", s.pollMaxAttempts)
			s.finish(ctx, runID, joblock.StatusTimedOut, summary)
			return summary, nil
		}
		s.finish(ctx, runID, joblock.StatusFailed, summary)
		return summary, fmt.Errorf("reply: poll batch: %w", err)
	}

	// Step 6: result fetch, retried on its own; the job already ended.
	var lines []genbatch.ResultLine
	err = schedule.Retry(ctx, resultFetchAttempts, s.pollInterval, func(ctx context.Context) error {
		var fetchErr error
		lines, fetchErr = s.batch.Results(ctx, job.ID)
		return fetchErr
	})
	if err != nil {
		s.finish(ctx, runID, joblock.StatusFailed, summary)
		return summary, fmt.Errorf("reply: fetch results: %w", err)
	}

	// Steps 6-7: reconciliation and persistence.
	s.reconcile(ctx, &summary, lines, table, job.ID)

	status := joblock.StatusPartial
	summary.Outcome = OutcomePartialSuccess
	if summary.Inserted == summary.Requests {
		status = joblock.StatusSucceeded
		summary.Outcome = OutcomeSuccess
	}
	s.finish(ctx, runID, status, summary)

	s.logger.InfoContext(ctx, "run ended",
		"outcome", summary.Outcome,
		"requests", summary.Requests,
		"inserted", summary.Inserted,
		"personas_touched", summary.PersonasTouched,
		"succeeded", summary.Reconciliation.Succeeded,
		"errored", summary.Reconciliation.Errored,
		"expired", summary.Reconciliation.Expired,
		"invalid_local", summary.Reconciliation.InvalidLocal)

	return summary, nil
}

// buildRequests samples up to perPersona targets for each persona, excluding
// the persona's own posts, and returns the requests plus the correlation
// table used to map unordered results back to their slots.
func (s *Service) buildRequests(personas []persona.Persona, targets []post.TargetPost) ([]genbatch.Request, map[string]slot) {
	requests := make([]genbatch.Request, 0, len(personas)*s.perPersona)
	table := make(map[string]slot)

	for _, p := range personas {
		eligible := lo.Filter(targets, func(t post.TargetPost, _ int) bool {
			return t.AuthorID == nil || *t.AuthorID != p.ID
		})

		s.shuffle(len(eligible), func(i, j int) {
			eligible[i], eligible[j] = eligible[j], eligible[i]
		})
		if len(eligible) > s.perPersona {
			eligible = eligible[:s.perPersona]
		}

		for _, t := range eligible {
			key := p.ID + "_" + t.ID
			table[key] = slot{personaID: p.ID, targetID: t.ID}
			requests = append(requests, genbatch.Request{
				CorrelationID: key,
				Prompt:        buildPrompt(p.Name, p.Trade, t.Content),
				MaxTokens:     s.maxTokens,
			})
		}
	}

	return requests, table
}

// reconcile maps each result line back to its slot, validates the generated
// text, persists accepted replies, and stamps contributing personas. Dropped
// lines are counted by class, never fatal.
func (s *Service) reconcile(ctx context.Context, summary *RunSummary, lines []genbatch.ResultLine, table map[string]slot, batchJobID string) {
	touched := make(map[string]struct{})

	for _, line := range lines {
		metrics.BatchLines.WithLabelValues(line.Outcome).Inc()

		switch line.Outcome {
		case genbatch.OutcomeSucceeded:
		case genbatch.OutcomeErrored:
			summary.Reconciliation.Errored++
			continue
		case genbatch.OutcomeExpired:
			summary.Reconciliation.Expired++
			continue
		default:
			summary.Reconciliation.InvalidLocal++
			continue
		}

		body, ok := validateBody(line.Text, s.replyMaxLength)
		if !ok {
			summary.Reconciliation.InvalidLocal++
			s.logger.WarnContext(ctx, "dropping invalid generated reply", "correlation_id", line.CorrelationID)
			continue
		}

		sl, ok := table[line.CorrelationID]
		if !ok {
			summary.Reconciliation.InvalidLocal++
			s.logger.WarnContext(ctx, "result line has unknown correlation id", "correlation_id", line.CorrelationID)
			continue
		}
		summary.Reconciliation.Succeeded++

		inserted, err := s.writer.InsertReply(ctx, post.Reply{
			PersonaID:     sl.personaID,
			TargetPostID:  sl.targetID,
			Content:       body,
			SourceBatchID: batchJobID,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "reply insert failed", "correlation_id", line.CorrelationID, "error", err)
			continue
		}
		if !inserted {
			// Replayed reconciliation of an already-persisted slot.
			s.logger.InfoContext(ctx, "reply slot already persisted", "correlation_id", line.CorrelationID)
			continue
		}

		summary.Inserted++
		metrics.RepliesInserted.Inc()
		touched[sl.personaID] = struct{}{}
	}

	if len(touched) > 0 {
		ids := lo.Keys(touched)
		if err := s.personas.TouchLastActivity(ctx, ids, s.now()); err != nil {
			s.logger.WarnContext(ctx, "persona activity stamp failed", "error", err)
		} else {
			summary.PersonasTouched = len(ids)
		}
	}
}

func (s *Service) finishEmpty(ctx context.Context, runID, reason string) (RunSummary, error) {
	summary := RunSummary{Outcome: OutcomeEmptyResult}
	s.logger.InfoContext(ctx, "run ended with no work", "reason", reason)
	s.finish(ctx, runID, joblock.StatusEmpty, summary)
	return summary, nil
}

func (s *Service) finish(ctx context.Context, runID, status string, summary RunSummary) {
	if err := s.guard.Finish(ctx, runID, status, summary); err != nil {
		s.logger.ErrorContext(ctx, "finish run record failed", "run_id", runID, "error", err)
	}
}

func (s *Service) release(ctx context.Context, runID string) {
	if err := s.guard.Release(ctx, runID); err != nil {
		s.logger.ErrorContext(ctx, "release run lock failed", "run_id", runID, "error", err)
	}
}

func dateOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func midnightOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
