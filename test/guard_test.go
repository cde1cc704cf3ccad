package test

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"tradefeed/joblock"
	"tradefeed/test/infra"
)

var flDSN = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")

// TestRunGuard_SingleClaimPerPeriod verifies that concurrent orchestrator
// invocations for the same scheduling period resolve to exactly one winner,
// so the external call budget is never double-spent.
func TestRunGuard_SingleClaimPerPeriod(t *testing.T) {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := *flDSN
	if dsn == "" {
		dsn = os.Getenv("TRADEFEED_TEST_PG_DSN")
	}
	if dsn == "" && !dockerAvailable(ctx) {
		t.Skip("no Postgres DSN and no Docker; set TRADEFEED_TEST_PG_DSN to run")
	}

	pgC, dsn, err := infra.StartPostgres16(ctx, dsn)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer pgC.Terminate(context.Background())

	pool, err := infra.ApplyMigrations(ctx, dsn)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()

	repo := joblock.NewRepository(pool)
	period := time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)

	const contenders = 8
	var claims, alreadyRan atomic.Int32
	var winner atomic.Value

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < contenders; i++ {
		g.Go(func() error {
			id, err := repo.Claim(gctx, joblock.JobGhostReplies, period)
			switch {
			case err == nil:
				claims.Add(1)
				winner.Store(id)
				return nil
			case errors.Is(err, joblock.ErrAlreadyRan):
				alreadyRan.Add(1)
				return nil
			default:
				return err
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("claim contenders errored: %v", err)
	}

	if got := claims.Load(); got != 1 {
		t.Fatalf("expected exactly 1 successful claim, got %d", got)
	}
	if got := alreadyRan.Load(); got != contenders-1 {
		t.Fatalf("expected %d losers, got %d", contenders-1, got)
	}

	// The winner can settle its run and the record shows up in the audit trail.
	runID := winner.Load().(string)
	if err := repo.Finish(ctx, runID, joblock.StatusSucceeded, map[string]int{"inserted": 5}); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	found := false
	for _, run := range runs {
		if run.ID == runID {
			found = true
			if run.Status != joblock.StatusSucceeded {
				t.Errorf("expected succeeded status, got %q", run.Status)
			}
			if run.FinishedAt == nil {
				t.Errorf("expected finished_at to be set")
			}
		}
	}
	if !found {
		t.Errorf("winner run %s missing from audit trail", runID)
	}

	// A released claim frees the period for a fresh attempt.
	period2 := period.AddDate(0, 0, 1)
	id2, err := repo.Claim(ctx, joblock.JobGhostReplies, period2)
	if err != nil {
		t.Fatalf("claim next period: %v", err)
	}
	if err := repo.Release(ctx, id2); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := repo.Claim(ctx, joblock.JobGhostReplies, period2); err != nil {
		t.Fatalf("expected re-claim after release to succeed, got %v", err)
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
