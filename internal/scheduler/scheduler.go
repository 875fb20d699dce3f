package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/railsched/internal/booking"
	"github.com/example/railsched/internal/flow"
	"github.com/example/railsched/internal/jobs"
	"github.com/example/railsched/internal/rail"
	"github.com/example/railsched/internal/railapi"
)

// Booker runs one full browser booking attempt.
type Booker interface {
	Book(ctx context.Context, req booking.Request, creds rail.Credentials) (flow.Outcome, error)
}

// Verifier checks the target site reachability and inventory cheaply,
// before a browser is launched.
type Verifier interface {
	VerifySearch(ctx context.Context, req booking.Request) (*railapi.SearchReport, error)
}

// CredentialSource resolves the rail account to book under for a job owner.
type CredentialSource interface {
	RailCredentials(ctx context.Context, userID int64) (rail.Credentials, error)
}

// JobStore is the slice of the jobs repository the scheduler needs.
type JobStore interface {
	DueJobs(ctx context.Context, limit int) ([]jobs.Job, error)
	MarkAttempt(ctx context.Context, jobID int64, phase string, success bool, outcome string, lastErr *string) error
	SetStatus(ctx context.Context, jobID int64, status string, lastErr *string) error
}

// Scheduler polls for due jobs and runs booking attempts for them.
type Scheduler struct {
	Repo     JobStore
	Booker   Booker
	Verifier Verifier
	Creds    CredentialSource
	Interval time.Duration

	wg sync.WaitGroup

	// A browser attempt can outlive many poll ticks (the OTP wait alone runs
	// minutes), and last_attempt_at is only written when the attempt ends.
	// inflight keeps a job from being dispatched again while one is running.
	mu       sync.Mutex
	inflight map[int64]struct{}
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	js, err := s.Repo.DueJobs(ctx, 25)
	if err != nil {
		log.Printf("rail: scheduler: due jobs query failed: %v", err)
		return
	}

	now := time.Now()
	for _, j := range js {
		if j.NextAttemptAt(now).After(now) {
			continue
		}
		if !s.claim(j.ID) {
			continue
		}

		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(j.ID)
			s.runJobAttempt(ctx, j)
		}()
	}
}

func (s *Scheduler) claim(jobID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		s.inflight = make(map[int64]struct{})
	}
	if _, running := s.inflight[jobID]; running {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

func (s *Scheduler) release(jobID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, jobID)
}

func (s *Scheduler) runJobAttempt(ctx context.Context, j jobs.Job) {
	req := j.Request()

	// Cheap API probe first; skip the browser when the site is down or the
	// train is not in the search results yet.
	if s.Verifier != nil {
		report, err := s.Verifier.VerifySearch(ctx, req)
		if err != nil {
			msg := fmt.Sprintf("verify failed: %v", err)
			_ = s.Repo.MarkAttempt(ctx, j.ID, "verify", false, "", &msg)
			s.closeWindow(ctx, j)
			return
		}
		if !report.TrainMatched {
			msg := fmt.Sprintf("train %q not in search results (%d trains)", req.TrainName, len(report.Trains))
			_ = s.Repo.MarkAttempt(ctx, j.ID, "verify", false, "", &msg)
			s.closeWindow(ctx, j)
			return
		}
	}

	creds, err := s.Creds.RailCredentials(ctx, j.UserID)
	if err != nil {
		msg := fmt.Sprintf("no rail credentials for user %d: %v", j.UserID, err)
		_ = s.Repo.MarkAttempt(ctx, j.ID, "credentials", false, "", &msg)
		s.closeWindow(ctx, j)
		return
	}

	out, err := s.Booker.Book(ctx, req, creds)
	if err != nil {
		msg := fmt.Sprintf("attempt failed: %v", err)
		_ = s.Repo.MarkAttempt(ctx, j.ID, "book", false, "", &msg)
		s.closeWindow(ctx, j)
		return
	}

	if out.Status == flow.Completed {
		_ = s.Repo.MarkAttempt(ctx, j.ID, "completed", true, out.Status.String(), nil)
		return
	}
	msg := fmt.Sprintf("stage %q: %s", out.Stage, out.Reason)
	_ = s.Repo.MarkAttempt(ctx, j.ID, out.Stage, false, out.Status.String(), &msg)
	s.closeWindow(ctx, j)
}

// closeWindow marks the job failed once its attempt window has passed.
func (s *Scheduler) closeWindow(ctx context.Context, j jobs.Job) {
	if time.Now().After(j.WindowEndAt) {
		msg := "attempt window ended without a booking"
		_ = s.Repo.SetStatus(ctx, j.ID, jobs.StatusFailed, &msg)
	}
}
