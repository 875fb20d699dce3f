package flow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// OutcomeStatus is the terminal state of a full run.
type OutcomeStatus int

const (
	Completed OutcomeStatus = iota
	AwaitingManualStep
	Failed
)

func (s OutcomeStatus) String() string {
	switch s {
	case Completed:
		return "completed"
	case AwaitingManualStep:
		return "awaiting-manual-step"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is created once per run and immutable afterwards.
type Outcome struct {
	Status OutcomeStatus
	Stage  string // failing stage, or the stage that raised the manual step
	Reason string

	ManualKind string
	Deadline   time.Time // when the manual wait gave up
}

// ErrManualStepTimeout marks the bounded human-intervention wait elapsing
// without a success signal. An expected terminal state, not a crash.
var ErrManualStepTimeout = errors.New("manual step timed out")

const (
	defaultPollInterval  = 2 * time.Second
	defaultManualMaxWait = 7 * time.Minute
)

// Controller drives stages strictly in sequence over one page/session.
type Controller struct {
	Exec *Executor

	// PollInterval paces the manual-step wait loop; ManualMaxWait bounds it.
	PollInterval  time.Duration
	ManualMaxWait time.Duration

	Logf    func(format string, args ...any)
	OnStage func(name string, res StageResult) // diagnostics hook (screenshots)
}

// Run executes the stages in order. A Skipped or Advanced stage proceeds to
// the next; a failed Required stage halts the run; a failed Optional stage is
// recorded and passed over. Remaining budget is checked before every stage so
// the run fails fast instead of starting work it cannot finish.
func (c *Controller) Run(ctx context.Context, stages []Stage) Outcome {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return Outcome{Status: Failed, Stage: s.Name, Reason: fmt.Sprintf("run budget exhausted before stage: %v", err)}
		}
		c.logf("stage %q: starting", s.Name)
		res := c.Exec.Execute(ctx, s)
		c.logf("stage %q: %s %s", s.Name, res.Status, res.Reason)
		if c.OnStage != nil {
			c.OnStage(s.Name, res)
		}

		switch res.Status {
		case Advanced, Skipped:
			continue
		case AwaitManual:
			if out, ok := c.awaitManual(ctx, s.Name, res.Manual); !ok {
				return out
			}
		case StageFailed:
			if s.Severity == Required {
				return Outcome{Status: Failed, Stage: s.Name, Reason: failReason(res)}
			}
			c.logf("stage %q: optional, continuing past failure", s.Name)
		}
	}
	return Outcome{Status: Completed}
}

// awaitManual suspends automated progress and polls for a success signal.
// Returns ok=true when the signal appeared and the run may continue.
func (c *Controller) awaitManual(ctx context.Context, stage string, m *ManualStep) (Outcome, bool) {
	if m == nil || len(m.SuccessSignals) == 0 {
		return Outcome{Status: Failed, Stage: stage, Reason: "manual step without success signals"}, false
	}
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxWait := c.ManualMaxWait
	if maxWait <= 0 {
		maxWait = defaultManualMaxWait
	}
	deadline := time.Now().Add(maxWait)
	c.logf("stage %q: waiting for manual %s (max %s)", stage, m.Kind, maxWait)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if c.Exec.AnyVisible(ctx, m.SuccessSignals, interval) {
			c.logf("stage %q: manual %s confirmed", stage, m.Kind)
			return Outcome{}, true
		}
		if time.Now().After(deadline) {
			return Outcome{
				Status:     AwaitingManualStep,
				Stage:      stage,
				Reason:     ErrManualStepTimeout.Error(),
				ManualKind: m.Kind,
				Deadline:   deadline,
			}, false
		}
		select {
		case <-ctx.Done():
			return Outcome{
				Status:     AwaitingManualStep,
				Stage:      stage,
				Reason:     ctx.Err().Error(),
				ManualKind: m.Kind,
				Deadline:   deadline,
			}, false
		case <-t.C:
		}
	}
}

func failReason(res StageResult) string {
	if res.LastStrategy != "" {
		return fmt.Sprintf("%s (last strategy: %s)", res.Reason, res.LastStrategy)
	}
	return res.Reason
}

func (c *Controller) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}
