package flow

import (
	"context"
	"time"
)

// Severity decides whether a failed stage halts the run.
type Severity int

const (
	Required Severity = iota
	Optional
)

// Status is the result kind of one stage invocation.
type Status int

const (
	Advanced Status = iota
	Skipped
	StageFailed
	AwaitManual
)

func (s Status) String() string {
	switch s {
	case Advanced:
		return "advanced"
	case Skipped:
		return "skipped"
	case StageFailed:
		return "failed"
	case AwaitManual:
		return "await-manual"
	}
	return "unknown"
}

// ManualStep describes a human-in-the-loop boundary: the flow stops driving
// and polls for one of the success signals instead.
type ManualStep struct {
	Kind           string
	SuccessSignals []string
}

// StageResult is what one stage invocation produced.
type StageResult struct {
	Status       Status
	Reason       string
	LastStrategy string
	Manual       *ManualStep // set when Status == AwaitManual
}

// Stage is one named step of the flow. Signals are probe selectors deciding
// whether the stage applies to the current page; an empty list means always.
type Stage struct {
	Name     string
	Severity Severity
	Signals  []string
	Run      func(ctx context.Context, p Page, r *Resolver) StageResult
}

const defaultProbeTimeout = 3 * time.Second

// Executor runs a single stage: applicability probe first, then the stage
// body. It holds no state between invocations; all side effects land on the
// page passed in.
type Executor struct {
	Page         Page
	Resolver     *Resolver
	ProbeTimeout time.Duration
	Logf         func(format string, args ...any)
}

func (e *Executor) Execute(ctx context.Context, s Stage) StageResult {
	if len(s.Signals) > 0 && !e.AnyVisible(ctx, s.Signals, e.probeTimeout()) {
		// Conditionally present stages are expected to be absent sometimes.
		return StageResult{Status: Skipped, Reason: "no stage signal on page"}
	}
	return s.Run(ctx, e.Page, e.Resolver)
}

// AnyVisible probes each selector with an even slice of timeout and reports
// whether any became visible.
func (e *Executor) AnyVisible(ctx context.Context, selectors []string, timeout time.Duration) bool {
	if len(selectors) == 0 {
		return false
	}
	per := timeout / time.Duration(len(selectors))
	if per <= 0 {
		per = timeout
	}
	for _, sel := range selectors {
		if ctx.Err() != nil {
			return false
		}
		sctx, cancel := context.WithTimeout(ctx, per)
		err := e.Page.WaitVisible(sctx, sel)
		cancel()
		if err == nil {
			return true
		}
	}
	return false
}

func (e *Executor) probeTimeout() time.Duration {
	if e.ProbeTimeout > 0 {
		return e.ProbeTimeout
	}
	return defaultProbeTimeout
}
