package flow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Page is the surface the flow engine needs from a live browser session.
// Implementations must honor the context deadline on every call.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	// ClickWithin clicks targetSel inside the first container matching
	// containerSel whose text contains containsText.
	ClickWithin(ctx context.Context, containerSel, containsText, targetSel string) error
	SetValue(ctx context.Context, selector, value string) error
	SendKeys(ctx context.Context, selector, value string) error
	ScriptSetValue(ctx context.Context, selector, value string) error
	Value(ctx context.Context, selector string) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// ActionKind is what a strategy does once its selector is visible.
type ActionKind int

const (
	// ActionWait only requires the element to become visible.
	ActionWait ActionKind = iota
	ActionClick
	ActionFill
)

// Strategy is one concrete attempt toward a stage goal: a selector plus the
// action to perform on it. Strategies for one goal are tried in order; the
// first whose selector becomes visible within its slice of the budget wins.
type Strategy struct {
	Name     string
	Selector string
	Action   ActionKind

	// Value is the text for ActionFill. When VerifyValue is set the field is
	// read back after writing and the input method escalates until the
	// read-back matches (some fields silently drop characters under the
	// fastest method).
	Value       string
	VerifyValue bool
}

// ErrNoStrategyMatched reports that every strategy for a goal was exhausted.
// Never fatal by itself; the stage decides whether the goal was required.
var ErrNoStrategyMatched = errors.New("no strategy matched")

// Match reports which strategy succeeded, for diagnostics.
type Match struct {
	Index    int
	Strategy Strategy
}

// Resolver tries ordered strategies against a page within a time budget.
type Resolver struct {
	Page Page
	Logf func(format string, args ...any)
}

// Resolve walks strategies in order. Each gets an even share of the budget
// still remaining, so an early slow selector cannot starve the rest. Returns
// ErrNoStrategyMatched when the list is empty or every attempt failed.
func (r *Resolver) Resolve(ctx context.Context, strategies []Strategy, budget time.Duration) (Match, error) {
	if len(strategies) == 0 {
		return Match{}, ErrNoStrategyMatched
	}
	deadline := time.Now().Add(budget)
	var lastErr error
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		per := remaining / time.Duration(len(strategies)-i)

		sctx, cancel := context.WithTimeout(ctx, per)
		err := r.attempt(sctx, s)
		cancel()
		if err != nil {
			lastErr = err
			r.logf("strategy %q (%s): %v", s.Name, s.Selector, err)
			continue
		}
		r.logf("strategy %q matched", s.Name)
		return Match{Index: i, Strategy: s}, nil
	}
	if lastErr != nil {
		return Match{}, fmt.Errorf("%w (last: %v)", ErrNoStrategyMatched, lastErr)
	}
	return Match{}, ErrNoStrategyMatched
}

func (r *Resolver) attempt(ctx context.Context, s Strategy) error {
	if err := r.Page.WaitVisible(ctx, s.Selector); err != nil {
		return err
	}
	switch s.Action {
	case ActionClick:
		return r.Page.Click(ctx, s.Selector)
	case ActionFill:
		if !s.VerifyValue {
			return r.Page.SetValue(ctx, s.Selector, s.Value)
		}
		return r.fillVerified(ctx, s.Selector, s.Value)
	default:
		return nil
	}
}

// fillVerified escalates through input methods until the field reads back the
// written value: direct value set, simulated keystrokes, then a scripted
// assignment that fires the site's change handlers.
func (r *Resolver) fillVerified(ctx context.Context, selector, value string) error {
	methods := []struct {
		name string
		fn   func(context.Context, string, string) error
	}{
		{"set-value", r.Page.SetValue},
		{"send-keys", r.Page.SendKeys},
		{"script-set", r.Page.ScriptSetValue},
	}
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.fn(ctx, selector, value); err != nil {
			r.logf("fill %s via %s: %v", selector, m.name, err)
			continue
		}
		got, err := r.Page.Value(ctx, selector)
		if err == nil && got == value {
			return nil
		}
		r.logf("fill %s via %s: read back %q, want %q", selector, m.name, got, value)
	}
	return fmt.Errorf("field %s dropped input under every method", selector)
}

func (r *Resolver) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}
