package rail

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/railsched/internal/booking"
	"github.com/example/railsched/internal/browser"
	"github.com/example/railsched/internal/flow"
)

const navigateTimeout = 45 * time.Second

// Runner executes one full booking flow in a fresh browser session. Runners
// are cheap; concurrent runs each get their own.
type Runner struct {
	BaseURL     string
	Headless    bool
	ArtifactDir string
	OTPMaxWait  time.Duration
}

// Book drives the site through the whole purchase flow for req. The returned
// outcome is terminal: Completed, AwaitingManualStep (OTP wait elapsed), or
// Failed with the failing stage. An error means the run could not start at
// all (bad request, browser launch, site unreachable).
func (ru *Runner) Book(ctx context.Context, req booking.Request, creds Credentials) (flow.Outcome, error) {
	if err := req.Validate(); err != nil {
		return flow.Outcome{}, fmt.Errorf("invalid request: %w", err)
	}
	if creds.Mobile == "" || creds.Password == "" {
		return flow.Outcome{}, fmt.Errorf("rail credentials required")
	}

	sess, err := browser.New(ctx, browser.Options{
		Headless:    ru.Headless,
		ArtifactDir: ru.ArtifactDir,
	})
	if err != nil {
		return flow.Outcome{}, err
	}
	defer sess.Close()

	nctx, cancel := context.WithTimeout(ctx, navigateTimeout)
	err = sess.Navigate(nctx, ru.BaseURL)
	cancel()
	if err != nil {
		return flow.Outcome{}, fmt.Errorf("target unreachable at %s: %w", ru.BaseURL, err)
	}

	logf := func(format string, args ...any) { log.Printf("rail: "+format, args...) }
	resolver := &flow.Resolver{Page: sess, Logf: logf}
	ctrl := &flow.Controller{
		Exec:          &flow.Executor{Page: sess, Resolver: resolver, Logf: logf},
		ManualMaxWait: ru.OTPMaxWait,
		Logf:          logf,
		OnStage: func(name string, res flow.StageResult) {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if path, err := sess.SaveScreenshot(sctx, name); err == nil && path != "" {
				log.Printf("rail: stage %q screenshot: %s", name, path)
			}
		},
	}

	out := ctrl.Run(ctx, Stages(req, creds))

	// The final URL tells failed runs apart faster than screenshots alone.
	lctx, lcancel := context.WithTimeout(context.Background(), 5*time.Second)
	finalURL, lerr := sess.Location(lctx)
	lcancel()
	if lerr != nil {
		finalURL = "unknown"
	}
	log.Printf("rail: run finished: %s stage=%q reason=%q url=%s", out.Status, out.Stage, out.Reason, finalURL)
	return out, nil
}
