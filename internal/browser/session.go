// Package browser wraps a chromedp browser context behind the flow.Page
// interface so the flow engine never touches CDP directly.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Options struct {
	Headless    bool
	UserAgent   string
	ArtifactDir string // stage screenshots land here when set
}

// Session owns one browser and one tab. Each booking run gets its own
// session; nothing is shared between concurrent runs.
type Session struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	artifactDir string
}

func New(parent context.Context, opts Options) (*Session, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("headless", opts.Headless),
		chromedp.UserAgent(ua),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	// Dismiss native JS dialogs so an unexpected alert cannot wedge the tab.
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				_ = chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
					return page.HandleJavaScriptDialog(true).Do(c)
				}))
			}()
		}
	})

	// Starts the browser eagerly so a missing Chrome fails here, not mid-flow.
	if err := chromedp.Run(ctx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Session{
		ctx:         ctx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		artifactDir: opts.ArtifactDir,
	}, nil
}

func (s *Session) Close() {
	s.cancelCtx()
	s.cancelAlloc()
}

func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	return s.run(ctx, chromedp.Navigate(rawURL))
}

func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// ClickWithin clicks targetSel inside the first container matching
// containerSel whose rendered text contains containsText. Used where the
// target is only identifiable by nearby text (e.g. the book button of a
// specific train's card).
func (s *Session) ClickWithin(ctx context.Context, containerSel, containsText, targetSel string) error {
	js := fmt.Sprintf(`(function(){
		const cards = document.querySelectorAll(%q);
		for (const card of cards) {
			if (!card.innerText || !card.innerText.toUpperCase().includes(%q.toUpperCase())) { continue; }
			const target = card.querySelector(%q);
			if (!target) { continue; }
			target.click();
			return true;
		}
		return false;
	})()`, containerSel, containsText, targetSel)
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no %s containing %q with %s", containerSel, containsText, targetSel)
	}
	return nil
}

func (s *Session) SetValue(ctx context.Context, selector, value string) error {
	return s.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

func (s *Session) SendKeys(ctx context.Context, selector, value string) error {
	return s.run(ctx,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// ScriptSetValue assigns the value from script and fires the input/change
// events frameworks listen for. Last-resort input method.
func (s *Session) ScriptSetValue(ctx context.Context, selector, value string) error {
	js := fmt.Sprintf(`(function(){
		const el = document.querySelector(%q);
		if (!el) { return false; }
		el.value = %q;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, selector, value)
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no element for %s", selector)
	}
	return nil
}

func (s *Session) Value(ctx context.Context, selector string) (string, error) {
	var v string
	err := s.run(ctx, chromedp.Value(selector, &v, chromedp.ByQuery))
	return v, err
}

// Location reports the tab's current URL, for run diagnostics.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// SaveScreenshot writes a stage-boundary screenshot into the artifact dir.
// Failures are returned but callers treat them as diagnostics-only.
func (s *Session) SaveScreenshot(ctx context.Context, label string) (string, error) {
	if s.artifactDir == "" {
		return "", nil
	}
	buf, err := s.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.artifactDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.png", time.Now().UTC().Format("20060102T150405"), label)
	path := filepath.Join(s.artifactDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// run executes actions on the session tab, bounded by the caller's context.
// chromedp cancels the whole tab when its own context dies, so the per-call
// deadline is layered on via a derived context watched alongside.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// mergeContext derives from the tab context but adopts the caller's deadline
// and cancellation.
func mergeContext(tab, call context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := call.Deadline(); ok {
		ctx, cancel := context.WithDeadline(tab, dl)
		stop := propagateCancel(call, cancel)
		return ctx, func() { stop(); cancel() }
	}
	ctx, cancel := context.WithCancel(tab)
	stop := propagateCancel(call, cancel)
	return ctx, func() { stop(); cancel() }
}

func propagateCancel(call context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-call.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
