// Package rail defines the concrete booking flow for the rail e-ticket site:
// the ordered stages, their signal selectors, and their strategy tables. The
// site's markup is unstable, so every goal carries several fallback
// selectors.
package rail

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/example/railsched/internal/booking"
	"github.com/example/railsched/internal/flow"
)

// Credentials is the rail-site account used by the login stage.
type Credentials struct {
	Mobile   string
	Password string
}

const (
	stageBudget   = 30 * time.Second
	perSeatBudget = 5 * time.Second
)

// Stages returns the ordered booking stages for one request.
func Stages(req booking.Request, creds Credentials) []flow.Stage {
	return []flow.Stage{
		languageStage(),
		loginStage(creds),
		searchStage(req),
		seatStage(req),
		passengerStage(creds),
		paymentStage(),
		otpStage(),
	}
}

// languageStage flips the UI to English. Some deployments render English by
// default, so the stage is optional and frequently skipped.
func languageStage() flow.Stage {
	return flow.Stage{
		Name:     "language-select",
		Severity: flow.Optional,
		Signals:  []string{".lang-toggle", "#language-select", "a.language-switcher"},
		Run: func(ctx context.Context, p flow.Page, r *flow.Resolver) flow.StageResult {
			m, err := r.Resolve(ctx, []flow.Strategy{
				{Name: "toggle-en", Selector: ".lang-toggle .en", Action: flow.ActionClick},
				{Name: "switcher-en", Selector: "a.language-switcher[data-lang='en']", Action: flow.ActionClick},
				{Name: "select-en", Selector: "#language-select", Action: flow.ActionFill, Value: "en"},
			}, stageBudget)
			if err != nil {
				return flow.StageResult{Status: flow.StageFailed, Reason: err.Error()}
			}
			return flow.StageResult{Status: flow.Advanced, LastStrategy: m.Strategy.Name}
		},
	}
}

func loginStage(creds Credentials) flow.Stage {
	return flow.Stage{
		Name:     "login",
		Severity: flow.Required,
		Signals:  []string{"#mobile-number", "input[name='mobile']", "form.login-form"},
		Run: func(ctx context.Context, p flow.Page, r *flow.Resolver) flow.StageResult {
			steps := [][]flow.Strategy{
				{
					{Name: "mobile-id", Selector: "#mobile-number", Action: flow.ActionFill, Value: creds.Mobile, VerifyValue: true},
					{Name: "mobile-name", Selector: "input[name='mobile']", Action: flow.ActionFill, Value: creds.Mobile, VerifyValue: true},
				},
				{
					{Name: "password-id", Selector: "#password", Action: flow.ActionFill, Value: creds.Password},
					{Name: "password-name", Selector: "input[name='password']", Action: flow.ActionFill, Value: creds.Password},
				},
				{
					{Name: "login-submit", Selector: "button[type='submit']", Action: flow.ActionClick},
					{Name: "login-btn", Selector: "button.login-btn", Action: flow.ActionClick},
					{Name: "login-link", Selector: "a.btn-login", Action: flow.ActionClick},
				},
			}
			return runSteps(ctx, r, steps)
		},
	}
}

func searchStage(req booking.Request) flow.Stage {
	return flow.Stage{
		Name:     "journey-search",
		Severity: flow.Required,
		Signals:  []string{"#fromStation", "input[name='fromcity']", ".search-form"},
		Run: func(ctx context.Context, p flow.Page, r *flow.Resolver) flow.StageResult {
			// Station fields silently drop characters when filled at full
			// speed; VerifyValue forces the read-back loop.
			steps := [][]flow.Strategy{
				{
					{Name: "origin-id", Selector: "#fromStation", Action: flow.ActionFill, Value: req.Origin, VerifyValue: true},
					{Name: "origin-name", Selector: "input[name='fromcity']", Action: flow.ActionFill, Value: req.Origin, VerifyValue: true},
				},
				{
					{Name: "dest-id", Selector: "#toStation", Action: flow.ActionFill, Value: req.Destination, VerifyValue: true},
					{Name: "dest-name", Selector: "input[name='tocity']", Action: flow.ActionFill, Value: req.Destination, VerifyValue: true},
				},
				{
					{Name: "date-id", Selector: "#journeyDate", Action: flow.ActionFill, Value: req.TravelDate, VerifyValue: true},
					{Name: "date-name", Selector: "input[name='doj']", Action: flow.ActionFill, Value: req.TravelDate, VerifyValue: true},
				},
				{
					{Name: "class-id", Selector: "#seatClass", Action: flow.ActionFill, Value: req.TravelClass},
					{Name: "class-name", Selector: "select[name='class']", Action: flow.ActionFill, Value: req.TravelClass},
				},
				{
					{Name: "search-btn", Selector: "#searchButton", Action: flow.ActionClick},
					{Name: "search-submit", Selector: "button[type='submit'].search", Action: flow.ActionClick},
					{Name: "search-generic", Selector: "button[type='submit']", Action: flow.ActionClick},
				},
			}
			if res := runSteps(ctx, r, steps); res.Status != flow.Advanced {
				return res
			}
			return pickTrain(ctx, p, r, req.TrainName)
		},
	}
}

// pickTrain waits for the result list and clicks the book control of the card
// naming the requested train.
func pickTrain(ctx context.Context, p flow.Page, r *flow.Resolver, trainName string) flow.StageResult {
	if _, err := r.Resolve(ctx, []flow.Strategy{
		{Name: "trip-list", Selector: ".trip-card", Action: flow.ActionWait},
		{Name: "trip-wrapper", Selector: ".single-trip-wrapper", Action: flow.ActionWait},
		{Name: "train-rows", Selector: ".train-list .train", Action: flow.ActionWait},
	}, stageBudget); err != nil {
		return flow.StageResult{Status: flow.StageFailed, Reason: fmt.Sprintf("no search results: %v", err)}
	}

	type candidate struct{ container, button string }
	candidates := []candidate{
		{".trip-card", ".book-now-btn"},
		{".single-trip-wrapper", "button.book"},
		{".train-list .train", "a.btn-book"},
	}
	var lastErr error
	for _, c := range candidates {
		cctx, cancel := context.WithTimeout(ctx, perSeatBudget)
		err := p.ClickWithin(cctx, c.container, trainName, c.button)
		cancel()
		if err == nil {
			return flow.StageResult{Status: flow.Advanced, LastStrategy: c.container}
		}
		lastErr = err
	}
	return flow.StageResult{Status: flow.StageFailed, Reason: fmt.Sprintf("train %q not bookable: %v", trainName, lastErr)}
}

// seatStage fills the requested seat count: preferred seats first, then the
// deterministic fallback plans, finally an auto-assign request carrying only
// the count.
func seatStage(req booking.Request) flow.Stage {
	return flow.Stage{
		Name:     "seat-selection",
		Severity: flow.Required,
		Signals:  []string{".seat-layout", "#seat-map", ".seat-grid"},
		Run: func(ctx context.Context, p flow.Page, r *flow.Resolver) flow.StageResult {
			remaining := req.SeatCount

			// Preferred seats, capped at the requested count.
			if len(req.PreferredSeats) >= req.SeatCount {
				plan := booking.Allocate(req.PreferredSeats, req.SeatCount)[0]
				remaining -= takeSeats(ctx, r, plan.Seats, remaining)
			} else {
				remaining -= takeSeats(ctx, r, req.PreferredSeats, remaining)
			}

			if remaining > 0 {
				for _, plan := range booking.Allocate(nil, remaining) {
					if plan.Source == booking.SourceCountOnly {
						if autoAssign(ctx, r, plan.Count) {
							remaining = 0
						}
						break
					}
					remaining -= takeSeats(ctx, r, plan.Seats, remaining)
					if remaining == 0 {
						break
					}
				}
			}
			if remaining > 0 {
				return flow.StageResult{
					Status: flow.StageFailed,
					Reason: fmt.Sprintf("selected %d of %d seats", req.SeatCount-remaining, req.SeatCount),
				}
			}

			m, err := r.Resolve(ctx, []flow.Strategy{
				{Name: "continue-id", Selector: "#continuePurchase", Action: flow.ActionClick},
				{Name: "continue-class", Selector: "button.continue-btn", Action: flow.ActionClick},
				{Name: "continue-generic", Selector: "button[type='submit']", Action: flow.ActionClick},
			}, stageBudget)
			if err != nil {
				return flow.StageResult{Status: flow.StageFailed, Reason: fmt.Sprintf("no continue control: %v", err)}
			}
			return flow.StageResult{Status: flow.Advanced, LastStrategy: m.Strategy.Name}
		},
	}
}

// takeSeats clicks up to max seats from the list and reports how many took.
// A seat that never shows up just means someone else holds it; the caller
// keeps going.
func takeSeats(ctx context.Context, r *flow.Resolver, seats []string, max int) int {
	taken := 0
	for _, seat := range seats {
		if taken >= max || ctx.Err() != nil {
			break
		}
		if _, err := r.Resolve(ctx, seatStrategies(seat), perSeatBudget); err == nil {
			taken++
		}
	}
	return taken
}

func seatStrategies(seat string) []flow.Strategy {
	return []flow.Strategy{
		{Name: "seat-data", Selector: fmt.Sprintf("[data-seat='%s']:not(.booked)", seat), Action: flow.ActionClick},
		{Name: "seat-title", Selector: fmt.Sprintf(".seat[title='%s']:not(.unavailable)", seat), Action: flow.ActionClick},
		{Name: "seat-id", Selector: fmt.Sprintf("#seat-%s", seat), Action: flow.ActionClick},
	}
}

func autoAssign(ctx context.Context, r *flow.Resolver, count int) bool {
	_, err := r.Resolve(ctx, []flow.Strategy{
		{Name: "auto-count", Selector: "select[name='seatCount']", Action: flow.ActionFill, Value: strconv.Itoa(count)},
		{Name: "auto-btn", Selector: "button.auto-assign", Action: flow.ActionClick},
	}, stageBudget)
	return err == nil
}

func passengerStage(creds Credentials) flow.Stage {
	return flow.Stage{
		Name:     "passenger-details",
		Severity: flow.Required,
		Signals:  []string{".passenger-form", "#passenger-details", "input[name='pname']"},
		Run: func(ctx context.Context, p flow.Page, r *flow.Resolver) flow.StageResult {
			steps := [][]flow.Strategy{
				{
					{Name: "contact-mobile", Selector: "#contactMobile", Action: flow.ActionFill, Value: creds.Mobile, VerifyValue: true},
					{Name: "contact-mobile-name", Selector: "input[name='pmobile']", Action: flow.ActionFill, Value: creds.Mobile, VerifyValue: true},
				},
				{
					{Name: "proceed-id", Selector: "#proceedPayment", Action: flow.ActionClick},
					{Name: "proceed-class", Selector: "button.proceed-btn", Action: flow.ActionClick},
					{Name: "proceed-generic", Selector: "button[type='submit']", Action: flow.ActionClick},
				},
			}
			return runSteps(ctx, r, steps)
		},
	}
}

// paymentMethods is the fixed candidate order for the payment screen. Which
// buttons the site actually renders varies by route and day.
var paymentMethods = []flow.Strategy{
	{Name: "bkash", Selector: "button[data-method='bkash'], .pay-bkash", Action: flow.ActionClick},
	{Name: "nagad", Selector: "button[data-method='nagad'], .pay-nagad", Action: flow.ActionClick},
	{Name: "rocket", Selector: "button[data-method='rocket'], .pay-rocket", Action: flow.ActionClick},
	{Name: "card", Selector: "button[data-method='card'], .pay-card", Action: flow.ActionClick},
}

func paymentStage() flow.Stage {
	return flow.Stage{
		Name:     "payment-method",
		Severity: flow.Required,
		Signals:  []string{".payment-options", "#payment-methods", ".payment-gateway-list"},
		Run: func(ctx context.Context, p flow.Page, r *flow.Resolver) flow.StageResult {
			m, err := r.Resolve(ctx, paymentMethods, stageBudget)
			if err != nil {
				return flow.StageResult{Status: flow.StageFailed, Reason: fmt.Sprintf("no payment method available: %v", err)}
			}
			// Confirm dialog is rendered by some gateways only.
			_, _ = r.Resolve(ctx, []flow.Strategy{
				{Name: "confirm", Selector: "button.confirm-payment", Action: flow.ActionClick},
			}, perSeatBudget)
			return flow.StageResult{Status: flow.Advanced, LastStrategy: m.Strategy.Name}
		},
	}
}

// otpStage is the manual-intervention boundary: the gateway sends a one-time
// code to the account holder and the flow must not try to enter it.
func otpStage() flow.Stage {
	return flow.Stage{
		Name:     "otp-confirmation",
		Severity: flow.Required,
		Signals:  []string{"#otp-input", "input[name='otp']", ".otp-form"},
		Run: func(ctx context.Context, p flow.Page, r *flow.Resolver) flow.StageResult {
			return flow.StageResult{
				Status: flow.AwaitManual,
				Manual: &flow.ManualStep{
					Kind: "otp",
					SuccessSignals: []string{
						".booking-confirmed",
						".ticket-download",
						"#purchase-success",
					},
				},
			}
		},
	}
}

// runSteps resolves each goal's strategy table in order; the first required
// goal that exhausts its table fails the stage.
func runSteps(ctx context.Context, r *flow.Resolver, steps [][]flow.Strategy) flow.StageResult {
	var last string
	for _, strategies := range steps {
		m, err := r.Resolve(ctx, strategies, stageBudget)
		if err != nil {
			return flow.StageResult{Status: flow.StageFailed, Reason: err.Error(), LastStrategy: last}
		}
		last = m.Strategy.Name
	}
	return flow.StageResult{Status: flow.Advanced, LastStrategy: last}
}
