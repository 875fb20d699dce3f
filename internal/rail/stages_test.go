package rail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/railsched/internal/booking"
	"github.com/example/railsched/internal/flow"
)

// pageStub implements flow.Page against a static visibility set.
type pageStub struct {
	visible map[string]bool
	clicks  []string
	values  map[string]string
	trains  map[string]bool // container selectors that hold the wanted train
}

func newPageStub(visible ...string) *pageStub {
	p := &pageStub{visible: map[string]bool{}, values: map[string]string{}, trains: map[string]bool{}}
	for _, v := range visible {
		p.visible[v] = true
	}
	return p
}

var errStubNotVisible = errors.New("not visible")

func (p *pageStub) Navigate(ctx context.Context, url string) error { return nil }

func (p *pageStub) WaitVisible(ctx context.Context, sel string) error {
	if p.visible[sel] {
		return nil
	}
	return errStubNotVisible
}

func (p *pageStub) Click(ctx context.Context, sel string) error {
	p.clicks = append(p.clicks, sel)
	return nil
}

func (p *pageStub) ClickWithin(ctx context.Context, containerSel, containsText, targetSel string) error {
	if !p.trains[containerSel] {
		return errStubNotVisible
	}
	p.clicks = append(p.clicks, containerSel+">"+targetSel)
	return nil
}

func (p *pageStub) SetValue(ctx context.Context, sel, v string) error {
	p.values[sel] = v
	return nil
}
func (p *pageStub) SendKeys(ctx context.Context, sel, v string) error {
	p.values[sel] = v
	return nil
}
func (p *pageStub) ScriptSetValue(ctx context.Context, sel, v string) error {
	p.values[sel] = v
	return nil
}
func (p *pageStub) Value(ctx context.Context, sel string) (string, error) {
	return p.values[sel], nil
}
func (p *pageStub) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }

func (p *pageStub) clickedSubstr(sub string) bool {
	for _, c := range p.clicks {
		if strings.Contains(c, sub) {
			return true
		}
	}
	return false
}

func resolver(p *pageStub) *flow.Resolver { return &flow.Resolver{Page: p} }

func testRequest(seats []string, count int) booking.Request {
	return booking.Request{
		Origin:         "Dhaka",
		Destination:    "Chattogram",
		TravelDate:     "15-Nov-2026",
		TravelClass:    "S_CHAIR",
		TrainName:      "SUBARNA EXPRESS",
		PreferredSeats: seats,
		SeatCount:      count,
	}
}

func TestSeatStage_PreferredSeatsTaken(t *testing.T) {
	p := newPageStub(
		"[data-seat='A1']:not(.booked)",
		"[data-seat='B1']:not(.booked)",
		"#continuePurchase",
	)
	st := seatStage(testRequest([]string{"A1", "B1", "C1"}, 2))

	res := st.Run(context.Background(), p, resolver(p))

	require.Equal(t, flow.Advanced, res.Status)
	assert.True(t, p.clickedSubstr("A1"))
	assert.True(t, p.clickedSubstr("B1"))
	assert.False(t, p.clickedSubstr("C1"), "must stop at the requested count")
}

func TestSeatStage_FallsBackToGenericPattern(t *testing.T) {
	// No preferred seats configured; generic plan seats are on the map.
	p := newPageStub(
		"[data-seat='A1']:not(.booked)",
		"[data-seat='B1']:not(.booked)",
		"#continuePurchase",
	)
	st := seatStage(testRequest(nil, 2))

	res := st.Run(context.Background(), p, resolver(p))

	require.Equal(t, flow.Advanced, res.Status)
	assert.True(t, p.clickedSubstr("A1"))
	assert.True(t, p.clickedSubstr("B1"))
}

func TestSeatStage_TopsUpShortPreferredList(t *testing.T) {
	p := newPageStub(
		"[data-seat='D4']:not(.booked)", // the one preferred seat
		"[data-seat='A1']:not(.booked)", // generic fallback
		"#continuePurchase",
	)
	st := seatStage(testRequest([]string{"D4"}, 2))

	res := st.Run(context.Background(), p, resolver(p))

	require.Equal(t, flow.Advanced, res.Status)
	assert.True(t, p.clickedSubstr("D4"))
	assert.True(t, p.clickedSubstr("A1"))
}

func TestSeatStage_AutoAssignLastResort(t *testing.T) {
	p := newPageStub(
		"select[name='seatCount']",
		"#continuePurchase",
	)
	st := seatStage(testRequest(nil, 3))

	res := st.Run(context.Background(), p, resolver(p))

	require.Equal(t, flow.Advanced, res.Status)
	assert.Equal(t, "3", p.values["select[name='seatCount']"])
}

func TestSeatStage_UnderfilledFails(t *testing.T) {
	p := newPageStub("#continuePurchase")
	st := seatStage(testRequest(nil, 2))

	res := st.Run(context.Background(), p, resolver(p))

	require.Equal(t, flow.StageFailed, res.Status)
	assert.Contains(t, res.Reason, "selected 0 of 2")
}

func TestPaymentStage_CandidateOrder(t *testing.T) {
	p := newPageStub("button[data-method='nagad'], .pay-nagad")
	st := paymentStage()

	res := st.Run(context.Background(), p, resolver(p))

	require.Equal(t, flow.Advanced, res.Status)
	assert.Equal(t, "nagad", res.LastStrategy)

	// With bkash present it wins regardless of nagad.
	p = newPageStub(
		"button[data-method='bkash'], .pay-bkash",
		"button[data-method='nagad'], .pay-nagad",
	)
	res = paymentStage().Run(context.Background(), p, resolver(p))
	require.Equal(t, flow.Advanced, res.Status)
	assert.Equal(t, "bkash", res.LastStrategy)
}

func TestPaymentStage_NoMethodFails(t *testing.T) {
	p := newPageStub()
	res := paymentStage().Run(context.Background(), p, resolver(p))
	require.Equal(t, flow.StageFailed, res.Status)
	assert.Contains(t, res.Reason, "no payment method")
}

func TestOTPStage_RaisesManualBoundary(t *testing.T) {
	p := newPageStub()
	res := otpStage().Run(context.Background(), p, resolver(p))

	require.Equal(t, flow.AwaitManual, res.Status)
	require.NotNil(t, res.Manual)
	assert.Equal(t, "otp", res.Manual.Kind)
	assert.NotEmpty(t, res.Manual.SuccessSignals)
}

func TestPickTrain_FallsThroughContainers(t *testing.T) {
	p := newPageStub(".single-trip-wrapper")
	p.trains[".single-trip-wrapper"] = true

	res := pickTrain(context.Background(), p, resolver(p), "SUBARNA EXPRESS")

	require.Equal(t, flow.Advanced, res.Status)
	assert.True(t, p.clickedSubstr(".single-trip-wrapper>button.book"))
}

func TestPickTrain_NoResults(t *testing.T) {
	p := newPageStub()
	res := pickTrain(context.Background(), p, resolver(p), "SUBARNA EXPRESS")
	require.Equal(t, flow.StageFailed, res.Status)
	assert.Contains(t, res.Reason, "no search results")
}

func TestStages_OrderAndSeverity(t *testing.T) {
	stages := Stages(testRequest(nil, 1), Credentials{Mobile: "017", Password: "pw"})

	var names []string
	for _, s := range stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"language-select", "login", "journey-search", "seat-selection",
		"passenger-details", "payment-method", "otp-confirmation",
	}, names)
	assert.Equal(t, flow.Optional, stages[0].Severity)
	for _, s := range stages[1:] {
		assert.Equal(t, flow.Required, s.Severity, s.Name)
	}
}
