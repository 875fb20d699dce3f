package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_EmptyList(t *testing.T) {
	r := &Resolver{Page: newFakePage()}

	_, err := r.Resolve(context.Background(), nil, time.Second)
	assert.ErrorIs(t, err, ErrNoStrategyMatched)

	_, err = r.Resolve(context.Background(), []Strategy{}, time.Second)
	assert.ErrorIs(t, err, ErrNoStrategyMatched)
}

func TestResolve_FirstVisibleWins(t *testing.T) {
	p := newFakePage()
	p.visible["#continue"] = true
	p.visible["button.next"] = true
	r := &Resolver{Page: p}

	m, err := r.Resolve(context.Background(), []Strategy{
		{Name: "id", Selector: "#continue", Action: ActionClick},
		{Name: "class", Selector: "button.next", Action: ActionClick},
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, 0, m.Index)
	assert.True(t, p.clicked("#continue"))
	assert.False(t, p.clicked("button.next"))
}

func TestResolve_FallsThroughToLaterStrategy(t *testing.T) {
	p := newFakePage()
	p.visible["button.next"] = true
	r := &Resolver{Page: p}

	m, err := r.Resolve(context.Background(), []Strategy{
		{Name: "id", Selector: "#continue", Action: ActionClick},
		{Name: "class", Selector: "button.next", Action: ActionClick},
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, 1, m.Index)
	assert.Equal(t, "class", m.Strategy.Name)
	assert.True(t, p.clicked("button.next"))
}

func TestResolve_AllExhausted(t *testing.T) {
	r := &Resolver{Page: newFakePage()}

	_, err := r.Resolve(context.Background(), []Strategy{
		{Name: "a", Selector: "#a", Action: ActionClick},
		{Name: "b", Selector: "#b", Action: ActionClick},
	}, 100*time.Millisecond)

	assert.ErrorIs(t, err, ErrNoStrategyMatched)
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Resolver{Page: newFakePage()}

	_, err := r.Resolve(ctx, []Strategy{{Name: "a", Selector: "#a"}}, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFillVerified_EscalatesPastDroppedInput(t *testing.T) {
	p := newFakePage()
	p.visible["#origin"] = true
	p.dropOnSet = true
	r := &Resolver{Page: p}

	_, err := r.Resolve(context.Background(), []Strategy{
		{Name: "origin", Selector: "#origin", Action: ActionFill, Value: "Platform9", VerifyValue: true},
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "Platform9", p.values["#origin"])
}

func TestFillVerified_LastResortScriptSet(t *testing.T) {
	p := newFakePage()
	p.visible["#origin"] = true
	p.dropOnSet = true
	p.failSendKeys = true
	r := &Resolver{Page: p}

	_, err := r.Resolve(context.Background(), []Strategy{
		{Name: "origin", Selector: "#origin", Action: ActionFill, Value: "Seat12", VerifyValue: true},
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "Seat12", p.values["#origin"])
}

func TestFill_NoVerifySkipsReadBack(t *testing.T) {
	p := newFakePage()
	p.visible["#note"] = true
	p.dropOnSet = true
	r := &Resolver{Page: p}

	_, err := r.Resolve(context.Background(), []Strategy{
		{Name: "note", Selector: "#note", Action: ActionFill, Value: "row3"},
	}, time.Second)

	// Dropped characters go unnoticed without VerifyValue; that is the point
	// of opting in per field.
	require.NoError(t, err)
	assert.Equal(t, "row", p.values["#note"])
}
