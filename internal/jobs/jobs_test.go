package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validJob() Job {
	start := time.Date(2026, 11, 1, 8, 0, 0, 0, time.UTC)
	return Job{
		UserID:         1,
		Name:           "subarna friday",
		Origin:         "Dhaka",
		Destination:    "Chattogram",
		TravelDate:     "15-Nov-2026",
		TravelClass:    "S_CHAIR",
		TrainName:      "SUBARNA EXPRESS",
		PreferredSeats: []string{"A1", "B1"},
		SeatCount:      2,
		WindowStartAt:  start,
		WindowEndAt:    start.Add(30 * time.Minute),
		IntervalSec:    60,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validJob().Validate())

	j := validJob()
	j.Name = ""
	assert.ErrorContains(t, j.Validate(), "name required")

	j = validJob()
	j.TravelDate = "2026-11-15"
	assert.ErrorContains(t, j.Validate(), "DD-MMM-YYYY")

	j = validJob()
	j.SeatCount = 0
	assert.ErrorContains(t, j.Validate(), "seat count")

	j = validJob()
	j.WindowEndAt = j.WindowStartAt
	assert.ErrorContains(t, j.Validate(), "window_end_at")

	j = validJob()
	j.IntervalSec = 0
	assert.ErrorContains(t, j.Validate(), "interval_seconds")
}

func TestNextAttemptAt(t *testing.T) {
	j := validJob()
	now := j.WindowStartAt.Add(5 * time.Minute)

	assert.Equal(t, j.WindowStartAt, j.NextAttemptAt(now))

	last := j.WindowStartAt.Add(2 * time.Minute)
	j.LastAttemptAt = &last
	assert.Equal(t, last.Add(60*time.Second), j.NextAttemptAt(now))
}

func TestRequestCopiesSeats(t *testing.T) {
	j := validJob()
	req := j.Request()

	require.Equal(t, []string{"A1", "B1"}, req.PreferredSeats)
	req.PreferredSeats[0] = "Z9"
	assert.Equal(t, "A1", j.PreferredSeats[0])
}

func TestJoinSeats(t *testing.T) {
	assert.Equal(t, "A1,B2", joinSeats([]string{" a1 ", "", "b2"}))
	assert.Equal(t, "", joinSeats(nil))
}
