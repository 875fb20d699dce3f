package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/railsched/internal/booking"
	"github.com/example/railsched/internal/db"
)

const (
	StatusActive = "active"
	StatusBooked = "booked"
	StatusFailed = "failed"
	StatusPaused = "paused"
)

type Job struct {
	ID     int64
	UserID int64
	Name   string

	Origin         string
	Destination    string
	TravelDate     string // DD-MMM-YYYY, as the booking site expects it
	TravelClass    string
	TrainName      string
	PreferredSeats []string
	SeatCount      int

	WindowStartAt time.Time
	WindowEndAt   time.Time
	IntervalSec   int

	Status        string
	LastAttemptAt *time.Time
	BookedAt      *time.Time
	LastError     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Request converts the persisted job into a one-shot booking request.
func (j Job) Request() booking.Request {
	return booking.Request{
		Origin:         j.Origin,
		Destination:    j.Destination,
		TravelDate:     j.TravelDate,
		TravelClass:    j.TravelClass,
		TrainName:      j.TrainName,
		PreferredSeats: append([]string(nil), j.PreferredSeats...),
		SeatCount:      j.SeatCount,
	}
}

func joinSeats(seats []string) string {
	var cleaned []string
	for _, s := range seats {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		cleaned = append(cleaned, s)
	}
	return strings.Join(cleaned, ",")
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const jobColumns = `id,user_id,name,origin,destination,travel_date,travel_class,train_name,preferred_seats,seat_count,window_start_at,window_end_at,interval_seconds,status,last_attempt_at,booked_at,last_error,created_at,updated_at`

func scanJob(row db.Row) (Job, error) {
	var j Job
	var preferredSeats string
	var lastAttempt, bookedAt *time.Time
	var lastErr *string
	err := row.Scan(
		&j.ID, &j.UserID, &j.Name, &j.Origin, &j.Destination, &j.TravelDate, &j.TravelClass, &j.TrainName,
		&preferredSeats, &j.SeatCount, &j.WindowStartAt, &j.WindowEndAt, &j.IntervalSec,
		&j.Status, &lastAttempt, &bookedAt, &lastErr, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	j.PreferredSeats = booking.SplitSeats(preferredSeats)
	j.LastAttemptAt = lastAttempt
	j.BookedAt = bookedAt
	j.LastError = lastErr
	return j, nil
}

func (r *Repo) Create(ctx context.Context, j Job) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO jobs(user_id,name,origin,destination,travel_date,travel_class,train_name,preferred_seats,seat_count,window_start_at,window_end_at,interval_seconds,status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'active')
RETURNING id`,
		j.UserID, j.Name, j.Origin, j.Destination, j.TravelDate, j.TravelClass, j.TrainName,
		joinSeats(j.PreferredSeats), j.SeatCount, j.WindowStartAt, j.WindowEndAt, j.IntervalSec,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Job, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE user_id=$1
ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *Repo) GetByIDForUser(ctx context.Context, id, userID int64) (Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		return Job{}, db.WrapNotFound(err)
	}
	return j, nil
}

func (r *Repo) SetStatus(ctx context.Context, jobID int64, status string, lastErr *string) error {
	return r.db.Exec(ctx, `UPDATE jobs SET status=$2, last_error=$3, updated_at=now() WHERE id=$1`, jobID, status, lastErr)
}

// MarkAttempt records one attempt and rolls the job forward. phase is the
// point the attempt reached ("verify", a stage name, or "completed").
func (r *Repo) MarkAttempt(ctx context.Context, jobID int64, phase string, success bool, outcome string, lastErr *string) error {
	if err := r.db.Exec(ctx, `INSERT INTO job_attempts(job_id, phase, success, outcome, error) VALUES ($1,$2,$3,$4,$5)`,
		jobID, phase, success, outcome, lastErr); err != nil {
		return err
	}
	if success {
		return r.db.Exec(ctx, `UPDATE jobs SET last_attempt_at=now(), booked_at=now(), status='booked', last_error=NULL, updated_at=now() WHERE id=$1`, jobID)
	}
	return r.db.Exec(ctx, `UPDATE jobs SET last_attempt_at=now(), last_error=$2, updated_at=now() WHERE id=$1`, jobID, lastErr)
}

func (r *Repo) DueJobs(ctx context.Context, limit int) ([]Job, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE status='active'
  AND now() >= window_start_at
  AND now() <= window_end_at
ORDER BY window_start_at ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (j Job) NextAttemptAt(now time.Time) time.Time {
	if j.LastAttemptAt == nil {
		return j.WindowStartAt
	}
	return j.LastAttemptAt.Add(time.Duration(j.IntervalSec) * time.Second)
}

func (j Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("name required")
	}
	if err := j.Request().Validate(); err != nil {
		return err
	}
	if j.WindowEndAt.Before(j.WindowStartAt) || j.WindowEndAt.Equal(j.WindowStartAt) {
		return fmt.Errorf("window_end_at must be after window_start_at")
	}
	if j.IntervalSec < 1 {
		return fmt.Errorf("interval_seconds must be >= 1")
	}
	return nil
}
