package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/railsched/internal/booking"
	"github.com/example/railsched/internal/config"
	"github.com/example/railsched/internal/db"
	"github.com/example/railsched/internal/jobs"
	"github.com/example/railsched/internal/migrate"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage booking jobs (non-UI)",
	}
	cmd.AddCommand(newJobCreateCmd())
	cmd.AddCommand(newJobListCmd())
	return cmd
}

func newJobCreateCmd() *cobra.Command {
	var (
		userID          int64
		name            string
		origin          string
		destination     string
		travelDate      string
		travelClass     string
		trainName       string
		preferredSeats  string
		seatCount       int
		windowStart     string
		windowMinutes   int
		intervalSeconds int
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a booking job with an attempt window",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotenv()
			cfg, err := config.FromEnvServer()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			if _, err := time.Parse(booking.DateLayout, travelDate); err != nil {
				return fmt.Errorf("invalid --travel-date (want DD-MMM-YYYY, e.g. 15-Nov-2026)")
			}

			start, err := time.Parse(time.RFC3339, windowStart)
			if err != nil {
				return fmt.Errorf("invalid --window-start (want RFC3339, e.g. 2026-11-05T08:00:00Z): %w", err)
			}

			j := jobs.Job{
				UserID:         userID,
				Name:           name,
				Origin:         origin,
				Destination:    destination,
				TravelDate:     travelDate,
				TravelClass:    travelClass,
				TrainName:      trainName,
				PreferredSeats: booking.SplitSeats(preferredSeats),
				SeatCount:      seatCount,
				WindowStartAt:  start.UTC(),
				WindowEndAt:    start.Add(time.Duration(windowMinutes) * time.Minute).UTC(),
				IntervalSec:    intervalSeconds,
			}
			if err := j.Validate(); err != nil {
				return err
			}

			id, err := jobs.NewRepo(d).Create(ctx, j)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created job id=%d window_start_utc=%s window_end_utc=%s\n",
				id, j.WindowStartAt.Format(time.RFC3339), j.WindowEndAt.Format(time.RFC3339))
			return nil
		},
	}

	c.Flags().Int64Var(&userID, "user-id", 0, "user id (from DB)")
	c.Flags().StringVar(&name, "name", "", "job name")
	c.Flags().StringVar(&origin, "origin", "", "origin station")
	c.Flags().StringVar(&destination, "destination", "", "destination station")
	c.Flags().StringVar(&travelDate, "travel-date", "", "travel date DD-MMM-YYYY")
	c.Flags().StringVar(&travelClass, "travel-class", "S_CHAIR", "seat class")
	c.Flags().StringVar(&trainName, "train-name", "", "train name as listed in search results")
	c.Flags().StringVar(&preferredSeats, "preferred-seats", "", "comma-separated preferred seats (A1,A2)")
	c.Flags().IntVar(&seatCount, "seat-count", 1, "number of seats")
	c.Flags().StringVar(&windowStart, "window-start", "", "attempt window start, RFC3339 (usually purchase-open time)")
	c.Flags().IntVar(&windowMinutes, "window-minutes", 30, "run attempts N minutes after window start")
	c.Flags().IntVar(&intervalSeconds, "interval-seconds", 60, "retry interval seconds")

	_ = c.MarkFlagRequired("user-id")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("origin")
	_ = c.MarkFlagRequired("destination")
	_ = c.MarkFlagRequired("travel-date")
	_ = c.MarkFlagRequired("train-name")
	_ = c.MarkFlagRequired("window-start")
	return c
}

func newJobListCmd() *cobra.Command {
	var userID int64
	c := &cobra.Command{
		Use:   "list",
		Short: "List jobs for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotenv()
			cfg, err := config.FromEnvServer()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			js, err := jobs.NewRepo(d).ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			for _, j := range js {
				fmt.Fprintf(os.Stdout, "id=%d name=%q status=%s train=%q %s->%s date=%s seats=%d preferred=%s window=%s..%s\n",
					j.ID, j.Name, j.Status, j.TrainName, j.Origin, j.Destination, j.TravelDate, j.SeatCount,
					strings.Join(j.PreferredSeats, ","),
					j.WindowStartAt.Format(time.RFC3339), j.WindowEndAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	c.Flags().Int64Var(&userID, "user-id", 0, "user id")
	_ = c.MarkFlagRequired("user-id")
	return c
}
