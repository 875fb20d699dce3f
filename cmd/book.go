package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/railsched/internal/config"
	"github.com/example/railsched/internal/flow"
	"github.com/example/railsched/internal/rail"
)

func newBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "book",
		Short: "Run one booking attempt from environment configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotenv()
			cfg, err := config.FromEnvBooking()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			runner := &rail.Runner{
				BaseURL:     cfg.BaseURL,
				Headless:    cfg.Headless,
				ArtifactDir: cfg.ArtifactDir,
				OTPMaxWait:  cfg.OTPMaxWait,
			}

			out, err := runner.Book(ctx, cfg.Request, rail.Credentials{Mobile: cfg.Mobile, Password: cfg.Password})
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "outcome=%s", out.Status)
			if out.Stage != "" {
				fmt.Fprintf(os.Stdout, " stage=%s", out.Stage)
			}
			if out.Reason != "" {
				fmt.Fprintf(os.Stdout, " reason=%q", out.Reason)
			}
			if !out.Deadline.IsZero() {
				fmt.Fprintf(os.Stdout, " deadline=%s", out.Deadline.Format(time.RFC3339))
			}
			fmt.Fprintln(os.Stdout)

			if out.Status != flow.Completed {
				os.Exit(1)
			}
			return nil
		},
	}
}
