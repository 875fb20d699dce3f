package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/railsched/internal/config"
	"github.com/example/railsched/internal/railapi"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check site reachability and search results without launching a browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotenv()
			cfg, err := config.FromEnvBooking()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			report, err := railapi.New(cfg.BaseURL).VerifySearch(ctx, cfg.Request)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "endpoint=%s trains=%d\n", report.Endpoint, len(report.Trains))
			for _, tn := range report.Trains {
				fmt.Fprintf(os.Stdout, "  %s\n", tn)
			}
			if !report.TrainMatched {
				fmt.Fprintf(os.Stdout, "train %q not found in results\n", cfg.Request.TrainName)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "train %q found\n", cfg.Request.TrainName)
			return nil
		},
	}
}
