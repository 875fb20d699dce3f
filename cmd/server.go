package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/railsched/internal/auth"
	"github.com/example/railsched/internal/config"
	"github.com/example/railsched/internal/crypto"
	"github.com/example/railsched/internal/db"
	"github.com/example/railsched/internal/jobs"
	"github.com/example/railsched/internal/migrate"
	"github.com/example/railsched/internal/rail"
	"github.com/example/railsched/internal/railapi"
	"github.com/example/railsched/internal/scheduler"
	"github.com/example/railsched/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the web UI + scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotenv()
			cfg, err := config.FromEnvServer()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			aead, err := crypto.New(cfg.CredEncKey)
			if err != nil {
				return err
			}
			authStore := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey, aead)
			jobRepo := jobs.NewRepo(d)

			runner := &rail.Runner{
				BaseURL:     cfg.RailBaseURL,
				Headless:    cfg.Headless,
				ArtifactDir: cfg.ArtifactDir,
				OTPMaxWait:  cfg.OTPMaxWait,
			}
			s := &scheduler.Scheduler{
				Repo:     jobRepo,
				Booker:   runner,
				Verifier: railapi.New(cfg.RailBaseURL),
				Creds:    authStore,
				Interval: cfg.PollInterval,
			}
			go func() { _ = s.Run(ctx) }()

			ws := &web.Server{Auth: authStore, Jobs: jobRepo, BaseURL: cfg.BaseURL}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
