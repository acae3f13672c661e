package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/spkrepo/internal/config"
	"github.com/ralt/spkrepo/internal/logging"
	"github.com/ralt/spkrepo/internal/models"
	"github.com/ralt/spkrepo/internal/server"
	"github.com/ralt/spkrepo/internal/signer"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var overrides config.Overrides
	var warm bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the package listing over HTTP",
		Long: `Starts the HTTP server answering package center queries. Sources are
reconciled on the first request, after POST /-/reload, and every
reload_interval when one is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd, overrides)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return &models.RepoError{Type: models.ErrInvalidConfig, Err: err}
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return &models.RepoError{Type: models.ErrInvalidConfig, Err: err}
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			log := logger.WithFields(logging.ActionFields("serve", path))

			keys, err := signer.LoadPublicKeys(cfg.GPGPublicKeys)
			if err != nil {
				return &models.RepoError{Type: models.ErrFileOp, Err: err}
			}
			for _, key := range keys {
				log.WithField("fingerprints", key.Fingerprints).Infof("Loaded public key %s", key.Path)
			}

			projector, err := newProjector(cfg)
			if err != nil {
				return err
			}
			repo := newRepository(cfg, projector, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := server.NewApp(server.AppOptions{
				Repository:       repo,
				Keyrings:         signer.Keyrings(keys),
				DistributionPath: cfg.DistributionPath,
				Logger:           logger,
				BaseContext:      ctx,
			})
			if err != nil {
				return err
			}

			if warm {
				if _, err := repo.Snapshot(ctx); err != nil {
					return err
				}
			}
			go server.RunReloader(ctx, repo, cfg.ReloadInterval, logger)

			errCh := make(chan error, 1)
			go func() {
				log.WithField("listen", cfg.Listen).Info("Listening")
				errCh <- app.Listen(cfg.Listen)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Info("Shutting down")
				return app.Shutdown()
			}
		},
	}

	cmd.Flags().StringVar(&overrides.Listen, "listen", "", "Listen address (overrides listen)")
	cmd.Flags().StringVar(&overrides.SiteRoot, "site-root", "", "Public URL of the repository (overrides site_root)")
	cmd.Flags().BoolVar(&warm, "warm", false, "Reconcile every source before accepting requests")

	return cmd
}
