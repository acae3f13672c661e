package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/spkrepo/internal/cache"
	"github.com/ralt/spkrepo/internal/config"
	"github.com/ralt/spkrepo/internal/models"
	"github.com/ralt/spkrepo/internal/projection"
	"github.com/ralt/spkrepo/internal/reconcile"
	"github.com/ralt/spkrepo/internal/repository"
	"github.com/ralt/spkrepo/internal/spk"
)

// loadConfig reads the configuration file named by --config and applies
// the command line overrides shared by every command
func loadConfig(cmd *cobra.Command, extra config.Overrides) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, &models.RepoError{Type: models.ErrInvalidConfig, Err: err}
	}

	extra.Sources, _ = cmd.Flags().GetStringSlice("source")
	extra.CacheDir, _ = cmd.Flags().GetString("cache-dir")
	extra.Apply(cfg)

	return cfg, path, nil
}

// newRepository wires the reconciliation engine and the facade from cfg.
// projector may be nil for commands that never list packages.
func newRepository(cfg *config.Config, projector *projection.Projector, logger logrus.FieldLogger) *repository.Repository {
	store := cache.NewStore(cfg.Cache.Directory, cfg.Cache.Compress)
	if !store.Enabled() {
		logger.Info("Cache persistence disabled")
	}

	engine := reconcile.NewEngine(store, cfg.StorageRoot, logger)

	reader := spk.NewTarReader()
	sources := make([]reconcile.Source, 0, len(cfg.Sources))
	for _, dir := range cfg.Sources {
		sources = append(sources, reconcile.Source{Directory: dir, Reader: reader})
	}

	return repository.New(engine, sources, repository.Options{
		OsMajorCeiling: cfg.OsMajorCeiling,
		Projector:      projector,
		Logger:         logger,
	})
}

func newProjector(cfg *config.Config) (*projection.Projector, error) {
	projector, err := projection.NewProjector(projection.Options{
		SiteRoot:         cfg.SiteRoot,
		DistributionPath: cfg.DistributionPath,
		DefaultLanguage:  cfg.DefaultLanguage,
	})
	if err != nil {
		return nil, &models.RepoError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("site_root: %w", err),
		}
	}
	return projector, nil
}
