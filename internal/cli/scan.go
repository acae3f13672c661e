package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ralt/spkrepo/internal/config"
	"github.com/ralt/spkrepo/internal/models"
	"github.com/ralt/spkrepo/internal/repository"
)

// NewScanCmd creates the scan command
func NewScanCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Reconcile every source with its cache and exit",
		Long: `Scans each source directory for .spk archives, reads the ones not yet
cached, drops records of deleted archives and persists the updated caches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, config.Overrides{})
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return &models.RepoError{Type: models.ErrInvalidConfig, Err: err}
			}

			logrus.Infof("Scanning %d source(s)", len(cfg.Sources))
			logrus.Debugf("Configuration: %+v", cfg)

			repo := newRepository(cfg, nil, logrus.StandardLogger())
			snapshot, err := repo.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			failed := false
			for _, s := range snapshot.Sources() {
				if s.PersistErr != nil {
					failed = true
				}
			}

			out := cmd.OutOrStdout()
			printSummary(out, snapshot)
			if list {
				printPackages(out, snapshot)
			}

			if failed {
				logrus.Warn("Some caches could not be persisted; they will be rebuilt on the next run")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List every indexed package and its versions")

	return cmd
}

func printSummary(out io.Writer, s *repository.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tADDED\tREMOVED\tKEPT\tSKIPPED\tTHUMBNAILS\tPERSISTED")
	for _, src := range s.Sources() {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%t\n",
			src.Directory, src.Added, src.Removed, src.Kept, src.Skipped, src.Thumbnails, src.Persisted)
	}
	w.Flush()
	fmt.Fprintf(out, "%d archive(s), %d package(s), %d thumbnail(s)\n",
		len(s.Records()), len(s.Names()), s.ThumbnailCount())
}

func printPackages(out io.Writer, s *repository.Snapshot) {
	packages := s.Packages()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tVERSIONS\tARCHITECTURES\tDSM")
	for _, name := range s.Names() {
		idx := packages[name]
		var versions []string
		for _, r := range idx.Records() {
			v := r.Version().String()
			if r.IsBeta() {
				v += " (beta)"
			}
			versions = append(versions, v)
		}
		majors := make([]string, 0, len(idx.Majors()))
		for _, m := range idx.Majors() {
			majors = append(majors, fmt.Sprint(m))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name,
			strings.Join(versions, ", "),
			strings.Join(idx.Architectures(), ","),
			strings.Join(majors, ","))
	}
	w.Flush()
}
