package cmd

import (
	"github.com/spf13/cobra"

	"github.com/patchloop/patchloop/internal/appconfig"
	"github.com/patchloop/patchloop/internal/applog"
	"github.com/patchloop/patchloop/internal/ui"
)

var (
	installSource string
	installTarget string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install into a target directory, prompting for one if not given",
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().StringVarP(&installSource, "source", "s", "", "source directory or http(s) URL (defaults to the directory next to this executable)")
	installCmd.Flags().StringVarP(&installTarget, "target", "t", "", "installation directory (prompted for if omitted)")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	source := installSource
	if source == "" {
		dir, err := selfDir()
		if err != nil {
			return err
		}
		source = dir
	}

	cfg := appconfig.Config{
		Mode:      appconfig.Install,
		SourceDir: source,
		TargetDir: installTarget,
		Source:    source,
	}

	log := applog.Default()
	final, err := ui.Run(cfg, log)
	if err != nil {
		errorf("install failed: %v", err)
		return err
	}
	writeSiteDescriptor(final)
	info("Install complete.")
	return nil
}

// writeSiteDescriptor persists where this run's source came from, so a
// later bare "patchloop update" in the same target can find it again.
func writeSiteDescriptor(cfg appconfig.Config) {
	site := &appconfig.UpdateSite{FeedURL: cfg.Source}
	if err := appconfig.WriteUpdateSite(cfg.TargetDir, site); err != nil {
		detail("could not write %s: %v", appconfig.SiteFileName, err)
	}
}
