package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patchloop/patchloop/internal/appconfig"
	"github.com/patchloop/patchloop/internal/applog"
	"github.com/patchloop/patchloop/internal/ui"
)

var (
	updateSource         string
	updateTarget         string
	updateForce          bool
	updateContinueUpdate bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Bring an installed target up to date with a source",
	RunE:  runUpdate,
}

func init() {
	updateCmd.Flags().StringVarP(&updateSource, "source", "s", "", "source directory or http(s) URL")
	updateCmd.Flags().StringVarP(&updateTarget, "target", "t", "", "installed target directory (defaults to the directory this executable lives in)")
	updateCmd.Flags().BoolVar(&updateForce, "force", false, "apply the update regardless of version comparison")
	updateCmd.Flags().BoolVar(&updateContinueUpdate, "continue-update", false, "internal: set by a self-update relaunch, never pass by hand")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	target := updateTarget
	if target == "" {
		dir, err := selfDir()
		if err != nil {
			return err
		}
		target = dir
	}

	source := updateSource
	if source == "" {
		site, err := appconfig.LoadUpdateSite(target)
		if err != nil {
			return fmt.Errorf("reading %s: %w", appconfig.SiteFileName, err)
		}
		if site == nil || site.FeedURL == "" {
			return fmt.Errorf("--source is required (no %s found in %s)", appconfig.SiteFileName, target)
		}
		source = site.FeedURL
		detail("using source %s from %s", source, appconfig.SiteFileName)
	}

	cfg := appconfig.Config{
		Mode:           appconfig.Update,
		SourceDir:      source,
		TargetDir:      target,
		Source:         source,
		Force:          updateForce,
		ContinueUpdate: updateContinueUpdate,
	}

	log := applog.Default()
	final, err := ui.Run(cfg, log)
	if err != nil {
		errorf("update failed: %v", err)
		return err
	}
	writeSiteDescriptor(final)
	info("Update complete.")
	return nil
}
