package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/patchloop/patchloop/internal/sandbox"
)

// SiteFileName is the sidecar written at the root of the target directory
// after a completed install or update, recording where to check for the
// next update.
const SiteFileName = "patchloop-site.yaml"

// UpdateSite is the optional "where do I check next time" descriptor.
// Its absence is not an error — it means no default feed is configured
// and the caller must pass --source explicitly.
type UpdateSite struct {
	FeedURL            string `yaml:"feed_url"`
	Channel            string `yaml:"channel,omitempty"`
	CheckIntervalHours int    `yaml:"check_interval_hours,omitempty"`
}

// LoadUpdateSite reads dir/SiteFileName. A missing file returns
// (nil, nil), not an error.
func LoadUpdateSite(dir string) (*UpdateSite, error) {
	data, err := os.ReadFile(joinSitePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", SiteFileName, err)
	}

	var site UpdateSite
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SiteFileName, err)
	}
	return &site, nil
}

// WriteUpdateSite atomically writes site to dir/SiteFileName.
func WriteUpdateSite(dir string, site *UpdateSite) error {
	data, err := yaml.Marshal(site)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", SiteFileName, err)
	}
	return sandbox.AtomicWriteFile(joinSitePath(dir), data, 0644)
}

func joinSitePath(dir string) string {
	return filepath.Join(dir, SiteFileName)
}
