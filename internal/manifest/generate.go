package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/patchloop/patchloop/internal/platform"
)

// VersionReader reads the version embedded in an executable. Satisfied by
// platform.Platform.ReadExeVersion; a named interface keeps Generate
// testable without a real binary.
type VersionReader interface {
	ReadExeVersion(path string) (string, error)
}

// Generate builds a new manifest for dir, whose application executable is
// appExe (relative to dir). If an existing manifest.json in dir already
// carries the same version as the one embedded in appExe, Generate fails
// rather than overwrite a manifest that already describes this build.
func Generate(dir, appExe string, minVersion *semver.Version, reader VersionReader) (*Manifest, error) {
	if reader == nil {
		reader = platform.Current()
	}

	exePath := filepath.Join(dir, appExe)
	if _, err := os.Stat(exePath); err != nil {
		return nil, fmt.Errorf("app_exe %s not found under %s: %w", appExe, dir, err)
	}

	versionStr, err := reader.ReadExeVersion(exePath)
	if err != nil {
		return nil, fmt.Errorf("reading version from %s: %w", exePath, err)
	}
	version, err := semver.NewVersion(versionStr)
	if err != nil {
		return nil, fmt.Errorf("version %q read from %s is not parseable: %w", versionStr, exePath, err)
	}

	manifestPath := filepath.Join(dir, FileName)
	if existing, err := Read(manifestPath); err == nil {
		if existing.Version != nil && existing.Version.Equal(version) {
			return nil, fmt.Errorf("manifest at %s already describes version %s", manifestPath, version)
		}
	}

	files, err := HashDirectory(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", dir, err)
	}

	m := &Manifest{
		Version:    version,
		MinVersion: minVersion,
		AppExe:     appExe,
		Files:      files,
	}

	if err := Write(manifestPath, m); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	return m, nil
}
