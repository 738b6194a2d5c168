package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/patchloop/patchloop/internal/manifest"
)

// Prepare loads the source manifest (or synthesizes one by hashing the
// source tree if no manifest.json is present) and reads the target's
// embedded application version, if the target already exists. It must not
// touch the network or hash the target — only Execute's scan step does
// that. The result is also stored on the Engine; Execute calls Prepare
// again after a URL source is resolved in step 1.
func (e *Engine) Prepare() (*PrepareResult, error) {
	sourceManifest, err := loadOrSynthesizeManifest(e.sourceDir)
	if err != nil {
		return nil, fmt.Errorf("loading source manifest: %w", err)
	}
	e.sourceManifest = sourceManifest

	var targetVersion *semver.Version
	if sourceManifest.AppExe != "" {
		targetExe := filepath.Join(e.cfg.TargetDir, sourceManifest.AppExe)
		if versionStr, err := e.plat.ReadExeVersion(targetExe); err == nil {
			if v, err := semver.NewVersion(versionStr); err == nil {
				targetVersion = v
			}
		}
	}

	mandatory := e.cfg.ForceUpdate || targetVersion == nil
	if !mandatory && sourceManifest.MinVersion != nil && targetVersion != nil {
		mandatory = targetVersion.LessThan(sourceManifest.MinVersion)
	}

	result := &PrepareResult{
		SourceManifest: sourceManifest,
		TargetVersion:  targetVersion,
		Mandatory:      mandatory,
	}
	e.prepareResult = result
	return result, nil
}

// loadOrSynthesizeManifest reads dir/manifest.json if present; otherwise it
// hashes dir and returns a manifest with empty Version/AppExe, matching
// Prepare's contract for a source that was never generate()'d.
func loadOrSynthesizeManifest(dir string) (*manifest.Manifest, error) {
	path := filepath.Join(dir, manifest.FileName)
	m, err := manifest.Read(path)
	if err == nil {
		return m, nil
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, err
	}

	files, hashErr := manifest.HashDirectory(dir, nil)
	if hashErr != nil {
		return nil, hashErr
	}
	return &manifest.Manifest{Files: files}, nil
}
