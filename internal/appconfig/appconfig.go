// Package appconfig holds the CLI-facing configuration the update engine
// is driven by, tagged by the three modes the CLI parser dispatches to
// (Generate, Install, Update), plus the optional update-site descriptor
// read back on a bare re-run of "patchloop update".
package appconfig

import "github.com/Masterminds/semver/v3"

// Mode selects which of Generate/Install/Update a Config describes.
type Mode int

const (
	Install Mode = iota
	Update
	Generate
)

func (m Mode) String() string {
	switch m {
	case Install:
		return "install"
	case Update:
		return "update"
	case Generate:
		return "generate"
	default:
		return "unknown"
	}
}

// Config is the CLI parser's output: exactly one mode's fields are
// meaningful, mirroring how cobra hands each subcommand its own flag set.
type Config struct {
	Mode Mode

	// Install
	SourceDir string
	TargetDir string

	// Update
	Source         string // local path or http(s) URL
	Force          bool
	ContinueUpdate bool

	// Generate
	Directory  string
	AppExe     string
	MinVersion *semver.Version
}
