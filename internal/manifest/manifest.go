// Package manifest implements the manifest codec.
//
// A manifest is a JSON document at the root of a source or target tree
// enumerating the expected version, application executable, and per-file
// SHA-256 hashes.
package manifest

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Reserved file names: never hashed, never members of Files.
// These are never treated as part of the tree being diffed.
const (
	FileName       = "manifest.json"
	TmpFileName    = "manifest.json.tmp"
	LegacyFileName = "updateInfo.ini"
)

// Manifest is the parsed, validated form of manifest.json.
type Manifest struct {
	Version    *semver.Version
	MinVersion *semver.Version // nil if absent
	AppExe     string
	Files      map[string][32]byte // relative path -> raw SHA-256 digest
}

// IsReservedName reports whether name (a base file name, not a path) is one
// of the three names that are never hashed and never appear in Files.
func IsReservedName(name string) bool {
	switch name {
	case FileName, TmpFileName, LegacyFileName:
		return true
	default:
		return false
	}
}

// ParseError is returned by Read when the manifest is structurally invalid.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest %s: %s", e.Path, e.Reason)
}

// Clone returns a deep copy of m's Files map; Version/MinVersion are
// immutable *semver.Version values and are shared, not copied, matching the
// manifest's "immutable after load" contract.
func (m *Manifest) Clone() *Manifest {
	out := &Manifest{
		Version:    m.Version,
		MinVersion: m.MinVersion,
		AppExe:     m.AppExe,
	}
	out.Files = make(map[string][32]byte, len(m.Files))
	for k, v := range m.Files {
		out.Files[k] = v
	}
	return out
}
