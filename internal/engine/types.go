// Package engine implements the update engine: the component that diffs
// two file trees, stages and applies changes with a backup/rename/restore
// protocol, handles self-replacement, and resolves files held open by
// other processes. It exposes its state machine as an explicit event
// channel plus a lock-conflict request/response channel, in place of
// signals and a condition variable.
package engine

import (
	"github.com/Masterminds/semver/v3"

	"github.com/patchloop/patchloop/internal/manifest"
	"github.com/patchloop/patchloop/internal/platform"
)

// EventKind discriminates the payload carried by an Event.
type EventKind int

const (
	EventStatus EventKind = iota
	EventProgressRange
	EventProgress
	EventDownloadProgress
	EventLockDetected
	EventFinished
	EventSelfUpdateRelaunch
)

// Event is the engine's single outbound signal type: one sum type over a
// channel in place of a separate status/progress/download-progress/
// finished/lock-detected/self-update-relaunch signal for each occasion.
type Event struct {
	Kind EventKind

	// EventStatus
	Status string

	// EventProgress
	FileDesc string
	FileOK   bool

	// EventProgressRange / EventProgress (current of range)
	Current int
	Total   int

	// EventDownloadProgress
	Downloaded    int64
	DownloadTotal int64

	// EventLockDetected
	LockedProcesses []platform.LockingProcess

	// EventFinished
	Success bool
	Err     error
}

// LockAction is the UI's response to an EventLockDetected event.
type LockAction int

const (
	LockRetry LockAction = iota
	LockKillAll
	LockCancel
)

// Config carries the inputs the engine needs before Prepare is called.
type Config struct {
	// Source is either a local directory or an http(s) URL.
	Source string
	// TargetDir is the directory being brought into correspondence with
	// Source.
	TargetDir string
	// ForceUpdate makes the update mandatory regardless of version.
	ForceUpdate bool
	// InstallMode marks a first-time install (no pre-existing target
	// version expected).
	InstallMode bool
	// ContinueUpdate is true on the process spawned by a self-update
	// relaunch; it suppresses re-entering the self-update branch and
	// excludes SelfPath from the diff.
	ContinueUpdate bool
	// SelfPath is the absolute path to the running executable, used for
	// the skip-self rule and self-update detection.
	SelfPath string
	// ShortcutName, when non-empty, is the desktop shortcut name created
	// in the post-apply step.
	ShortcutName string
}

// PrepareResult is published by Prepare for the UI's confirmation screen.
type PrepareResult struct {
	SourceManifest *manifest.Manifest
	TargetVersion  *semver.Version // nil if the target has no app_exe yet
	Mandatory      bool
}
