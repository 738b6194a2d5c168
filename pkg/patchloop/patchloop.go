// Package patchloop provides the public Go library API for patchloop.
//
// patchloop diffs a source file tree against an installed target, stages
// and atomically applies the difference, and self-replaces when its own
// executable changed. This package exposes a constructor and a blocking
// Run for embedding patchloop's update engine in other Go programs that
// want to drive their own UI instead of the bundled bubbletea one.
//
// # Basic usage
//
//	client, err := patchloop.New(patchloop.Options{
//	    Source:    "/path/to/release",
//	    TargetDir: "/opt/myapp",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prepared, err := client.Prepare()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if prepared.Mandatory || confirmWithUser(prepared) {
//	    result := client.Run(ctx, func(ev patchloop.Event) patchloop.LockAction {
//	        fmt.Println(ev.Status)
//	        return patchloop.LockRetry
//	    })
//	}
package patchloop

import (
	"context"
	"fmt"
	"io"

	"github.com/patchloop/patchloop/internal/applog"
	"github.com/patchloop/patchloop/internal/engine"
	"github.com/patchloop/patchloop/internal/platform"
)

// Type aliases re-export engine result and event types as the public API.
// Callers import "github.com/patchloop/patchloop/pkg/patchloop" and use
// patchloop.Event, patchloop.PrepareResult, etc., without reaching into
// internal/engine themselves.
type (
	Event         = engine.Event
	EventKind     = engine.EventKind
	LockAction    = engine.LockAction
	PrepareResult = engine.PrepareResult
)

const (
	LockRetry   = engine.LockRetry
	LockKillAll = engine.LockKillAll
	LockCancel  = engine.LockCancel
)

const (
	EventStatus             = engine.EventStatus
	EventProgressRange      = engine.EventProgressRange
	EventProgress           = engine.EventProgress
	EventDownloadProgress   = engine.EventDownloadProgress
	EventLockDetected       = engine.EventLockDetected
	EventFinished           = engine.EventFinished
	EventSelfUpdateRelaunch = engine.EventSelfUpdateRelaunch
)

// Options configures a patchloop Client. It mirrors engine.Config but
// supplies defaults so embedders don't need to know the engine's self-path
// and install-mode plumbing.
type Options struct {
	// Source is either a local directory or an http(s) URL.
	Source string
	// TargetDir is the directory being brought into correspondence with
	// Source.
	TargetDir string
	// Force makes the update mandatory regardless of version.
	Force bool
	// Install marks a first-time install (no pre-existing target version
	// expected). Defaults to false (update mode).
	Install bool
	// ContinueUpdate must be true only on the process spawned by a
	// self-update relaunch.
	ContinueUpdate bool
	// SelfPath overrides the running executable's path (used for the
	// skip-self rule and self-update detection). It is passed to the
	// engine as given; when empty, the skip-self rule and self-update
	// detection are off, which suits embedders that are not themselves the
	// updatable executable.
	SelfPath string
	// ShortcutName, when non-empty, names the desktop shortcut created in
	// the post-apply step.
	ShortcutName string
	// Log receives the engine's structured log lines. Defaults to
	// applog.Default()'s underlying writer (stdout).
	Log io.Writer
	// Platform overrides the OS-specific primitives the engine uses.
	// Defaults to platform.Current().
	Platform platform.Platform
}

// Client is the embeddable entry point for the patchloop library.
type Client struct {
	eng *engine.Engine
}

// New builds a Client from opts, ready for Prepare and Run.
func New(opts Options) (*Client, error) {
	if opts.TargetDir == "" {
		return nil, fmt.Errorf("patchloop: TargetDir is required")
	}
	if opts.Source == "" {
		return nil, fmt.Errorf("patchloop: Source is required")
	}

	plat := opts.Platform
	if plat == nil {
		plat = platform.Current()
	}

	var log *applog.Sink
	if opts.Log != nil {
		log = applog.New(opts.Log)
	} else {
		log = applog.Default()
	}

	cfg := engine.Config{
		Source:         opts.Source,
		TargetDir:      opts.TargetDir,
		ForceUpdate:    opts.Force,
		InstallMode:    opts.Install,
		ContinueUpdate: opts.ContinueUpdate,
		SelfPath:       opts.SelfPath,
		ShortcutName:   opts.ShortcutName,
	}

	return &Client{eng: engine.New(cfg, log, plat)}, nil
}

// Prepare scans the target and source just enough to report version
// information and whether the update is mandatory, without touching any
// files.
func (c *Client) Prepare() (*PrepareResult, error) {
	return c.eng.Prepare()
}

// Result is the outcome of a completed Run.
type Result struct {
	Success bool
	Err     error
}

// Run executes the update to completion, delivering every engine event to
// onEvent as it happens. When onEvent sees an Event with Kind ==
// engine.EventLockDetected, its return value is sent back to the engine as
// the lock-conflict resolution; the return value is ignored for every
// other event kind. Run blocks until the engine finishes and closes its
// event channel; cancelling ctx asks the engine to cancel, and Run still
// returns only once that run has finished.
func (c *Client) Run(ctx context.Context, onEvent func(Event) LockAction) Result {
	go c.eng.Execute(ctx)

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			c.eng.Cancel()
		case <-stopWatch:
		}
	}()

	var result Result
	for ev := range c.eng.Events() {
		if onEvent != nil {
			action := onEvent(ev)
			if ev.Kind == engine.EventLockDetected {
				c.eng.RespondToLockPrompt(action)
			}
		}
		if ev.Kind == engine.EventFinished {
			result = Result{Success: ev.Success, Err: ev.Err}
		}
	}
	return result
}

// Cancel requests cooperative cancellation of an in-progress Run, to be
// called from a separate goroutine than the one blocked in Run.
func (c *Client) Cancel() {
	c.eng.Cancel()
}
