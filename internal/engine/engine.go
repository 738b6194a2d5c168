package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/patchloop/patchloop/internal/applog"
	"github.com/patchloop/patchloop/internal/fileops"
	"github.com/patchloop/patchloop/internal/manifest"
	"github.com/patchloop/patchloop/internal/platform"
)

// Engine drives one update lifecycle: Prepare loads the source manifest and
// target version; Execute runs the staged apply sequence. A single Engine
// is used for exactly one Execute call and then discarded.
type Engine struct {
	cfg  Config
	log  *applog.Sink
	plat platform.Platform
	ops  *fileops.Ops

	events       chan Event
	lockResponse chan LockAction
	cancelled    atomic.Bool

	sourceDir      string // resolved local directory (post URL-download)
	sourceManifest *manifest.Manifest
	prepareResult  *PrepareResult
}

// New builds an Engine for cfg. If plat is nil, platform.Current() is
// used; tests pass a fake to control ReadExeVersion/FindLockingProcesses/
// KillProcess/IsFileLockError deterministically.
func New(cfg Config, log *applog.Sink, plat platform.Platform) *Engine {
	if log == nil {
		log = applog.Default()
	}
	if plat == nil {
		plat = platform.Current()
	}

	e := &Engine{
		cfg:          cfg,
		log:          log,
		plat:         plat,
		sourceDir:    cfg.Source,
		events:       make(chan Event, 64),
		lockResponse: make(chan LockAction),
	}
	e.ops = &fileops.Ops{
		SelfPath:     cfg.SelfPath,
		LockResolver: e.resolveLock,
		Report:       e.reportFile,
		Platform:     plat,
	}
	return e
}

// Events returns the channel on which the engine publishes progress. It is
// closed after an EventFinished or EventSelfUpdateRelaunch is sent.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Cancel requests that Execute stop at its next suspension point. If the
// engine is currently blocked waiting on a lock-conflict response, Cancel
// also unblocks it with LockCancel.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
	select {
	case e.lockResponse <- LockCancel:
	default:
	}
}

// RespondToLockPrompt answers a pending EventLockDetected. It blocks until
// Execute is ready to receive the response (i.e. is actually waiting).
func (e *Engine) RespondToLockPrompt(action LockAction) {
	e.lockResponse <- action
}

func (e *Engine) isCancelled() bool {
	return e.cancelled.Load()
}

func (e *Engine) emit(ev Event) {
	e.events <- ev
}

func (e *Engine) status(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	e.log.Stage("%s", msg)
	e.emit(Event{Kind: EventStatus, Status: msg})
}

func (e *Engine) reportFile(relPath, action string, ok bool) {
	desc := relPath + " (" + action + ")"
	if ok {
		e.log.Info("%s", desc)
	} else {
		e.log.Error("%s", desc)
	}
	e.emit(Event{Kind: EventProgress, FileDesc: desc, FileOK: ok})
}

func (e *Engine) finish(success bool, err error) {
	if err != nil {
		e.log.Error("%v", err)
	}
	e.emit(Event{Kind: EventFinished, Success: success, Err: err})
	close(e.events)
}
