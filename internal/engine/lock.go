package engine

import "time"

// resolveLock is plugged into fileops.Ops as the LockResolver: when a
// primitive hits a "file in use" error, it calls this with the offending
// absolute path. It enumerates the processes holding files open under the
// target directory, raises EventLockDetected, and blocks on lockResponse
// until the UI answers or the run is cancelled.
func (e *Engine) resolveLock(absolutePath string) bool {
	for {
		if e.isCancelled() {
			return false
		}

		procs, err := e.plat.FindLockingProcesses(e.cfg.TargetDir)
		if err != nil {
			e.log.Warn("enumerating locking processes: %v", err)
		}

		e.emit(Event{Kind: EventLockDetected, LockedProcesses: procs})

		action := <-e.lockResponse

		switch action {
		case LockRetry:
			return true
		case LockKillAll:
			for _, p := range procs {
				if err := e.plat.KillProcess(p.PID); err != nil {
					e.log.Warn("killing pid %d (%s): %v", p.PID, p.Name, err)
				}
			}
			time.Sleep(500 * time.Millisecond)
			return true
		case LockCancel:
			return false
		default:
			return false
		}
	}
}
