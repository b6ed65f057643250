package engine

import "github.com/cameleer-io/cameleer/internal/cameleer/cerrors"

// InterruptJob cancels a not-yet-submitted job's submission if it is
// currently inside its interruption window (§4.6). Fails otherwise.
func (e *Engine) InterruptJob(jobID int64) error {
	e.interruptMu.Lock()
	sig, ok := e.interruptible[jobID]
	e.interruptMu.Unlock()
	if !ok {
		return cerrors.New(cerrors.KindInterruptMiss, "", nil, "job is not in an interruptable window")
	}
	select {
	case <-sig:
		// already interrupted or window closed concurrently
	default:
		close(sig)
	}
	return nil
}
