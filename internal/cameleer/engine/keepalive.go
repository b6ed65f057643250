package engine

import "time"

// armKeepAlive arms a single timer to fire at the next local-midnight
// boundary; its sole purpose is to keep the host runtime alive while the
// engine has no other activity (§4.6). On fire it logs a day marker and
// rearms.
func (e *Engine) armKeepAlive() {
	e.keepAliveMu.Lock()
	defer e.keepAliveMu.Unlock()
	if e.keepAliveTimer != nil {
		return
	}
	e.keepAliveTimer = time.AfterFunc(untilNextMidnight(), e.onKeepAliveFire)
}

func (e *Engine) onKeepAliveFire() {
	e.logger.Info("engine", "keep-alive day marker")
	e.keepAliveMu.Lock()
	select {
	case <-e.ctx.Done():
		e.keepAliveMu.Unlock()
		return
	default:
	}
	e.keepAliveTimer = time.AfterFunc(untilNextMidnight(), e.onKeepAliveFire)
	e.keepAliveMu.Unlock()
}

func (e *Engine) stopKeepAlive() {
	e.keepAliveMu.Lock()
	defer e.keepAliveMu.Unlock()
	if e.keepAliveTimer != nil {
		e.keepAliveTimer.Stop()
		e.keepAliveTimer = nil
	}
}

func untilNextMidnight() time.Duration {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return midnight.Sub(now)
}
