package attempt

import (
	"sync"
	"time"
)

// RunClock drives the attempt's countdown from a periodic ticker. It stops on
// its own the moment Tick reports the attempt has left InProgress, so a
// completed attempt never sees spurious decrements. The returned stop
// function releases the ticker early (e.g. when the driving connection goes
// away) and is safe to call more than once.
func RunClock(a *Attempt, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Second
	}
	quit := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !a.Tick() {
					return
				}
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
	}
}
