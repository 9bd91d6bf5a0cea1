package feed

import (
	"context"
	"time"
)

// persistInterval is the fixed background persistence cadence described in
// §5; unlike the rebuild timers it is not configurable.
const persistInterval = time.Minute

// startTimers launches the persistence and rebuild background goroutines,
// owned by the engine and stopped by Close, in the lifecycle-ownership
// style of pkg/repository.Syncer.
func (e *Engine) startTimers() {
	e.timersWG.Add(1)
	go e.runPersistTimer()

	e.timersWG.Add(1)
	go e.runRebuildTimer()
}

func (e *Engine) runPersistTimer() {
	defer e.timersWG.Done()
	ticker := time.NewTicker(persistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopTimers:
			return
		case <-ticker.C:
			if err := e.cache.PersistIfDirty(); err != nil {
				e.log.Error("feed: background persist failed", "error", err)
			}
		}
	}
}

func (e *Engine) runRebuildTimer() {
	defer e.timersWG.Done()

	initialDelay := time.Duration(e.cfg.InitialCacheRebuildAfterSeconds) * time.Second
	select {
	case <-e.stopTimers:
		return
	case <-time.After(initialDelay):
	}

	e.triggerBackgroundRebuild()

	frequency := time.Duration(e.cfg.CacheRebuildFrequencyInMinutes) * time.Minute
	ticker := time.NewTicker(frequency)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopTimers:
			return
		case <-ticker.C:
			e.triggerBackgroundRebuild()
		}
	}
}

// triggerBackgroundRebuild recovers from any panic inside Rebuild so the
// timer goroutine survives, matching §5's "exceptions are caught and
// logged" background-job contract.
func (e *Engine) triggerBackgroundRebuild() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("feed: background rebuild panicked", "recovered", r)
		}
	}()
	if err := e.Rebuild(context.Background()); err != nil {
		e.log.Error("feed: background rebuild failed", "error", err)
	}
}
