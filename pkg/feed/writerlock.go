package feed

import "context"

// writerLock is a binary semaphore whose Lock honors context cancellation,
// giving the single-writer critical section the "blocking, but cancellable"
// acquisition the engine's concurrency model requires without the goroutine
// bookkeeping a context-aware wrapper around sync.Mutex would need.
type writerLock struct {
	ch chan struct{}
}

func newWriterLock() *writerLock {
	l := &writerLock{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}
	return l
}

func (l *writerLock) Lock(ctx context.Context) error {
	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *writerLock) Unlock() {
	l.ch <- struct{}{}
}
