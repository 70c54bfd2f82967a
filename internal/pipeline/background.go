package pipeline

import (
	"log/slog"
	"sync"
)

// Background runs fire-and-forget side tasks (run archival, share-card
// rendering) so they never delay or fail the main pipeline. A panic in a
// task is logged and contained.
type Background struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewBackground(logger *slog.Logger) *Background {
	if logger == nil {
		logger = slog.Default()
	}
	return &Background{logger: logger}
}

// Go starts fn on its own goroutine.
func (b *Background) Go(name string, fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("background task panicked", "task", name, "panic", r)
			}
		}()
		fn()
	}()
}

// Wait blocks until every started task has finished. The CLI calls this
// before exiting so side tasks are not cut off mid-write.
func (b *Background) Wait() {
	b.wg.Wait()
}
