package ingest

import (
	"time"

	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/retry"
)

// immediateTimer fires as soon as it is started.
type immediateTimer struct{ c chan time.Time }

func (t *immediateTimer) Start(time.Duration) { t.c <- time.Now() }
func (t *immediateTimer) Stop()               {}
func (t *immediateTimer) C() <-chan time.Time { return t.c }

func newTestExecutor(rec events.Emitter) *retry.Executor {
	return retry.NewExecutor(retry.DefaultConfig(), rec, retry.WithTimer(func() retry.Timer {
		return &immediateTimer{c: make(chan time.Time, 1)}
	}))
}
