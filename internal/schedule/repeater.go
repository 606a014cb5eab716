// Package schedule provides the owned, stoppable periodic task used for
// maintenance work (store compaction, quota resets, refresh-set clearing).
package schedule

import (
	"sync"
	"time"
)

// Repeater runs fn every interval until stopped. Each component owns its
// Repeater and stops it on teardown, so no timer outlives its owner.
type Repeater struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewRepeater starts a repeater invoking fn every interval. fn runs on a
// dedicated goroutine; invocations never overlap.
func NewRepeater(interval time.Duration, fn func()) *Repeater {
	r := &Repeater{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.ticker.C:
				fn()
			case <-r.done:
				return
			}
		}
	}()
	return r
}

// Stop halts the repeater and waits for any in-flight invocation to finish.
// Safe to call more than once.
func (r *Repeater) Stop() {
	r.once.Do(func() {
		r.ticker.Stop()
		close(r.done)
	})
	r.wg.Wait()
}
