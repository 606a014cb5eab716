package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRepeater_InvokesPeriodically(t *testing.T) {
	var calls atomic.Int32
	r := NewRepeater(5*time.Millisecond, func() { calls.Add(1) })
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("repeater fired %d times, want >= 2", calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRepeater_StopHaltsInvocations(t *testing.T) {
	var calls atomic.Int32
	r := NewRepeater(time.Millisecond, func() { calls.Add(1) })

	time.Sleep(10 * time.Millisecond)
	r.Stop()

	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("repeater fired after Stop: %d -> %d", after, calls.Load())
	}
}

func TestRepeater_StopIsIdempotent(t *testing.T) {
	r := NewRepeater(time.Millisecond, func() {})
	r.Stop()
	r.Stop()
}
