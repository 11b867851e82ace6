package server

import "time"

// Scheduler runs a function after a delay. Narration pacing is the only
// place the gateway waits, and routing it through this interface lets
// tests advance time by hand instead of sleeping.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler is the production Scheduler, backed by the runtime's
// timers. Scheduled tasks are never cancelled; a task that fires after
// the phase moved on simply serves a fresh projection.
type TimerScheduler struct{}

func (TimerScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
