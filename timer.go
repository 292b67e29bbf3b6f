package dtls

import "time"

// TimerHandle identifies a scheduled task so it can be canceled.
type TimerHandle interface {
	Cancel()
}

// TimerService schedules retransmission and idle-eviction callbacks. It
// exists as an interface (rather than calling time.AfterFunc directly) so
// a handshake's retransmit timer keeps running even while the task that
// scheduled it is blocked on a slow credential lookup.
type TimerService interface {
	ScheduleAfter(d time.Duration, task func()) TimerHandle
}

// GoTimerService implements TimerService on top of time.AfterFunc.
type GoTimerService struct{}

type goTimerHandle struct{ timer *time.Timer }

func (h *goTimerHandle) Cancel() { h.timer.Stop() }

// ScheduleAfter runs task on its own goroutine after d elapses.
func (GoTimerService) ScheduleAfter(d time.Duration, task func()) TimerHandle {
	return &goTimerHandle{timer: time.AfterFunc(d, task)}
}
