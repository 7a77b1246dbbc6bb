package scheduler

import (
	"log/slog"
	stdsync "sync"
	"time"
)

// TimerInvoker is the in-process Invoker implementation, built on
// time.AfterFunc. It guarantees at most one pending invocation per handler:
// scheduling replaces any timer already pending for the same name.
//
// Handlers are registered up front; scheduling an unregistered handler is
// a no-op apart from a warning, mirroring a best-effort external timer
// facility that drops callbacks for unknown endpoints.
type TimerInvoker struct {
	logger *slog.Logger

	mu       stdsync.Mutex
	handlers map[string]func()
	pending  map[string]*time.Timer
}

// NewTimerInvoker creates an empty TimerInvoker.
func NewTimerInvoker(logger *slog.Logger) *TimerInvoker {
	return &TimerInvoker{
		logger:   logger,
		handlers: make(map[string]func()),
		pending:  make(map[string]*time.Timer),
	}
}

// Register binds a handler name to a callback. Later registrations replace
// earlier ones.
func (t *TimerInvoker) Register(handler string, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers[handler] = fn
}

// ScheduleAfter arranges one invocation of the handler after the delay,
// replacing any invocation already pending for the same handler.
func (t *TimerInvoker) ScheduleAfter(handler string, delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn, ok := t.handlers[handler]
	if !ok {
		t.logger.Warn("schedule requested for unregistered handler",
			slog.String("handler", handler),
		)

		return nil
	}

	if timer, exists := t.pending[handler]; exists {
		timer.Stop()
	}

	t.pending[handler] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.pending, handler)
		t.mu.Unlock()

		fn()
	})

	return nil
}

// CancelAll removes any pending invocation for the handler. Invocations
// already executing are not interrupted.
func (t *TimerInvoker) CancelAll(handler string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, exists := t.pending[handler]; exists {
		timer.Stop()
		delete(t.pending, handler)
	}

	return nil
}

// Stop cancels every pending invocation. Called on daemon shutdown.
func (t *TimerInvoker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, timer := range t.pending {
		timer.Stop()
		delete(t.pending, name)
	}
}

// Compile-time interface check.
var _ Invoker = (*TimerInvoker)(nil)
