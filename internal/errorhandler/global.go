package errorhandler

import (
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
)

// The process-wide handler is meant for composition-root code only: main wires
// it with Initialize and passes it down explicitly. Library packages take a
// *Handler instead of calling Global.
var (
	globalMu sync.Mutex
	global   *Handler

	guard atomic.Pointer[guardConfig]
)

type guardConfig struct {
	handler *Handler
	repanic bool
}

// GuardOption configures SetupGlobalHandlers.
type GuardOption func(*guardConfig)

// WithRepanic makes Recover re-raise the panic after handling it, so the
// process still crashes.
func WithRepanic() GuardOption {
	return func(g *guardConfig) { g.repanic = true }
}

// Global returns the process-wide handler, creating a default one on first use.
func Global() *Handler {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New()
	}
	return global
}

// Initialize replaces the process-wide handler.
func Initialize(h *Handler) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = h
}

// Reset drops the process-wide handler and the panic guards. Tests use it to
// isolate global state.
func Reset() {
	globalMu.Lock()
	global = nil
	globalMu.Unlock()
	guard.Store(nil)
}

// SetupGlobalHandlers makes h the target of Recover and Go. A nil h selects
// Global at the time of the panic.
func SetupGlobalHandlers(h *Handler, opts ...GuardOption) {
	cfg := &guardConfig{handler: h}
	for _, opt := range opts {
		opt(cfg)
	}
	guard.Store(cfg)
}

// Recover must be deferred directly. It routes a panic in the current goroutine
// through the guarded handler with category hint UNKNOWN.
//
//	func main() {
//		defer errorhandler.Recover()
//		...
//	}
func Recover() {
	r := recover()
	if r == nil {
		return
	}
	cfg := guard.Load()
	h := Global()
	if cfg != nil && cfg.handler != nil {
		h = cfg.handler
	}
	h.Handle(r, errors.CategoryUnknown)
	if cfg != nil && cfg.repanic {
		panic(r)
	}
}

// Go runs fn in a new goroutine whose panics are handled like Recover.
func Go(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}
