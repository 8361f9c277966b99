package errorhandler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/logfields"
	"git.home.luguber.info/inful/tutorguard/internal/recovery"
)

// Event is delivered to listeners once per Handle call.
type Event struct {
	ID       uuid.UUID
	Time     time.Time
	Error    *errors.BaseError
	Context  Context
	Strategy recovery.Result
}

// Listener observes handled errors. Listeners run synchronously inside Handle
// and should not block.
type Listener func(Event)

type listenerEntry struct {
	id uint64
	fn Listener
}

// OnError registers fn and returns a function that removes it. Listeners are
// called in registration order. Calling the returned function more than once
// is harmless.
func (h *Handler) OnError(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	id := h.nextID.Add(1)

	h.mu.Lock()
	h.listeners = append(h.listeners, listenerEntry{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, l := range h.listeners {
				if l.id == id {
					h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// ListenerCount returns the number of registered listeners.
func (h *Handler) ListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Handler) notify(evt Event) {
	h.mu.RLock()
	targets := make([]Listener, len(h.listeners))
	for i, l := range h.listeners {
		targets[i] = l.fn
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		h.deliver(fn, evt)
	}
}

// deliver isolates one listener so a panic cannot reach the caller of Handle
// or skip the remaining listeners.
func (h *Handler) deliver(fn Listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			h.recorder.IncListenerPanic()
			h.logger.Error("Error listener panicked",
				logfields.EventID(evt.ID.String()),
				slog.String(logfields.KeyError, fmt.Sprint(r)))
		}
	}()
	fn(evt)
}
