// Package events fans capture state changes, results and user-visible
// notices out to subscribers.
package events

import (
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
)

// Type names an event kind on the wire.
type Type string

const (
	TypeState    Type = "state"
	TypeResult   Type = "result"
	TypeNotice   Type = "notice"
	TypeSettings Type = "settings"
)

// Event is one message to subscribers. Data is JSON-encodable.
type Event struct {
	Type Type      `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// Level is a notice severity.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is a user-visible message, usually the result of a failure.
type Notice struct {
	Level   Level  `json:"level"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NoticeFromError converts err into a notice carrying its error code.
func NoticeFromError(err error) Notice {
	n := Notice{Level: LevelError, Code: apperrors.CodeOf(err).String(), Message: err.Error()}
	if app, ok := apperrors.As(err); ok {
		n.Message = app.Message
	}
	return n
}

// Emitter accepts events.
type Emitter interface {
	Emit(Event)
}

// Hub broadcasts events to subscribers and keeps the most recent notices.
type Hub struct {
	mu         sync.RWMutex
	subs       map[int]chan Event
	nextID     int
	buffer     int
	notices    []Notice
	maxNotices int
}

// NewHub creates a hub whose subscriber channels hold buffer events and
// which retains up to maxNotices notices.
func NewHub(buffer, maxNotices int) *Hub {
	return &Hub{
		subs:       make(map[int]chan Event),
		buffer:     buffer,
		maxNotices: maxNotices,
	}
}

// Subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Emit sends an event to every subscriber (non-blocking). A subscriber whose
// buffer is full misses the event.
func (h *Hub) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	h.mu.Lock()
	if n, ok := e.Data.(Notice); ok && e.Type == TypeNotice && h.maxNotices > 0 {
		h.notices = append(h.notices, n)
		if len(h.notices) > h.maxNotices {
			h.notices = h.notices[len(h.notices)-h.maxNotices:]
		}
	}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Notify emits a notice.
func (h *Hub) Notify(n Notice) {
	h.Emit(Event{Type: TypeNotice, Data: n})
}

// Notices returns a copy of the retained notices, oldest first.
func (h *Hub) Notices() []Notice {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Notice, len(h.notices))
	copy(out, h.notices)
	return out
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
