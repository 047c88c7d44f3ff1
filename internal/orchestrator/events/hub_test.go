package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/GriffinCanCode/textcam/internal/errors"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub(4, 10)
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()

	h.Emit(Event{Type: TypeState, Data: "recognizing"})

	for _, ch := range []<-chan Event{a, b} {
		e := receive(t, ch)
		assert.Equal(t, TypeState, e.Type)
		assert.Equal(t, "recognizing", e.Data)
		assert.False(t, e.Time.IsZero())
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(1, 0)
	ch, cancel := h.Subscribe()
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.Subscribers())

	// Emitting with no subscribers is fine.
	h.Emit(Event{Type: TypeState})
}

func TestHubEmitNeverBlocks(t *testing.T) {
	h := NewHub(1, 0)
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Emit(Event{Type: TypeState})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
}

func TestHubRetainsRecentNotices(t *testing.T) {
	h := NewHub(1, 2)

	h.Notify(Notice{Level: LevelInfo, Message: "one"})
	h.Notify(Notice{Level: LevelInfo, Message: "two"})
	h.Notify(Notice{Level: LevelWarn, Message: "three"})
	h.Emit(Event{Type: TypeState, Data: "idle"})

	got := h.Notices()
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Message)
	assert.Equal(t, "three", got[1].Message)
}

func TestNoticeFromError(t *testing.T) {
	n := NoticeFromError(apperrors.New(apperrors.EngineNotReady, "recognition engine is not ready"))
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, "ENGINE_NOT_READY", n.Code)
	assert.Equal(t, "recognition engine is not ready", n.Message)

	n = NoticeFromError(errors.New("boom"))
	assert.Equal(t, "UNKNOWN", n.Code)
	assert.Equal(t, "boom", n.Message)
}
