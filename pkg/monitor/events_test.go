package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceguard-ai/voiceguard/pkg/voiceprint"
)

func event(caller string, authorized bool) CallEvent {
	return NewCallEvent(voiceprint.Decision{
		Caller:     caller,
		Confidence: 0.9,
		Authorized: authorized,
	})
}

func TestEventChan_PublishAndDrain(t *testing.T) {
	ec := NewEventChan(8)

	ec.Publish(event("Mom", true))
	ec.Publish(event("Unknown", false))

	got := ec.DrainAll()
	require.Len(t, got, 2)
	assert.Equal(t, "Mom", got[0].Caller)
	assert.Equal(t, StatusAuthorized, got[0].Status)
	assert.Equal(t, "Unknown", got[1].Caller)
	assert.Equal(t, StatusBlocked, got[1].Status)

	assert.Empty(t, ec.DrainAll(), "drain on empty channel must not block")
}

func TestEventChan_OverflowDropsOldest(t *testing.T) {
	ec := NewEventChan(2)

	ec.Publish(event("one", true))
	ec.Publish(event("two", true))
	ec.Publish(event("three", true)) // evicts "one"

	got := ec.DrainAll()
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Caller)
	assert.Equal(t, "three", got[1].Caller)
}

func TestEventChan_Clear(t *testing.T) {
	ec := NewEventChan(4)
	ec.Publish(event("Mom", true))
	ec.Clear()
	assert.Empty(t, ec.DrainAll())
}

func TestHistory_BoundedTrailing(t *testing.T) {
	h := NewHistory(3)

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		h.Add(event(name, true))
	}

	assert.Equal(t, 3, h.Len())
	recent := h.Recent()
	require.Len(t, recent, 3)
	// Newest first.
	assert.Equal(t, "e", recent[0].Caller)
	assert.Equal(t, "d", recent[1].Caller)
	assert.Equal(t, "c", recent[2].Caller)
}

func TestHistory_DefaultLimit(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < DefaultHistoryLimit+10; i++ {
		h.Add(event("x", false))
	}
	assert.Equal(t, DefaultHistoryLimit, h.Len())
}
