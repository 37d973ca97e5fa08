package audit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Write(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestEmitterDeliversEvents(t *testing.T) {
	sink := &captureSink{}
	emitter := NewEmitter(sink, 16)

	emitter.Emit("token.issued", "client-1", "user-1", map[string]interface{}{"scopes": "openid"})
	emitter.Emit("token.revoked", "client-1", "", nil)
	emitter.Close()

	require.Equal(t, 2, sink.count())
	assert.Equal(t, "token.issued", sink.events[0].Action)
	assert.Equal(t, "user-1", sink.events[0].UserID)
	assert.False(t, sink.events[0].At.IsZero())
}

func TestEmitterNeverBlocks(t *testing.T) {
	sink := &captureSink{}
	// Tiny buffer with a sink that is never drained fast enough to keep
	// up with a synchronous burst.
	emitter := NewEmitter(sink, 1)

	for i := 0; i < 1000; i++ {
		emitter.Emit("burst", "c", "u", nil)
	}
	emitter.Close()

	delivered := sink.count()
	dropped := emitter.Dropped()
	assert.Equal(t, int64(1000-delivered), dropped)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *Emitter
	assert.NotPanics(t, func() {
		emitter.Emit("noop", "", "", nil)
	})
}
