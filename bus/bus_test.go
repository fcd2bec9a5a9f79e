package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch chan *Message, typ string) *Message {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case m := <-ch:
			if m.Type == typ {
				return m
			}
		case <-timeout:
			t.Fatalf("no %s message", typ)
			return nil
		}
	}
}

func TestSubscribeSend(t *testing.T) {
	ch := Subscribe("test-a", "test-b", "test-a")
	defer Unsubscribe(ch)

	id := Send("test-a", "ping", 1)
	m := receive(t, ch, "ping")
	assert.Equal(t, id, m.ID)
	assert.Equal(t, "test-a", m.Topic)
	assert.Equal(t, 1, m.Data)

	Send("test-b", "pong", "x")
	m = receive(t, ch, "pong")
	assert.Equal(t, "x", m.Data)

	Send("test-a", "once", nil)
	receive(t, ch, "once")
	select {
	case m := <-ch:
		t.Fatalf("duplicate delivery: %v", m.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestOtherTopicsNotDelivered(t *testing.T) {
	ch := Subscribe("test-c")
	defer Unsubscribe(ch)

	Send("test-d", "skip", nil)
	Send("test-c", "mark", nil)

	m := receive(t, ch, "mark")
	assert.Equal(t, "test-c", m.Topic)
	assert.Empty(t, ch)
}

func TestUnsubscribeCloses(t *testing.T) {
	ch := Subscribe("test-e")
	Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)

	// sending after unsubscribe must not panic
	Send("test-e", "late", nil)
	other := Subscribe("test-e")
	defer Unsubscribe(other)
	Send("test-e", "after", nil)
	require.NotNil(t, receive(t, other, "after"))
}

func TestIDsIncrease(t *testing.T) {
	a := Send("test-f", "x", nil)
	b := Send("test-f", "y", nil)
	assert.Greater(t, b, a)
}
