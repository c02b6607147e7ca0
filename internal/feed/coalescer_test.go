package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(v string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, v)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func TestCoalescer_TrailingLatestArgument(t *testing.T) {
	log := &callLog{}
	c := NewCoalescer(30*time.Millisecond, log.add)
	defer c.Stop()

	for _, v := range []string{"a", "b", "c", "d"} {
		c.Trigger(v)
	}
	assert.True(t, c.Pending())

	require.Eventually(t, func() bool { return len(log.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"d"}, log.get())
	assert.False(t, c.Pending())

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, log.get(), 1)
}

func TestCoalescer_SeparateWindowsFireSeparately(t *testing.T) {
	log := &callLog{}
	c := NewCoalescer(10*time.Millisecond, log.add)
	defer c.Stop()

	c.Trigger("first")
	require.Eventually(t, func() bool { return len(log.get()) == 1 }, time.Second, 2*time.Millisecond)

	c.Trigger("second")
	require.Eventually(t, func() bool { return len(log.get()) == 2 }, time.Second, 2*time.Millisecond)

	assert.Equal(t, []string{"first", "second"}, log.get())
}

func TestCoalescer_TriggerRestartsWindow(t *testing.T) {
	log := &callLog{}
	c := NewCoalescer(40*time.Millisecond, log.add)
	defer c.Stop()

	deadline := time.Now().Add(120 * time.Millisecond)
	for time.Now().Before(deadline) {
		c.Trigger("tick")
		time.Sleep(10 * time.Millisecond)
	}
	assert.Empty(t, log.get())

	require.Eventually(t, func() bool { return len(log.get()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCoalescer_StopDropsPending(t *testing.T) {
	log := &callLog{}
	c := NewCoalescer(10*time.Millisecond, log.add)

	c.Trigger("a")
	c.Stop()
	c.Trigger("b")

	assert.False(t, c.Pending())
	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, log.get())
}
