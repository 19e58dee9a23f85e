package logic

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinceWraps(t *testing.T) {
	assert.Equal(t, Millis(300), Since(1300, 1000))
	assert.Equal(t, Millis(0x110), Since(0x10, 0xFFFFFF00))
	assert.Equal(t, Millis(1), Since(0, ^Millis(0)))
}

func TestMillisOf(t *testing.T) {
	assert.Equal(t, Millis(200), MillisOf(200_000_000))
	assert.Equal(t, Millis(0), MillisOf(-5))
	assert.Equal(t, ^Millis(0), MillisOf(1<<62))
}

func TestDebouncerFirstEdge(t *testing.T) {
	d := NewDebouncer(200)

	// The guard starts at zero, so the first window after origin is bounce.
	assert.False(t, d.Accept(150))
	assert.False(t, d.Accept(200))
	assert.True(t, d.Accept(201))
}

func TestDebouncerWithinWindow(t *testing.T) {
	d := NewDebouncer(200)
	require.True(t, d.Accept(10_000))

	for _, dt := range []Millis{1, 50, 100, 199, 200} {
		assert.False(t, d.Accept(10_000+dt), "edge %dms after accepted edge", dt)
	}

	// Rejected edges must not move the guard.
	assert.True(t, d.Accept(10_201))
}

func TestDebouncerIndependentEdges(t *testing.T) {
	d := NewDebouncer(200)
	now := Millis(5_000)
	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Accept(now) {
			accepted++
		}
		now += 201
	}
	assert.Equal(t, 5, accepted)
}

func TestDebouncerAcrossWrap(t *testing.T) {
	d := NewDebouncer(200)
	require.True(t, d.Accept(0xFFFFFF00))

	// 0x40 after wrap is 0x140 (320ms) later.
	assert.True(t, d.Accept(0x40))

	require.True(t, d.Accept(0xFFFFFFF0))
	// 0x20 after wrap is only 48ms later; a naive signed compare would see a huge gap.
	assert.False(t, d.Accept(0x20))
}

func TestToggleQueueTake(t *testing.T) {
	q := NewToggleQueue()
	assert.Equal(t, 0, q.Take())

	q.Push()
	q.Push()
	q.Push()
	assert.Equal(t, 3, q.Take())
	assert.Equal(t, 0, q.Take())
}

func TestToggleQueueWakeNeverBlocks(t *testing.T) {
	q := NewToggleQueue()
	for i := 0; i < 10; i++ {
		q.Push()
	}

	select {
	case <-q.Wake():
	default:
		t.Fatal("expected a pending wakeup")
	}
	select {
	case <-q.Wake():
		t.Fatal("wakeup channel should hold a single signal")
	default:
	}
	assert.Equal(t, 10, q.Take())
}

func TestToggleQueueConcurrentPush(t *testing.T) {
	q := NewToggleQueue()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, q.Take())
}

func TestEdgeHandler(t *testing.T) {
	now := Millis(1_000)
	clock := func() Millis { return now }
	q := NewToggleQueue()
	h := EdgeHandler(clock, NewDebouncer(200), q)

	h() // accepted
	now += 50
	h() // bounce
	now += 30
	h() // bounce
	now += 300
	h() // accepted

	assert.Equal(t, 2, q.Take())
}
