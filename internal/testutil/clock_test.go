package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 14, 23, 59, 58, 0, time.UTC)

func TestStepClock_Advances(t *testing.T) {
	clock := NewStepClock(t0, time.Second)

	assert.Equal(t, t0, clock.Now())
	assert.Equal(t, t0.Add(time.Second), clock.Now())
	assert.Equal(t, t0.Add(2*time.Second), clock.Peek())
	assert.Equal(t, t0.Add(2*time.Second), clock.Now())
}

func TestStepClock_FixedNeverMoves(t *testing.T) {
	clock := NewFixedClock(t0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, t0, clock.Now())
	}
}

func TestStepClock_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	clock := NewFixedClock(time.Date(2026, 3, 15, 1, 0, 0, 0, loc))

	got := clock.Now()
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 14, got.Day())
}

func TestStepClock_SetAndReset(t *testing.T) {
	clock := NewStepClock(t0, time.Minute)
	clock.Now()

	next := t0.Add(48 * time.Hour)
	clock.Set(next)
	assert.Equal(t, next, clock.Now())

	clock.Reset()
	assert.Equal(t, t0, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(t0, time.Millisecond)
	const n = 100

	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ts := clock.Now()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n, "every call must observe a distinct instant")
	assert.Equal(t, t0.Add(n*time.Millisecond), clock.Peek())
}
