package clock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jvs-project/mops/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestReal_Now(t *testing.T) {
	before := time.Now()
	got := clock.Real{}.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestFake_SetAndAdvance(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	c := clock.NewFake(start)
	assert.True(t, c.Now().Equal(start))

	c.Advance(2 * time.Hour)
	assert.True(t, c.Now().Equal(start.Add(2*time.Hour)))

	c.Advance(-3 * time.Hour)
	assert.True(t, c.Now().Equal(start.Add(-time.Hour)))

	later := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	assert.True(t, c.Now().Equal(later))
}

func TestFake_ConcurrentUse(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Millisecond)
			_ = c.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Now().UnixMilli())
}
