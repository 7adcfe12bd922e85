package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldFireOncePerDayInWindow(t *testing.T) {
	w := &AutoRunWorker{hour: 6}

	assert.False(t, w.shouldFire(time.Date(2026, 8, 29, 5, 59, 0, 0, time.Local)))
	assert.True(t, w.shouldFire(time.Date(2026, 8, 29, 6, 0, 30, 0, time.Local)))
	// repeated checks within the same hour do not refire
	assert.False(t, w.shouldFire(time.Date(2026, 8, 29, 6, 30, 0, 0, time.Local)))
	// outside the window, nothing
	assert.False(t, w.shouldFire(time.Date(2026, 8, 29, 7, 0, 0, 0, time.Local)))
	// next day fires again
	assert.True(t, w.shouldFire(time.Date(2026, 8, 30, 6, 5, 0, 0, time.Local)))
}
