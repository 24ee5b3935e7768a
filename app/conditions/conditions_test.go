package conditions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Empty(t *testing.T) {
	assert.True(t, Config{}.Empty())

	postpone := time.Minute
	assert.True(t, Config{MaxPostpone: &postpone}.Empty(), "postpone knobs alone don't make conditions")

	cpu := 80
	assert.False(t, Config{CPUBelow: &cpu}.Empty())
	loadAvg := 2.5
	assert.False(t, Config{LoadAvgBelow: &loadAvg}.Empty())
}

func TestChecker_NoConditions(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)
	ok, reason := c.Check(Config{})
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestChecker_CPU(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)

	// impossible-to-fail threshold
	threshold := 101
	ok, reason := c.Check(Config{CPUBelow: &threshold})
	assert.True(t, ok, reason)

	// impossible-to-pass threshold
	threshold = 0
	ok, reason = c.Check(Config{CPUBelow: &threshold})
	assert.False(t, ok)
	assert.Contains(t, reason, "CPU")
}

func TestChecker_Memory(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)

	threshold := 101
	ok, reason := c.Check(Config{MemoryBelow: &threshold})
	assert.True(t, ok, reason)

	threshold = 0
	ok, reason = c.Check(Config{MemoryBelow: &threshold})
	assert.False(t, ok)
	assert.Contains(t, reason, "memory")
}

func TestChecker_LoadAvg(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)

	threshold := 1000000.0
	ok, reason := c.Check(Config{LoadAvgBelow: &threshold})
	assert.True(t, ok, reason)

	threshold = 0.0
	ok, reason = c.Check(Config{LoadAvgBelow: &threshold})
	assert.False(t, ok)
	assert.Contains(t, reason, "load")
}

func TestChecker_DiskFree(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)

	threshold := 0
	ok, reason := c.Check(Config{DiskFreeAbove: &threshold}) // defaults to "/"
	assert.True(t, ok, reason)

	threshold = 101
	ok, reason = c.Check(Config{DiskFreeAbove: &threshold, DiskFreePath: "/"})
	assert.False(t, ok)
	assert.Contains(t, reason, "disk")
}

func TestChecker_DiskFreeBadPath(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)
	threshold := 10
	ok, reason := c.Check(Config{DiskFreeAbove: &threshold, DiskFreePath: "/no/such/mount/point"})
	assert.False(t, ok)
	assert.Contains(t, reason, "failed to get disk usage")
}

func TestChecker_FirstFailureWins(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)
	cpu := 0       // fails
	mem := 101     // would pass
	ok, reason := c.Check(Config{CPUBelow: &cpu, MemoryBelow: &mem})
	assert.False(t, ok)
	assert.Contains(t, reason, "CPU", "checks run in order, first failure reported")
}
