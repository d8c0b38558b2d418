package fake

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	start := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	c := NewClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	c.Advance(2 * time.Second)
	if got := c.Now(); !got.Equal(start.Add(2 * time.Second)) {
		t.Fatalf("Now() after Advance = %v", got)
	}

	target := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	c.Set(target)
	if got := c.Now(); !got.Equal(target) {
		t.Fatalf("Now() after Set = %v, want %v", got, target)
	}
}
