package signal

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(5, 10*time.Second)
	rl.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if !rl.Allow("g1") {
			t.Fatalf("attempt %d refused", i)
		}
	}
	if rl.Allow("g1") {
		t.Fatalf("sixth attempt in window allowed")
	}
	if !rl.Allow("g2") {
		t.Fatalf("limit must be per peer")
	}

	now = now.Add(10*time.Second + time.Millisecond)
	if !rl.Allow("g1") {
		t.Fatalf("attempt after window refused")
	}
}
