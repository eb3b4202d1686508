package worker

import (
	"testing"
	"time"
)

func TestRetryDelayGrowsPerAttempt(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 10 * time.Second},
		{1, 20 * time.Second},
		{4, 50 * time.Second},
	}
	for _, c := range cases {
		if got := retryDelay(c.attempts); got != c.want {
			t.Errorf("retryDelay(%d): want %v, got %v", c.attempts, c.want, got)
		}
	}
}
