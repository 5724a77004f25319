package kms

import (
	"testing"
	"time"
)

func TestBackoffDelayGrowth(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Factor: 2, Max: 5 * time.Second, MaxRetries: 3}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelayIsDeterministic(t *testing.T) {
	b := DefaultBackoff()
	for attempt := 0; attempt < 5; attempt++ {
		first := b.Delay(attempt)
		second := b.Delay(attempt)
		if first != second {
			t.Errorf("Delay(%d) not deterministic: %v vs %v", attempt, first, second)
		}
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	b := Backoff{Base: time.Second, Factor: 2, Max: 5 * time.Second, MaxRetries: 10}

	// 1s * 2^10 would be over 17 minutes without the cap.
	if got := b.Delay(10); got != 5*time.Second {
		t.Errorf("Delay(10) = %v, want cap of 5s", got)
	}
}
