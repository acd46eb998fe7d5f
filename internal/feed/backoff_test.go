package feed

import (
	"context"
	"testing"
	"time"
)

func TestBackoffNextGrowth(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 8 * time.Second, Factor: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := b.Next(i + 1); got != w {
			t.Fatalf("attempt %d: expect %v, got %v", i+1, w, got)
		}
	}
}

func TestSleepBackoffTimerFires(t *testing.T) {
	b := Backoff{Min: 5 * time.Millisecond, Max: 5 * time.Millisecond, Factor: 1}
	if err := sleepBackoff(context.Background(), b, 1); err != nil {
		t.Fatalf("expect nil after timer fire, got %v", err)
	}
}

func TestSleepBackoffCanceled(t *testing.T) {
	b := Backoff{Min: 10 * time.Second, Max: 10 * time.Second, Factor: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepBackoff(ctx, b, 1); err == nil {
		t.Fatal("expect context error on canceled sleep")
	}
}
