package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if !clock.Now().Equal(clock.Now()) {
		t.Fatalf("a clock without step must stand still")
	}
}

func TestClockAdvancePastTTL(t *testing.T) {
	clock := NewClock(At(9, 0))
	ttl := 15 * 24 * time.Hour

	if got := clock.Advance(ttl); !got.Equal(At(9, 0).Add(ttl)) {
		t.Fatalf("advance returned %v", got)
	}

	clock.Set(At(12, 0))
	if got := clock.Now(); !got.Equal(At(12, 0)) {
		t.Fatalf("expected %v, got %v", At(12, 0), got)
	}
}

func TestSteppingClock(t *testing.T) {
	clock := NewSteppingClock(At(9, 0), time.Second)

	first := clock.Now()
	second := clock.Now()
	if !first.Equal(At(9, 0)) || !second.Equal(At(9, 0).Add(time.Second)) {
		t.Fatalf("expected one second steps, got %v then %v", first, second)
	}
}
