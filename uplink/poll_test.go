package uplink

import (
	"testing"
	"time"
)

func TestAdaptivePollBacksOffTowardSteady(t *testing.T) {
	p := newAdaptivePoll(100*time.Millisecond, 800*time.Millisecond)

	got := []time.Duration{p.next(), p.next(), p.next(), p.next()}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("next() call %d = %v, want %v", i, got[i], want[i])
		}
	}

	// Once at steady state it stays there.
	if d := p.next(); d != 800*time.Millisecond {
		t.Errorf("steady-state next() = %v, want %v", d, 800*time.Millisecond)
	}
}

func TestAdaptivePollResetDropsToFast(t *testing.T) {
	p := newAdaptivePoll(50*time.Millisecond, 400*time.Millisecond)
	p.next()
	p.next()
	p.reset()
	if d := p.next(); d != 50*time.Millisecond {
		t.Errorf("next() after reset = %v, want fast interval %v", d, 50*time.Millisecond)
	}
}

func TestAdaptivePollDefaultsFastWhenZero(t *testing.T) {
	p := newAdaptivePoll(0, 0)
	if d := p.next(); d != DefaultFastPoll {
		t.Errorf("next() = %v, want default fast poll %v", d, DefaultFastPoll)
	}
}
