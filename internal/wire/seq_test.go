package wire_test

import (
	"testing"

	"github.com/corvidlabs/reludp/internal/wire"
)

func TestForwardDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b uint16
		want int
	}{
		{"equal", 100, 100, 0},
		{"immediate successor", 101, 100, 1},
		{"no wrap", 500, 100, 400},
		{"wraps past zero", 1, wire.MaxSeq, 2},
		{"wraps to immediate successor", 0, wire.MaxSeq, 1},
		{"b ahead of a wraps to a large distance", 100, 500, wire.MaxSeq + 1 - 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := wire.ForwardDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("ForwardDistance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestHalfRangeSplitsAheadFromBehind(t *testing.T) {
	t.Parallel()

	const base uint16 = 1000

	// Just inside half range: treated as ahead (a legitimate next value).
	ahead := base + wire.HalfRange - 1
	if d := wire.ForwardDistance(ahead, base); d >= wire.HalfRange {
		t.Errorf("ForwardDistance(%d, %d) = %d, want < HalfRange", ahead, base, d)
	}

	// At half range: treated as behind/stale.
	behind := base + wire.HalfRange
	if d := wire.ForwardDistance(behind, base); d < wire.HalfRange {
		t.Errorf("ForwardDistance(%d, %d) = %d, want >= HalfRange", behind, base, d)
	}
}

func TestNextSeq(t *testing.T) {
	t.Parallel()

	if got := wire.NextSeq(0); got != 1 {
		t.Errorf("NextSeq(0) = %d, want 1", got)
	}
	if got := wire.NextSeq(wire.MaxSeq); got != 0 {
		t.Errorf("NextSeq(MaxSeq) = %d, want 0", got)
	}
	if got := wire.NextSeq(wire.MaxSeq - 1); got != wire.MaxSeq {
		t.Errorf("NextSeq(MaxSeq-1) = %d, want MaxSeq", got)
	}
}

func TestRandomSeqVaries(t *testing.T) {
	t.Parallel()

	seen := make(map[uint16]bool)
	for range 32 {
		v, err := wire.RandomSeq()
		if err != nil {
			t.Fatalf("RandomSeq() error: %v", err)
		}
		seen[v] = true
	}

	if len(seen) < 2 {
		t.Error("RandomSeq() returned the same value 32 times in a row")
	}
}

func TestRandomSessionIDNeverZero(t *testing.T) {
	t.Parallel()

	for range 256 {
		id, err := wire.RandomSessionID()
		if err != nil {
			t.Fatalf("RandomSessionID() error: %v", err)
		}
		if id == 0 {
			t.Fatal("RandomSessionID() returned 0")
		}
	}
}
