package cycle

import (
	"testing"

	"mycoscheduler.dev/sim/internal/chunkfmt"
)

func TestDetectorFindsPeriod(t *testing.T) {
	d := NewDetector(8, HasherMurmur3)
	states := [][]uint32{{1}, {3}, {2}, {1}}
	var period uint32
	var found bool
	for _, s := range states {
		period, found = d.Observe(s)
	}
	if !found {
		t.Fatalf("expected a cycle to be found")
	}
	if period != 3 {
		t.Fatalf("period = %d, want 3", period)
	}
}

func TestDetectorNoFalsePositive(t *testing.T) {
	d := NewDetector(8, HasherMurmur3)
	for i := uint32(0); i < 8; i++ {
		if _, found := d.Observe([]uint32{i}); found {
			t.Fatalf("unexpected cycle detected at distinct state %d", i)
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	words := []uint32{1, 2, 3, 0xdeadbeef}
	a := HashState(words, HasherMurmur3)
	b := HashState(words, HasherMurmur3)
	if a != b {
		t.Fatalf("hash not deterministic: %v vs %v", a, b)
	}
	fa := HashState(words, HasherFNV)
	fb := HashState(words, HasherFNV)
	if fa != fb {
		t.Fatalf("FNV hash not deterministic")
	}
}

func TestResolvePrecedence(t *testing.T) {
	cases := []struct {
		name    string
		actions []chunkfmt.Action
		want    chunkfmt.Action
		ok      bool
	}{
		{"disable wins", []chunkfmt.Action{chunkfmt.ActionEnable, chunkfmt.ActionDisable}, chunkfmt.ActionDisable, true},
		{"enable over toggle", []chunkfmt.Action{chunkfmt.ActionToggle, chunkfmt.ActionEnable}, chunkfmt.ActionEnable, true},
		{"odd toggle", []chunkfmt.Action{chunkfmt.ActionToggle, chunkfmt.ActionToggle, chunkfmt.ActionToggle}, chunkfmt.ActionToggle, true},
		{"even toggle no-op", []chunkfmt.Action{chunkfmt.ActionToggle, chunkfmt.ActionToggle}, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ResolvePrecedence(c.actions)
			if ok != c.ok {
				t.Fatalf("ok = %v, want %v", ok, c.ok)
			}
			if ok && got != c.want {
				t.Fatalf("action = %v, want %v", got, c.want)
			}
		})
	}
}

func TestFreezeLastStable(t *testing.T) {
	curr := []uint32{1, 2, 3}
	stable := []uint32{9, 9, 9}
	FreezeLastStable(curr, stable)
	for i := range curr {
		if curr[i] != stable[i] {
			t.Fatalf("curr[%d] = %d, want %d", i, curr[i], stable[i])
		}
	}
}

func TestParityQuench(t *testing.T) {
	curr := []uint32{0x0F0F0F0F}
	ParityQuench(curr, 2)
	if curr[0] != 0x0F0F0F0F {
		t.Fatalf("even period must leave state unchanged, got %#x", curr[0])
	}
	ParityQuench(curr, 3)
	if curr[0] != ^uint32(0x0F0F0F0F) {
		t.Fatalf("odd period must complement state, got %#x", curr[0])
	}
}

func TestClampCommutative(t *testing.T) {
	curr := []uint32{0}
	ClampCommutative(curr, []WindowProposal{
		{Bit: 0, Action: chunkfmt.ActionEnable},
		{Bit: 0, Action: chunkfmt.ActionDisable},
		{Bit: 1, Action: chunkfmt.ActionToggle},
	})
	if curr[0]&1 != 0 {
		t.Fatalf("bit 0 should resolve to Disable (cleared)")
	}
	if curr[0]&2 == 0 {
		t.Fatalf("bit 1 should resolve to Toggle (set from 0)")
	}
}
