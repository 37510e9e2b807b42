package eval

import (
	"testing"

	"mycoscheduler.dev/sim/internal/chunkfmt"
	"mycoscheduler.dev/sim/internal/csr"
	"mycoscheduler.dev/sim/internal/sched"
)

// srLatchChunk implements a set/reset latch: Input0 (S) enables Output0,
// Input1 (R) disables it; holding S=R=0 retains the last committed value.
func srLatchChunk() *chunkfmt.Chunk {
	return &chunkfmt.Chunk{
		NI: 2, NO: 1, NN: 0,
		Connections: []chunkfmt.Connection{
			{FromSection: chunkfmt.SectionInput, FromIndex: 0, ToSection: chunkfmt.SectionOutput, ToIndex: 0, Trigger: chunkfmt.TriggerOn, Action: chunkfmt.ActionEnable},
			{FromSection: chunkfmt.SectionInput, FromIndex: 1, ToSection: chunkfmt.SectionOutput, ToIndex: 0, Trigger: chunkfmt.TriggerOn, Action: chunkfmt.ActionDisable},
		},
	}
}

func TestRunEpisodeSRLatch(t *testing.T) {
	c := srLatchChunk()
	g := csr.BuildFromChunk(c)
	opts := sched.DefaultOptions(c.NI, c.NO, c.NN)

	spec := EpisodeSpec{
		Stimulus: [][]uint32{{0b01}, {0b00}, {0b10}, {0b00}},
		Expected: [][]uint32{{1}, {1}, {0}, {0}},
	}
	res := RunEpisode(c, g, opts, spec)
	if res.Oscillator {
		t.Fatalf("latch should never oscillate")
	}
	if !res.Matches {
		t.Fatalf("observed outputs did not match expected: %v", res.ObservedOutputs)
	}
	if len(res.ObservedOutputs) != 4 {
		t.Fatalf("expected 4 observed outputs, got %d", len(res.ObservedOutputs))
	}
}

func TestRunEpisodeMismatchIsReported(t *testing.T) {
	c := srLatchChunk()
	g := csr.BuildFromChunk(c)
	opts := sched.DefaultOptions(c.NI, c.NO, c.NN)

	spec := EpisodeSpec{
		Stimulus: [][]uint32{{0b01}},
		Expected: [][]uint32{{0}}, // wrong: S=1 should set Q=1
	}
	res := RunEpisode(c, g, opts, spec)
	if res.Matches {
		t.Fatalf("expected a mismatch to be reported")
	}
}

func TestRunEpisodesParallelPreservesOrder(t *testing.T) {
	c := srLatchChunk()
	g := csr.BuildFromChunk(c)
	opts := sched.DefaultOptions(c.NI, c.NO, c.NN)

	episodes := []EpisodeSpec{
		{Stimulus: [][]uint32{{0b01}}, Expected: [][]uint32{{1}}},
		{Stimulus: [][]uint32{{0b10}}, Expected: [][]uint32{{0}}},
		{Stimulus: [][]uint32{{0b00}}, Expected: [][]uint32{{0}}},
	}
	results := RunEpisodes(c, g, opts, episodes)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.Matches {
			t.Fatalf("episode %d: expected a match, got outputs %v", i, r.ObservedOutputs)
		}
	}
}
