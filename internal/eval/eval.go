// Package eval implements the evaluation driver: running a chunk through a
// scripted episode of per-tick stimulus and capturing its per-tick outputs,
// independently of any downstream fitness computation.
package eval

import (
	"bytes"
	"sync"

	"mycoscheduler.dev/sim/internal/chunkfmt"
	"mycoscheduler.dev/sim/internal/csr"
	"mycoscheduler.dev/sim/internal/layout"
	"mycoscheduler.dev/sim/internal/sched"
)

// EpisodeSpec is one scripted run: a per-tick sequence of Input words to
// apply, and an optional per-tick sequence of expected Output words to
// check the observed outputs against.
type EpisodeSpec struct {
	Stimulus [][]uint32
	Expected [][]uint32
}

// EpisodeResult reports the outcome of running an EpisodeSpec to
// completion: total rounds and effects applied across every tick, whether
// any tick oscillated, the observed Output bytes per tick, and whether
// every tick's observed outputs matched Expected (true vacuously if no
// Expected was given).
type EpisodeResult struct {
	Rounds         uint32
	EffectsApplied uint64
	Oscillator     bool
	ObservedOutputs [][]byte
	Matches        bool
}

// RunEpisode resets chunk to its initial bits and, for each tick, sets
// Inputs from spec.Stimulus[tick], runs the scheduler to termination, and
// captures the committed Output bytes.
func RunEpisode(chunk *chunkfmt.Chunk, g *csr.CSR, opts sched.Options, spec EpisodeSpec) *EpisodeResult {
	s := sched.NewState(chunk, opts)
	result := &EpisodeResult{Matches: true}

	for tick, stimulus := range spec.Stimulus {
		s.SetInputs(stimulus)
		tickResult := sched.Tick(s, g, opts)
		result.Rounds += tickResult.Rounds
		result.EffectsApplied += tickResult.EffectsApplied
		if tickResult.Oscillator {
			result.Oscillator = true
		}
		result.ObservedOutputs = append(result.ObservedOutputs, tickResult.Outputs)

		if tick < len(spec.Expected) {
			want := layout.WordsToBytes(spec.Expected[tick], chunk.NO)
			if !bytes.Equal(want, tickResult.Outputs) {
				result.Matches = false
			}
		}
	}
	return result
}

// RunEpisodes runs every episode independently and in parallel — each gets
// its own scheduler state, so there is no shared mutation across episodes
// — and returns results in the same order as episodes.
func RunEpisodes(chunk *chunkfmt.Chunk, g *csr.CSR, opts sched.Options, episodes []EpisodeSpec) []*EpisodeResult {
	results := make([]*EpisodeResult, len(episodes))
	var wg sync.WaitGroup
	for i, spec := range episodes {
		wg.Add(1)
		go func(i int, spec EpisodeSpec) {
			defer wg.Done()
			results[i] = RunEpisode(chunk, g, opts, spec)
		}(i, spec)
	}
	wg.Wait()
	return results
}
