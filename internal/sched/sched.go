// Package sched implements the wavefront scheduler: the micro-step
// pipeline of edge detection, proposal expansion, commutative conflict
// resolution, commit, and next-frontier computation that runs a chunk to
// quiescence (or a bounded termination cause) each tick.
package sched

import (
	"mycoscheduler.dev/sim/internal/chunkfmt"
	"mycoscheduler.dev/sim/internal/csr"
	"mycoscheduler.dev/sim/internal/cycle"
	"mycoscheduler.dev/sim/internal/layout"
)

// Policy selects the cycle-resolution strategy the scheduler applies when
// the cycle detector reports a repeat.
type Policy int

const (
	PolicyFreezeLastStable Policy = iota
	PolicyClampCommutative
	PolicyParityQuench
)

// Cause is the reportable reason a tick ended.
type Cause int

const (
	CauseQuiescent Cause = iota
	CauseRoundsExhausted
	CauseEffectsExhausted
	CauseOscillator
)

func (c Cause) String() string {
	switch c {
	case CauseQuiescent:
		return "quiescent"
	case CauseRoundsExhausted:
		return "rounds_exhausted"
	case CauseEffectsExhausted:
		return "effects_exhausted"
	case CauseOscillator:
		return "oscillator"
	default:
		return "unknown"
	}
}

// DefaultEffectBudget bounds total effects applied across a tick's rounds,
// guarding against runaway expansion on a pathological chunk.
const DefaultEffectBudget = 5_000_000

// Options configures one Tick invocation.
type Options struct {
	MaxRounds    uint32
	EffectBudget uint64
	Policy       Policy
	CycleWindow  int
	Hasher       cycle.Hasher
}

// DefaultOptions derives a MaxRounds bound from the chunk's bit counts and
// otherwise-conservative defaults.
func DefaultOptions(ni, no, nn uint32) Options {
	maxRounds := 64 + 8*(ni+no+nn)
	if maxRounds < 256 {
		maxRounds = 256
	}
	return Options{
		MaxRounds:    maxRounds,
		EffectBudget: DefaultEffectBudget,
		Policy:       PolicyFreezeLastStable,
		CycleWindow:  16,
		Hasher:       cycle.HasherMurmur3,
	}
}

// ExecutionResult reports the outcome of one tick.
type ExecutionResult struct {
	Rounds        uint32
	EffectsApplied uint64
	Oscillator    bool
	Period        uint32
	Policy        Policy
	Cause         Cause
	Internals     []byte
	Outputs       []byte
}

// State holds the persistent per-chunk runtime words across ticks: current
// Input/Output/Internal words and the Input snapshot from the previous tick
// used to seed edge events.
type State struct {
	NI, NO, NN uint32
	Input      []uint32
	Output     []uint32
	Internal   []uint32
	prevInput  []uint32
}

// NewState builds a State from a chunk's initial bit arrays.
func NewState(c *chunkfmt.Chunk, opts Options) *State {
	return &State{
		NI:        c.NI,
		NO:        c.NO,
		NN:        c.NN,
		Input:     layout.BytesToWords(c.InputBits, c.NI),
		Output:    layout.BytesToWords(c.OutputBits, c.NO),
		Internal:  layout.BytesToWords(c.InternalBits, c.NN),
		prevInput: make([]uint32, layout.WordCount(c.NI)),
	}
}

// SetInputs overwrites the current Input words (stored, not executed,
// until the next Tick runs).
func (s *State) SetInputs(words []uint32) {
	copy(s.Input, words)
}

// SetInputBits overwrites Input from a byte-packed bit array.
func (s *State) SetInputBits(bits []byte) {
	copy(s.Input, layout.BytesToWords(bits, s.NI))
}

type event struct {
	src   uint32
	edge  chunkfmt.Trigger
}

// Tick runs one atomic wavefront tick over c's CSR, mutating s in place, and
// returns the execution metrics. c must be the CSR built from the same
// chunk s was constructed from; source ids follow the combined
// Input+Internal numbering (Inputs 0..NI, Internals NI..NI+NN).
func Tick(s *State, c *csr.CSR, opts Options) *ExecutionResult {
	cycleWindow := opts.CycleWindow
	if cycleWindow == 0 {
		cycleWindow = DefaultOptions(s.NI, s.NO, s.NN).CycleWindow
	}
	// A fresh detector per tick: cycle detection is scoped to a single
	// tick's round sequence, not across ticks with unrelated stimuli.
	detector := cycle.NewDetector(cycleWindow, opts.Hasher)

	var frontier []event

	// Seed from Input edges against the previous tick's Input, plus every
	// currently-set Internal bit.
	for i := uint32(0); i < s.NI; i++ {
		cur := layout.TestBit(s.Input, i)
		prev := layout.TestBit(s.prevInput, i)
		if cur {
			frontier = append(frontier, event{src: i, edge: chunkfmt.TriggerOn}, event{src: i, edge: chunkfmt.TriggerToggle})
		} else if prev {
			frontier = append(frontier, event{src: i, edge: chunkfmt.TriggerOff}, event{src: i, edge: chunkfmt.TriggerToggle})
		}
	}
	for i := uint32(0); i < s.NN; i++ {
		if layout.TestBit(s.Internal, i) {
			src := s.NI + i
			frontier = append(frontier, event{src: src, edge: chunkfmt.TriggerOn}, event{src: src, edge: chunkfmt.TriggerToggle})
		}
	}

	prev := append([]uint32(nil), s.Internal...)
	curr := s.Internal // Tick mutates s.Internal directly as Curr.

	result := &ExecutionResult{Policy: opts.Policy}
	maxRounds := opts.MaxRounds
	if maxRounds == 0 {
		maxRounds = DefaultOptions(s.NI, s.NO, s.NN).MaxRounds
	}
	budget := opts.EffectBudget
	if budget == 0 {
		budget = DefaultEffectBudget
	}

	type target struct {
		isInternal bool
		bit        uint32
	}

	for {
		if len(frontier) == 0 {
			result.Cause = CauseQuiescent
			break
		}
		if result.Rounds >= maxRounds {
			result.Cause = CauseRoundsExhausted
			break
		}

		// Expand: stage every firing effect into per-target proposal lists.
		proposals := make(map[target][]chunkfmt.Action)
		var order []target
		var roundEffects uint64
		for _, ev := range frontier {
			for _, eff := range c.Slice(ev.src, ev.edge) {
				t := target{isInternal: eff.ToIsInternal, bit: eff.ToBit}
				if _, ok := proposals[t]; !ok {
					order = append(order, t)
				}
				proposals[t] = append(proposals[t], eff.Action)
				roundEffects++
			}
		}

		// Resolve + Commit: apply the commutative precedence per target.
		for _, t := range order {
			action, ok := cycle.ResolvePrecedence(proposals[t])
			if !ok {
				continue
			}
			var words []uint32
			if t.isInternal {
				words = curr
			} else {
				words = s.Output
			}
			switch action {
			case chunkfmt.ActionEnable:
				layout.SetBit(words, t.bit)
			case chunkfmt.ActionDisable:
				layout.ClearBit(words, t.bit)
			case chunkfmt.ActionToggle:
				layout.ToggleBit(words, t.bit)
			}
		}

		result.Rounds++
		result.EffectsApplied += roundEffects
		if result.EffectsApplied > budget {
			result.Cause = CauseEffectsExhausted
			break
		}

		// A repeat one round back (period 1) means this round left Internal
		// unchanged: that is a fixpoint, which the next-frontier step below
		// turns into quiescence, not an oscillation.
		if period, found := detector.Observe(curr); found && period != 1 {
			result.Cause = CauseOscillator
			result.Oscillator = true
			result.Period = period
			switch opts.Policy {
			case PolicyFreezeLastStable:
				// prev is the committed state entering this round: in this
				// synchronized-round model a round with zero next-frontier
				// events is indistinguishable from full quiescence (the
				// loop would simply end), so the state one round back is
				// the last genuine local fixpoint available to restore.
				cycle.FreezeLastStable(curr, prev)
			case PolicyClampCommutative:
				// Clamps over the proposals active in the detecting round;
				// this is the window that matters since it is what would
				// otherwise repeat indefinitely.
				var props []cycle.WindowProposal
				for _, t := range order {
					if !t.isInternal {
						continue
					}
					for _, a := range proposals[t] {
						props = append(props, cycle.WindowProposal{Bit: t.bit, Action: a})
					}
				}
				cycle.ClampCommutative(curr, props)
			case PolicyParityQuench:
				cycle.ParityQuench(curr, period)
			}
			break
		}

		// Next-frontier: internal bit diffs seed the next round; Output
		// bits never seed events.
		var next []event
		for i := uint32(0); i < s.NN; i++ {
			before := layout.TestBit(prev, i)
			after := layout.TestBit(curr, i)
			if before != after {
				edge := chunkfmt.TriggerOff
				if after {
					edge = chunkfmt.TriggerOn
				}
				next = append(next, event{src: s.NI + i, edge: edge}, event{src: s.NI + i, edge: chunkfmt.TriggerToggle})
			}
		}
		copy(prev, curr)
		frontier = next
	}

	result.Internals = layout.WordsToBytes(s.Internal, s.NN)
	result.Outputs = layout.WordsToBytes(s.Output, s.NO)
	copy(s.prevInput, s.Input)
	return result
}
