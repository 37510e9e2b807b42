// Package engine exposes the public handle external drivers use to run a
// population of chunks: load chunk and link binaries, stage inputs, select
// a cycle-resolution policy, advance one atomic tick across the whole
// population, and read back committed outputs. It orchestrates the
// internal/* packages the way a node's main wires up config, store, and
// sync engine construction, logging operational events through log/slog.
package engine

import (
	"bytes"
	"fmt"
	"log/slog"

	"mycoscheduler.dev/sim/internal/chunkfmt"
	"mycoscheduler.dev/sim/internal/csr"
	"mycoscheduler.dev/sim/internal/cycle"
	"mycoscheduler.dev/sim/internal/layout"
	"mycoscheduler.dev/sim/internal/linkfmt"
	"mycoscheduler.dev/sim/internal/sched"
	"mycoscheduler.dev/sim/internal/simconfig"
	"mycoscheduler.dev/sim/internal/store"
)

// inputOwner records which chunk and local input index a population-wide
// flattened input bit belongs to.
type inputOwner struct {
	chunk uint32
	local uint32
}

// Engine holds a population's loaded chunks, their per-chunk scheduling
// state, and the inter-chunk link wiring connecting them.
type Engine struct {
	cfg    simconfig.Config
	logger *slog.Logger
	db     *store.DB

	chunks   []*chunkfmt.Chunk
	chunkCSR []*csr.CSR
	states   []*sched.State
	opts     []sched.Options

	links      []linkfmt.Link
	offsets    []linkfmt.ChunkOffsets
	linkCSR    *csr.CSR
	inputOwner []inputOwner
	prevOutput []uint32 // flattened population output word buffer, previous tick
}

// TickSummary reports the atomic tick's aggregate cost across every chunk
// in the population plus any link propagation between chunks.
type TickSummary struct {
	Rounds  uint32
	Effects uint64
}

// New creates an Engine from a validated configuration and opens a
// bbolt-backed store.DB under cfg.DataDir, failing if it cannot be opened.
// The store persists loaded chunks, links, and the selected cycle policy.
func New(cfg simconfig.Config) (*Engine, error) {
	if err := simconfig.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
		db:     db,
	}
	if err := e.db.PutMeta("cycle_policy", []byte(cfg.CyclePolicy)); err != nil {
		e.logger.Warn("persist cycle_policy failed", "err", err)
	}
	return e, nil
}

// Close releases the Engine's underlying store.
func (e *Engine) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}

// LoadChunks parses, validates, and canonicalizes each raw chunk binary in
// blobs, assigning each a population id equal to its index. It returns the
// assigned ids in order.
func (e *Engine) LoadChunks(blobs [][]byte) ([]uint32, error) {
	chunks := make([]*chunkfmt.Chunk, len(blobs))
	for i, raw := range blobs {
		c, err := chunkfmt.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("engine: parse chunk %d: %w", i, err)
		}
		if err := chunkfmt.Validate(c); err != nil {
			return nil, fmt.Errorf("engine: validate chunk %d: %w", i, err)
		}
		canon := chunkfmt.Canonicalize(c)
		if len(canon.BuildHash) == 0 {
			canon.BuildHash = chunkfmt.ComputeBuildHash(canon)
		} else if want := chunkfmt.ComputeBuildHash(canon); !bytes.Equal(canon.BuildHash, want) {
			return nil, fmt.Errorf("engine: chunk %d build_hash mismatch: stored content does not match its stamped hash", i)
		}
		chunks[i] = canon
	}

	e.chunks = chunks
	e.chunkCSR = make([]*csr.CSR, len(chunks))
	e.states = make([]*sched.State, len(chunks))
	e.opts = make([]sched.Options, len(chunks))

	policy := simconfig.Policy(e.cfg)
	hasher := simconfig.Hasher(e.cfg)
	ids := make([]uint32, len(chunks))
	for i, c := range chunks {
		e.chunkCSR[i] = csr.BuildFromChunk(c)
		opts := sched.DefaultOptions(c.NI, c.NO, c.NN)
		opts.Policy = policy
		opts.Hasher = hasher
		opts.EffectBudget = e.cfg.EffectBudget
		opts.CycleWindow = e.cfg.CycleWindow
		e.opts[i] = opts
		e.states[i] = sched.NewState(c, opts)
		ids[i] = uint32(i)

		if e.db != nil {
			if err := e.db.PutChunk(uint32(i), chunkfmt.Encode(c)); err != nil {
				e.logger.Warn("persist chunk failed", "chunk_id", i, "err", err)
			}
		}
	}
	e.logger.Info("chunks loaded", "count", len(chunks))
	return ids, nil
}

// LoadLinks parses, validates, and wires the inter-chunk link blob against
// the chunks already loaded via LoadChunks.
func (e *Engine) LoadLinks(blob []byte) error {
	if e.chunks == nil {
		return fmt.Errorf("engine: load_links called before load_chunks")
	}
	links, err := linkfmt.Parse(blob)
	if err != nil {
		return fmt.Errorf("engine: parse links: %w", err)
	}
	if err := linkfmt.Validate(links, e.chunks); err != nil {
		return fmt.Errorf("engine: validate links: %w", err)
	}

	offsets := linkfmt.BaseOffsets(e.chunks)
	var inputTotal, outputTotal uint32
	for _, c := range e.chunks {
		inputTotal += c.NI
		outputTotal += c.NO
	}

	owners := make([]inputOwner, inputTotal)
	for i, c := range e.chunks {
		base := offsets[i].Input
		for j := uint32(0); j < c.NI; j++ {
			owners[base+j] = inputOwner{chunk: uint32(i), local: j}
		}
	}

	e.links = links
	e.offsets = offsets
	e.linkCSR = csr.BuildFromLinks(links, offsets, outputTotal)
	e.inputOwner = owners
	e.prevOutput = make([]uint32, layout.WordCount(outputTotal))

	if e.db != nil {
		if err := e.db.PutLinks(linkfmt.Encode(links)); err != nil {
			e.logger.Warn("persist links failed", "err", err)
		}
	}
	e.logger.Info("links loaded", "count", len(links))
	return nil
}

// SetInputs stores packed input words for chunkID, to take effect on the
// next call to Tick. It does not itself run the scheduler.
func (e *Engine) SetInputs(chunkID uint32, words []uint32) error {
	s, err := e.stateFor(chunkID)
	if err != nil {
		return err
	}
	s.SetInputs(words)
	return nil
}

// SetPolicy selects the cycle-resolution policy applied by every chunk's
// subsequent ticks. mode must be one of "freeze_last_stable",
// "clamp_commutative", "parity_quench".
func (e *Engine) SetPolicy(mode string) error {
	cfg := e.cfg
	cfg.CyclePolicy = mode
	if err := simconfig.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("engine: invalid policy %q: %w", mode, err)
	}
	e.cfg = cfg
	policy := simconfig.Policy(cfg)
	for i := range e.opts {
		e.opts[i].Policy = policy
	}
	if e.db != nil {
		if err := e.db.PutMeta("cycle_policy", []byte(mode)); err != nil {
			e.logger.Warn("persist cycle_policy failed", "err", err)
		}
	}
	e.logger.Info("policy changed", "policy", mode)
	return nil
}

// Tick advances every chunk in the population through one atomic tick:
// each chunk's scheduler runs to its termination cause using its current
// staged inputs, then any output bits that changed propagate across links
// into the downstream chunks' staged inputs for the *next* Tick call. If
// maxRounds is nonzero, it overrides every chunk's configured MaxRounds for
// this tick only.
func (e *Engine) Tick(maxRounds uint32) (*TickSummary, error) {
	if e.chunks == nil {
		return nil, fmt.Errorf("engine: tick called before load_chunks")
	}
	summary := &TickSummary{}

	newOutput := make([]uint32, len(e.prevOutput))
	for i, c := range e.chunks {
		opts := e.opts[i]
		if maxRounds != 0 {
			opts.MaxRounds = maxRounds
		}
		res := sched.Tick(e.states[i], e.chunkCSR[i], opts)
		summary.Rounds += res.Rounds
		summary.Effects += res.EffectsApplied
		if res.Oscillator {
			e.logger.Warn("chunk oscillated", "chunk_id", i, "period", res.Period, "policy", opts.Policy)
		}
		if e.linkCSR != nil {
			base := e.offsets[i].Output
			outWords := layout.BytesToWords(res.Outputs, c.NO)
			for bit := uint32(0); bit < c.NO; bit++ {
				if layout.TestBit(outWords, bit) {
					layout.SetBit(newOutput, base+bit)
				}
			}
		}
	}

	if e.linkCSR != nil {
		summary.Effects += e.propagateLinks(newOutput)
		e.prevOutput = newOutput
	}
	return summary, nil
}

// propagateLinks diffs newOutput against the previously committed
// population output vector, fires the population link CSR for every
// transitioning bit, resolves conflicting proposals per destination input
// bit with the same commutative precedence the intra-chunk scheduler uses,
// and applies the winning action directly to the destination chunk's
// staged Input words. It returns the number of link effects applied.
func (e *Engine) propagateLinks(newOutput []uint32) uint64 {
	type target struct {
		chunk uint32
		local uint32
	}
	proposals := make(map[target][]chunkfmt.Action)
	var order []target

	fire := func(src uint32, trig chunkfmt.Trigger) {
		for _, eff := range e.linkCSR.Slice(src, trig) {
			owner := e.inputOwner[eff.ToBit]
			t := target{chunk: owner.chunk, local: owner.local}
			if _, ok := proposals[t]; !ok {
				order = append(order, t)
			}
			proposals[t] = append(proposals[t], eff.Action)
		}
	}

	for bit := uint32(0); bit < uint32(e.linkCSR.SrcTotal()); bit++ {
		cur := layout.TestBit(newOutput, bit)
		prev := layout.TestBit(e.prevOutput, bit)
		if cur && !prev {
			fire(bit, chunkfmt.TriggerOn)
			fire(bit, chunkfmt.TriggerToggle)
		} else if !cur && prev {
			fire(bit, chunkfmt.TriggerOff)
			fire(bit, chunkfmt.TriggerToggle)
		}
	}

	var effects uint64
	for _, t := range order {
		action, ok := cycle.ResolvePrecedence(proposals[t])
		if !ok {
			continue
		}
		s := e.states[t.chunk]
		switch action {
		case chunkfmt.ActionEnable:
			layout.SetBit(s.Input, t.local)
		case chunkfmt.ActionDisable:
			layout.ClearBit(s.Input, t.local)
		case chunkfmt.ActionToggle:
			layout.ToggleBit(s.Input, t.local)
		}
		effects++
	}
	return effects
}

// GetOutputs copies chunkID's committed output words into out, truncating
// to len(out) and zero-filling any words of out beyond the chunk's own.
func (e *Engine) GetOutputs(chunkID uint32, out []uint32) error {
	s, err := e.stateFor(chunkID)
	if err != nil {
		return err
	}
	n := len(out)
	if n > len(s.Output) {
		n = len(s.Output)
	}
	copy(out[:n], s.Output[:n])
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	return nil
}

func (e *Engine) stateFor(chunkID uint32) (*sched.State, error) {
	if int(chunkID) >= len(e.states) {
		return nil, fmt.Errorf("engine: chunk id %d out of range", chunkID)
	}
	return e.states[chunkID], nil
}

// BitCounts returns chunkID's (NI, NO, NN), for callers sizing word
// buffers ahead of SetInputs/GetOutputs.
func (e *Engine) BitCounts(chunkID uint32) (ni, no, nn uint32, err error) {
	if int(chunkID) >= len(e.chunks) {
		return 0, 0, 0, fmt.Errorf("engine: chunk id %d out of range", chunkID)
	}
	c := e.chunks[chunkID]
	return c.NI, c.NO, c.NN, nil
}
