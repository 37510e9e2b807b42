// Package embed implements gated sub-chunk embedding: an Embed attaches a
// child chunk to a parent under a single gate bit in the parent's
// Internals, in either Alias (stateless, re-run fresh every gated tick) or
// Copy (persistent child state, rising-edge copy-in) mode.
package embed

import (
	"mycoscheduler.dev/sim/internal/chunkfmt"
	"mycoscheduler.dev/sim/internal/csr"
	"mycoscheduler.dev/sim/internal/layout"
	"mycoscheduler.dev/sim/internal/sched"
)

// ExecuteAlias runs e's child fresh from its initial bits if the gate bit is
// set in parent's Internal words, binds MapIn from parent Internal bits
// into the child's Input, runs the child to quiescence, and writes MapOut
// child Output bits into parent's Output. Returns nil without running the
// child when the gate is clear.
func ExecuteAlias(parent *sched.State, childChunk *chunkfmt.Chunk, childCSR *csr.CSR, opts sched.Options, e *Embed) *sched.ExecutionResult {
	if !layout.TestBit(parent.Internal, e.GateBit) {
		return nil
	}

	child := sched.NewState(childChunk, opts)
	for _, m := range e.MapIn {
		setBitFrom(child.Input, m.DestBit, parent.Internal, m.SourceBit)
	}

	res := sched.Tick(child, childCSR, opts)

	for _, m := range e.MapOut {
		setBitFrom(parent.Output, m.DestBit, child.Output, m.SourceBit)
	}
	return res
}

// ExecuteCopy runs e's persistent child state while the gate bit is set,
// copying MapIn in only on the gate's rising edge, and always writing
// MapOut while gated. The child is idle (not ticked, outputs untouched)
// while the gate is clear. e.GatePrev is updated as a side effect.
func ExecuteCopy(parent *sched.State, child *sched.State, childCSR *csr.CSR, opts sched.Options, e *Embed) *sched.ExecutionResult {
	gateNow := layout.TestBit(parent.Internal, e.GateBit)
	risingEdge := gateNow && !e.GatePrev
	e.GatePrev = gateNow

	if !gateNow {
		return nil
	}

	if risingEdge {
		for _, m := range e.MapIn {
			setBitFrom(child.Input, m.DestBit, parent.Internal, m.SourceBit)
		}
	}

	res := sched.Tick(child, childCSR, opts)

	for _, m := range e.MapOut {
		setBitFrom(parent.Output, m.DestBit, child.Output, m.SourceBit)
	}
	return res
}

func setBitFrom(dst []uint32, dstBit uint32, src []uint32, srcBit uint32) {
	if layout.TestBit(src, srcBit) {
		layout.SetBit(dst, dstBit)
	} else {
		layout.ClearBit(dst, dstBit)
	}
}
