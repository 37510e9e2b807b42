package engine

import (
	"testing"

	"mycoscheduler.dev/sim/internal/chunkfmt"
	"mycoscheduler.dev/sim/internal/linkfmt"
	"mycoscheduler.dev/sim/internal/simconfig"
)

func wireEchoChunk() *chunkfmt.Chunk {
	return &chunkfmt.Chunk{
		NI: 1, NO: 1, NN: 1,
		Connections: []chunkfmt.Connection{
			{FromSection: chunkfmt.SectionInput, FromIndex: 0, ToSection: chunkfmt.SectionInternal, ToIndex: 0, Trigger: chunkfmt.TriggerOn, Action: chunkfmt.ActionEnable},
			{FromSection: chunkfmt.SectionInput, FromIndex: 0, ToSection: chunkfmt.SectionInternal, ToIndex: 0, Trigger: chunkfmt.TriggerOff, Action: chunkfmt.ActionDisable},
			{FromSection: chunkfmt.SectionInternal, FromIndex: 0, ToSection: chunkfmt.SectionOutput, ToIndex: 0, Trigger: chunkfmt.TriggerOn, Action: chunkfmt.ActionEnable},
			{FromSection: chunkfmt.SectionInternal, FromIndex: 0, ToSection: chunkfmt.SectionOutput, ToIndex: 0, Trigger: chunkfmt.TriggerOff, Action: chunkfmt.ActionDisable},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := simconfig.DefaultConfig()
	cfg.DataDir = t.TempDir()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestLoadChunksAssignsSequentialIDs(t *testing.T) {
	e := newTestEngine(t)
	raw := chunkfmt.Encode(wireEchoChunk())
	ids, err := e.LoadChunks([][]byte{raw, raw})
	if err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 1 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestSetInputsTickGetOutputsSingleChunk(t *testing.T) {
	e := newTestEngine(t)
	raw := chunkfmt.Encode(wireEchoChunk())
	if _, err := e.LoadChunks([][]byte{raw}); err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	if err := e.SetInputs(0, []uint32{1}); err != nil {
		t.Fatalf("SetInputs: %v", err)
	}
	summary, err := e.Tick(0)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if summary.Rounds == 0 {
		t.Fatalf("expected at least one round")
	}
	out := make([]uint32, 1)
	if err := e.GetOutputs(0, out); err != nil {
		t.Fatalf("GetOutputs: %v", err)
	}
	if out[0] != 1 {
		t.Fatalf("expected output bit 0 set, got %v", out)
	}
}

func TestLinkPropagationTakesEffectNextTick(t *testing.T) {
	e := newTestEngine(t)
	rawA := chunkfmt.Encode(wireEchoChunk())
	rawB := chunkfmt.Encode(wireEchoChunk())
	if _, err := e.LoadChunks([][]byte{rawA, rawB}); err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}

	links := []linkfmt.Link{
		{FromChunk: 0, FromOutIdx: 0, Trigger: chunkfmt.TriggerOn, Action: chunkfmt.ActionEnable, ToChunk: 1, ToInIdx: 0},
		{FromChunk: 0, FromOutIdx: 0, Trigger: chunkfmt.TriggerOff, Action: chunkfmt.ActionDisable, ToChunk: 1, ToInIdx: 0},
	}
	if err := e.LoadLinks(linkfmt.Encode(links)); err != nil {
		t.Fatalf("LoadLinks: %v", err)
	}

	if err := e.SetInputs(0, []uint32{1}); err != nil {
		t.Fatalf("SetInputs: %v", err)
	}

	if _, err := e.Tick(0); err != nil {
		t.Fatalf("first Tick: %v", err)
	}
	outB := make([]uint32, 1)
	if err := e.GetOutputs(1, outB); err != nil {
		t.Fatalf("GetOutputs: %v", err)
	}
	if outB[0] != 0 {
		t.Fatalf("downstream chunk should not react within the same tick, got %v", outB)
	}

	if _, err := e.Tick(0); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if err := e.GetOutputs(1, outB); err != nil {
		t.Fatalf("GetOutputs: %v", err)
	}
	if outB[0] != 1 {
		t.Fatalf("downstream chunk should react on the tick after propagation, got %v", outB)
	}
}

func TestSetPolicyRejectsUnknownMode(t *testing.T) {
	e := newTestEngine(t)
	raw := chunkfmt.Encode(wireEchoChunk())
	if _, err := e.LoadChunks([][]byte{raw}); err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	if err := e.SetPolicy("retry_forever"); err == nil {
		t.Fatalf("expected error for unknown policy mode")
	}
	if err := e.SetPolicy("parity_quench"); err != nil {
		t.Fatalf("SetPolicy: %v", err)
	}
}

func TestGetOutputsRejectsUnknownChunk(t *testing.T) {
	e := newTestEngine(t)
	raw := chunkfmt.Encode(wireEchoChunk())
	if _, err := e.LoadChunks([][]byte{raw}); err != nil {
		t.Fatalf("LoadChunks: %v", err)
	}
	if err := e.GetOutputs(5, make([]uint32, 1)); err == nil {
		t.Fatalf("expected error for out-of-range chunk id")
	}
}
