package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"mycoscheduler.dev/sim/internal/chunkfmt"
)

func wireEchoChunkBytes() []byte {
	c := &chunkfmt.Chunk{
		NI: 1, NO: 1, NN: 1,
		Connections: []chunkfmt.Connection{
			{FromSection: chunkfmt.SectionInput, FromIndex: 0, ToSection: chunkfmt.SectionInternal, ToIndex: 0, Trigger: chunkfmt.TriggerOn, Action: chunkfmt.ActionEnable},
			{FromSection: chunkfmt.SectionInput, FromIndex: 0, ToSection: chunkfmt.SectionInternal, ToIndex: 0, Trigger: chunkfmt.TriggerOff, Action: chunkfmt.ActionDisable},
			{FromSection: chunkfmt.SectionInternal, FromIndex: 0, ToSection: chunkfmt.SectionOutput, ToIndex: 0, Trigger: chunkfmt.TriggerOn, Action: chunkfmt.ActionEnable},
			{FromSection: chunkfmt.SectionInternal, FromIndex: 0, ToSection: chunkfmt.SectionOutput, ToIndex: 0, Trigger: chunkfmt.TriggerOff, Action: chunkfmt.ActionDisable},
		},
	}
	return chunkfmt.Encode(c)
}

func TestRunDryRunPrintsConfig(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--dry-run", "--datadir", dir}, &out, &errOut)
	if code != 0 {
		t.Fatalf("code=%d, stderr=%s", code, errOut.String())
	}
	if out.Len() == 0 {
		t.Fatalf("expected config output")
	}
}

func TestRunRequiresAtLeastOneChunk(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--datadir", dir}, &out, &errOut)
	if code != 2 {
		t.Fatalf("code=%d, want 2", code)
	}
}

func TestRunLoadsChunkAndTicks(t *testing.T) {
	dir := t.TempDir()
	chunkPath := filepath.Join(dir, "echo.myc")
	if err := os.WriteFile(chunkPath, wireEchoChunkBytes(), 0o600); err != nil {
		t.Fatalf("write chunk: %v", err)
	}

	var out, errOut bytes.Buffer
	code := run([]string{"--datadir", dir, "--chunk", chunkPath, "--ticks", "1"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("code=%d, stderr=%s", code, errOut.String())
	}
	if out.Len() == 0 {
		t.Fatalf("expected output")
	}
}

func TestRunRejectsInvalidCyclePolicy(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--datadir", dir, "--cycle-policy", "retry_forever", "--dry-run"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("code=%d, want 2", code)
	}
}

func TestMultiStringFlagSetAppends(t *testing.T) {
	var m multiStringFlag
	if err := m.Set("a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set("b"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := m.String(); got != "a,b" {
		t.Fatalf("string=%q, want %q", got, "a,b")
	}
}
