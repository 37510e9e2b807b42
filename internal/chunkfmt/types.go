package chunkfmt

import "fmt"

// Section identifies which bit array (Input, Internal, Output) a connection
// endpoint refers to.
type Section uint8

const (
	SectionInput    Section = 0
	SectionInternal Section = 1
	SectionOutput   Section = 2
)

func sectionFromByte(v byte) (Section, error) {
	switch v {
	case 0:
		return SectionInput, nil
	case 1:
		return SectionInternal, nil
	case 2:
		return SectionOutput, nil
	default:
		return 0, xerr(ErrInvalidSection, fmt.Sprintf("invalid section %d", v))
	}
}

// Trigger identifies the bit-transition edge a connection fires on.
type Trigger uint8

const (
	TriggerOn     Trigger = 0
	TriggerOff    Trigger = 1
	TriggerToggle Trigger = 2
)

func triggerFromByte(v byte) (Trigger, error) {
	switch v {
	case 0:
		return TriggerOn, nil
	case 1:
		return TriggerOff, nil
	case 2:
		return TriggerToggle, nil
	default:
		return 0, xerr(ErrInvalidTrigger, fmt.Sprintf("invalid trigger %d", v))
	}
}

// Action identifies what a connection does to its target bit when it fires.
type Action uint8

const (
	ActionEnable  Action = 0
	ActionDisable Action = 1
	ActionToggle  Action = 2
)

func actionFromByte(v byte) (Action, error) {
	switch v {
	case 0:
		return ActionEnable, nil
	case 1:
		return ActionDisable, nil
	case 2:
		return ActionToggle, nil
	default:
		return 0, xerr(ErrInvalidAction, fmt.Sprintf("invalid action %d", v))
	}
}

// Connection is one wiring record: when the bit at (FromSection,FromIndex)
// exhibits Trigger, apply Action to the bit at (ToSection,ToIndex).
type Connection struct {
	FromSection Section
	FromIndex   uint32
	ToSection   Section
	ToIndex     uint32
	Trigger     Trigger
	Action      Action
	OrderTag    uint32
}

// Chunk is the parsed, validated intermediate representation of a chunk
// binary: bit-packed Input/Output/Internal arrays plus an ordered
// connection table and optional metadata.
type Chunk struct {
	NI, NO, NN  uint32
	InputBits   []byte
	OutputBits  []byte
	InternalBits []byte
	Connections []Connection

	Name      string
	Note      string
	BuildHash []byte

	// Reserved preserves the header's reserved u32 verbatim for round-trip
	// fidelity; no semantics are assigned and it is always zero on encode.
	Reserved uint32
}
