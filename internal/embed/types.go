package embed

import "fmt"

// IoMode selects how an Embed's child executes relative to its parent tick.
type IoMode uint8

const (
	// IoModeAlias runs the child to quiescence fresh every gated parent
	// tick; the child carries no state between ticks.
	IoModeAlias IoMode = 0
	// IoModeCopy keeps a persistent child state, copying inputs in only
	// on the gate's rising edge.
	IoModeCopy IoMode = 1
)

func ioModeFromByte(v byte) (IoMode, error) {
	switch v {
	case 0:
		return IoModeAlias, nil
	case 1:
		return IoModeCopy, nil
	default:
		return 0, xerr(ErrInvalidIoMode, fmt.Sprintf("invalid io_mode %d", v))
	}
}

// BitMap is one (source_bit, dest_bit) pair from a map_in or map_out list.
type BitMap struct {
	SourceBit uint32
	DestBit   uint32
}

// Embed attaches a child chunk to a parent under a single gate bit in the
// parent's Internals. MapIn pairs reference (parent Internal bit, child
// Input bit); MapOut pairs reference (child Output bit, parent Output bit).
// GatePrev is the one piece of mutable history an Embed carries, consulted
// only by Copy mode's rising-edge detection.
type Embed struct {
	ParentChunk uint32
	ChildChunk  uint32
	GateBit     uint32
	IoMode      IoMode
	MapIn       []BitMap
	MapOut      []BitMap
	GatePrev    bool
}
