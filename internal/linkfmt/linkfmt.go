// Package linkfmt implements the inter-chunk link binary format:
// fixed 24-byte records wiring an output bit of one chunk to an input bit
// of another, plus the per-chunk base-offset computation used to address a
// population's bits uniformly.
package linkfmt

import (
	"encoding/binary"
	"fmt"

	"mycoscheduler.dev/sim/internal/chunkfmt"
)

const recordBytes = 24

// ErrorCode identifies the kind of format or structural error raised while
// parsing or validating links.
type ErrorCode string

const (
	ErrUnexpectedEOF           ErrorCode = "UNEXPECTED_EOF"
	ErrInvalidTrigger          ErrorCode = "INVALID_TRIGGER"
	ErrInvalidAction           ErrorCode = "INVALID_ACTION"
	ErrFromChunkOutOfRange     ErrorCode = "FROM_CHUNK_OUT_OF_RANGE"
	ErrToChunkOutOfRange       ErrorCode = "TO_CHUNK_OUT_OF_RANGE"
	ErrFromOutIndexOutOfRange  ErrorCode = "FROM_OUT_INDEX_OUT_OF_RANGE"
	ErrToInIndexOutOfRange     ErrorCode = "TO_IN_INDEX_OUT_OF_RANGE"
)

// Error is a tagged link-codec error.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func xerr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Link is one inter-chunk wiring record.
type Link struct {
	FromChunk   uint32
	FromOutIdx  uint32
	Trigger     chunkfmt.Trigger
	Action      chunkfmt.Action
	ToChunk     uint32
	ToInIdx     uint32
	OrderTag    uint32
}

// Parse decodes a raw link blob: a flat concatenation of 24-byte records.
// The input length must be a multiple of 24.
func Parse(data []byte) ([]Link, error) {
	if len(data)%recordBytes != 0 {
		return nil, xerr(ErrUnexpectedEOF, fmt.Sprintf("link blob length %d not a multiple of %d", len(data), recordBytes))
	}
	n := len(data) / recordBytes
	links := make([]Link, n)
	for i := 0; i < n; i++ {
		rec := data[i*recordBytes : (i+1)*recordBytes]
		fromChunk := binary.LittleEndian.Uint32(rec[0:4])
		fromOutIdx := binary.LittleEndian.Uint32(rec[4:8])
		trigger, err := triggerFromByte(rec[8])
		if err != nil {
			return nil, err
		}
		action, err := actionFromByte(rec[9])
		if err != nil {
			return nil, err
		}
		// rec[10:12] reserved
		toChunk := binary.LittleEndian.Uint32(rec[12:16])
		toInIdx := binary.LittleEndian.Uint32(rec[16:20])
		orderTag := binary.LittleEndian.Uint32(rec[20:24])
		links[i] = Link{
			FromChunk:  fromChunk,
			FromOutIdx: fromOutIdx,
			Trigger:    trigger,
			Action:     action,
			ToChunk:    toChunk,
			ToInIdx:    toInIdx,
			OrderTag:   orderTag,
		}
	}
	return links, nil
}

func triggerFromByte(v byte) (chunkfmt.Trigger, error) {
	switch v {
	case 0, 1, 2:
		return chunkfmt.Trigger(v), nil
	default:
		return 0, xerr(ErrInvalidTrigger, fmt.Sprintf("invalid trigger %d", v))
	}
}

func actionFromByte(v byte) (chunkfmt.Action, error) {
	switch v {
	case 0, 1, 2:
		return chunkfmt.Action(v), nil
	default:
		return 0, xerr(ErrInvalidAction, fmt.Sprintf("invalid action %d", v))
	}
}

// Encode serialises links back to their binary form.
func Encode(links []Link) []byte {
	buf := make([]byte, 0, len(links)*recordBytes)
	var tmp [4]byte
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	for _, l := range links {
		putU32(l.FromChunk)
		putU32(l.FromOutIdx)
		buf = append(buf, byte(l.Trigger), byte(l.Action), 0, 0)
		putU32(l.ToChunk)
		putU32(l.ToInIdx)
		putU32(l.OrderTag)
	}
	return buf
}

// Validate checks that every link references chunks and bit indices that
// exist in chunks, indexed by position.
func Validate(links []Link, chunks []*chunkfmt.Chunk) error {
	for i, l := range links {
		if int(l.FromChunk) >= len(chunks) {
			return fmt.Errorf("link %d: %w", i, xerr(ErrFromChunkOutOfRange, fmt.Sprintf("from_chunk %d out of range", l.FromChunk)))
		}
		if int(l.ToChunk) >= len(chunks) {
			return fmt.Errorf("link %d: %w", i, xerr(ErrToChunkOutOfRange, fmt.Sprintf("to_chunk %d out of range", l.ToChunk)))
		}
		from := chunks[l.FromChunk]
		to := chunks[l.ToChunk]
		if l.FromOutIdx >= from.NO {
			return fmt.Errorf("link %d: %w", i, xerr(ErrFromOutIndexOutOfRange, fmt.Sprintf("from_out_idx %d out of range for chunk %d", l.FromOutIdx, l.FromChunk)))
		}
		if l.ToInIdx >= to.NI {
			return fmt.Errorf("link %d: %w", i, xerr(ErrToInIndexOutOfRange, fmt.Sprintf("to_in_idx %d out of range for chunk %d", l.ToInIdx, l.ToChunk)))
		}
	}
	return nil
}

// ChunkOffsets holds the per-chunk base bit offsets within a population's
// flattened Input/Output/Internal address spaces.
type ChunkOffsets struct {
	Input    uint32
	Output   uint32
	Internal uint32
}

// BaseOffsets computes the prefix-summed (Input, Output, Internal) base
// offset for each chunk in chunks, in order.
func BaseOffsets(chunks []*chunkfmt.Chunk) []ChunkOffsets {
	offs := make([]ChunkOffsets, len(chunks))
	var baseIn, baseOut, baseInt uint32
	for i, c := range chunks {
		offs[i] = ChunkOffsets{Input: baseIn, Output: baseOut, Internal: baseInt}
		baseIn += c.NI
		baseOut += c.NO
		baseInt += c.NN
	}
	return offs
}
