package chunkfmt

import "fmt"

// Validate checks the structural invariants of a decoded chunk: every connection's
// edge is one of In→Int, Int→Int, Int→Out, and every index is within the
// referenced section's bit count.
func Validate(c *Chunk) error {
	for i, conn := range c.Connections {
		if err := validateEdge(conn); err != nil {
			return fmt.Errorf("connection %d: %w", i, err)
		}
		if err := validateFromIndex(c, conn); err != nil {
			return fmt.Errorf("connection %d: %w", i, err)
		}
		if err := validateToIndex(c, conn); err != nil {
			return fmt.Errorf("connection %d: %w", i, err)
		}
	}
	return nil
}

func validateEdge(conn Connection) error {
	switch {
	case conn.FromSection == SectionInput && conn.ToSection == SectionInternal:
	case conn.FromSection == SectionInternal && conn.ToSection == SectionInternal:
	case conn.FromSection == SectionInternal && conn.ToSection == SectionOutput:
	default:
		return xerr(ErrInvalidConnectionEdge, fmt.Sprintf("invalid edge %d->%d", conn.FromSection, conn.ToSection))
	}
	return nil
}

func validateFromIndex(c *Chunk, conn Connection) error {
	var count uint32
	switch conn.FromSection {
	case SectionInput:
		count = c.NI
	case SectionInternal:
		count = c.NN
	}
	if conn.FromIndex >= count {
		return xerr(ErrFromIndexOutOfRange, fmt.Sprintf("from_index %d out of range (count %d)", conn.FromIndex, count))
	}
	return nil
}

func validateToIndex(c *Chunk, conn Connection) error {
	var count uint32
	switch conn.ToSection {
	case SectionInternal:
		count = c.NN
	case SectionOutput:
		count = c.NO
	}
	if conn.ToIndex >= count {
		return xerr(ErrToIndexOutOfRange, fmt.Sprintf("to_index %d out of range (count %d)", conn.ToIndex, count))
	}
	return nil
}
