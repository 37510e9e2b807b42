package chunkfmt

import "unicode/utf8"

const (
	magic            = "MYCOSCH0"
	headerBytes      = 32
	supportedVersion = uint16(1)
	connRecordBytes  = 16

	tlvTypeName      = uint16(0x0001)
	tlvTypeNote      = uint16(0x0002)
	tlvTypeBuildHash = uint16(0x0003)
)

// Parse decodes a chunk binary image into its in-memory form. It does not perform the structural
// validation in Validate; callers should call Validate on the result before
// treating it as executable.
func Parse(b []byte) (*Chunk, error) {
	if len(b) < headerBytes {
		return nil, xerr(ErrUnexpectedEOF, "header truncated")
	}
	if string(b[0:8]) != magic {
		return nil, xerr(ErrInvalidMagic, "bad magic")
	}
	c := newCursor(b)
	if err := c.skip(8); err != nil {
		return nil, err
	}
	version, err := c.readU16LE()
	if err != nil {
		return nil, err
	}
	if version != supportedVersion {
		return nil, xerr(ErrUnsupportedVersion, "unsupported version")
	}
	if _, err := c.readU16LE(); err != nil { // flags, reserved
		return nil, err
	}
	ni, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	no, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	nn, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	connCountU32, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	connCount := int(connCountU32)
	reserved, err := c.readU32LE()
	if err != nil {
		return nil, err
	}

	inputBytes := int((ni + 7) / 8)
	outputBytes := int((no + 7) / 8)
	internalBytes := int((nn + 7) / 8)

	inputBits, err := c.readExact(inputBytes)
	if err != nil {
		return nil, err
	}
	outputBits, err := c.readExact(outputBytes)
	if err != nil {
		return nil, err
	}
	internalBits, err := c.readExact(internalBytes)
	if err != nil {
		return nil, err
	}
	bitsTotal := inputBytes + outputBytes + internalBytes
	pad := (4 - (bitsTotal % 4)) % 4
	if err := c.skip(pad); err != nil {
		return nil, err
	}

	connections := make([]Connection, connCount)
	for i := 0; i < connCount; i++ {
		rec, err := c.readExact(connRecordBytes)
		if err != nil {
			return nil, err
		}
		fromSection, err := sectionFromByte(rec[0])
		if err != nil {
			return nil, err
		}
		toSection, err := sectionFromByte(rec[1])
		if err != nil {
			return nil, err
		}
		trigger, err := triggerFromByte(rec[2])
		if err != nil {
			return nil, err
		}
		action, err := actionFromByte(rec[3])
		if err != nil {
			return nil, err
		}
		fromIndex := leU32(rec[4:8])
		toIndex := leU32(rec[8:12])
		orderTag := leU32(rec[12:16])
		connections[i] = Connection{
			FromSection: fromSection,
			FromIndex:   fromIndex,
			ToSection:   toSection,
			ToIndex:     toIndex,
			Trigger:     trigger,
			Action:      action,
			OrderTag:    orderTag,
		}
	}

	chunk := &Chunk{
		NI:           ni,
		NO:           no,
		NN:           nn,
		InputBits:    append([]byte(nil), inputBits...),
		OutputBits:   append([]byte(nil), outputBits...),
		InternalBits: append([]byte(nil), internalBits...),
		Connections:  connections,
		Reserved:     reserved,
	}

	if err := parseTLVTail(c, chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func parseTLVTail(c *cursor, chunk *Chunk) error {
	for c.remaining() > 0 {
		if c.remaining() < 4 {
			return xerr(ErrUnexpectedEOF, "truncated TLV header")
		}
		typ, err := c.readU16LE()
		if err != nil {
			return err
		}
		length, err := c.readU16LE()
		if err != nil {
			return err
		}
		value, err := c.readExact(int(length))
		if err != nil {
			return err
		}
		pad := (4 - (int(length) % 4)) % 4
		if err := c.skip(pad); err != nil {
			return err
		}
		switch typ {
		case tlvTypeName:
			if !utf8.Valid(value) {
				return xerr(ErrInvalidUTF8, "TLV name is not valid UTF-8")
			}
			chunk.Name = string(value)
		case tlvTypeNote:
			if !utf8.Valid(value) {
				return xerr(ErrInvalidUTF8, "TLV note is not valid UTF-8")
			}
			chunk.Note = string(value)
		case tlvTypeBuildHash:
			chunk.BuildHash = append([]byte(nil), value...)
		default:
			// Unknown TLV types are skipped, not rejected.
		}
	}
	return nil
}
