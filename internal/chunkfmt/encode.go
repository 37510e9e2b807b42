package chunkfmt

import "encoding/binary"

// Encode serialises a Chunk back to its binary form. Encode does
// not validate c; call Validate first if the bytes must round-trip through
// Parse+Validate cleanly.
func Encode(c *Chunk) []byte {
	inputBytes := int((c.NI + 7) / 8)
	outputBytes := int((c.NO + 7) / 8)
	internalBytes := int((c.NN + 7) / 8)
	bitsTotal := inputBytes + outputBytes + internalBytes
	pad := (4 - (bitsTotal % 4)) % 4

	buf := make([]byte, 0, headerBytes+bitsTotal+pad+len(c.Connections)*connRecordBytes+64)

	buf = append(buf, magic...)
	buf = appendU16LE(buf, supportedVersion)
	buf = appendU16LE(buf, 0) // flags
	buf = appendU32LE(buf, c.NI)
	buf = appendU32LE(buf, c.NO)
	buf = appendU32LE(buf, c.NN)
	buf = appendU32LE(buf, uint32(len(c.Connections)))
	buf = appendU32LE(buf, 0) // reserved, always encoded as zero

	buf = appendPadded(buf, c.InputBits, inputBytes)
	buf = appendPadded(buf, c.OutputBits, outputBytes)
	buf = appendPadded(buf, c.InternalBits, internalBytes)
	for i := 0; i < pad; i++ {
		buf = append(buf, 0)
	}

	for _, conn := range c.Connections {
		buf = append(buf, byte(conn.FromSection), byte(conn.ToSection), byte(conn.Trigger), byte(conn.Action))
		buf = appendU32LE(buf, conn.FromIndex)
		buf = appendU32LE(buf, conn.ToIndex)
		buf = appendU32LE(buf, conn.OrderTag)
	}

	if c.Name != "" {
		buf = appendTLV(buf, tlvTypeName, []byte(c.Name))
	}
	if c.Note != "" {
		buf = appendTLV(buf, tlvTypeNote, []byte(c.Note))
	}
	if len(c.BuildHash) > 0 {
		buf = appendTLV(buf, tlvTypeBuildHash, c.BuildHash)
	}

	return buf
}

func appendPadded(buf, bits []byte, want int) []byte {
	if len(bits) >= want {
		return append(buf, bits[:want]...)
	}
	buf = append(buf, bits...)
	for i := len(bits); i < want; i++ {
		buf = append(buf, 0)
	}
	return buf
}

func appendU16LE(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32LE(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendTLV(buf []byte, typ uint16, value []byte) []byte {
	buf = appendU16LE(buf, typ)
	buf = appendU16LE(buf, uint16(len(value)))
	buf = append(buf, value...)
	pad := (4 - (len(value) % 4)) % 4
	for i := 0; i < pad; i++ {
		buf = append(buf, 0)
	}
	return buf
}
