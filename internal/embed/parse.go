package embed

// ParseEmbeds decodes a concatenated sequence of embed records. Each record
// is parent_chunk:u32, child_chunk:u32, gate_bit:u32, io_mode:u8,
// reserved:[3]u8, map_in_count:u32, map_in:(u32,u32)*, map_out_count:u32,
// map_out:(u32,u32)*; records repeat until the input is exhausted.
func ParseEmbeds(b []byte) ([]Embed, error) {
	c := &cursor{b: b}
	var embeds []Embed
	for c.remaining() > 0 {
		e, err := parseOne(c)
		if err != nil {
			return nil, err
		}
		embeds = append(embeds, e)
	}
	return embeds, nil
}

func parseOne(c *cursor) (Embed, error) {
	var e Embed
	var err error
	if e.ParentChunk, err = c.readU32LE(); err != nil {
		return e, err
	}
	if e.ChildChunk, err = c.readU32LE(); err != nil {
		return e, err
	}
	if e.GateBit, err = c.readU32LE(); err != nil {
		return e, err
	}
	modeByte, err := c.readU8()
	if err != nil {
		return e, err
	}
	if e.IoMode, err = ioModeFromByte(modeByte); err != nil {
		return e, err
	}
	if _, err = c.readExact(3); err != nil { // reserved
		return e, err
	}
	if e.MapIn, err = parseBitMaps(c); err != nil {
		return e, err
	}
	if e.MapOut, err = parseBitMaps(c); err != nil {
		return e, err
	}
	return e, nil
}

func parseBitMaps(c *cursor) ([]BitMap, error) {
	count, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	maps := make([]BitMap, count)
	for i := range maps {
		src, err := c.readU32LE()
		if err != nil {
			return nil, err
		}
		dst, err := c.readU32LE()
		if err != nil {
			return nil, err
		}
		maps[i] = BitMap{SourceBit: src, DestBit: dst}
	}
	return maps, nil
}

// Encode serialises embeds back to their concatenated binary form.
func Encode(embeds []Embed) []byte {
	var buf []byte
	for _, e := range embeds {
		buf = appendU32LE(buf, e.ParentChunk)
		buf = appendU32LE(buf, e.ChildChunk)
		buf = appendU32LE(buf, e.GateBit)
		buf = append(buf, byte(e.IoMode), 0, 0, 0)
		buf = appendBitMaps(buf, e.MapIn)
		buf = appendBitMaps(buf, e.MapOut)
	}
	return buf
}

func appendBitMaps(buf []byte, maps []BitMap) []byte {
	buf = appendU32LE(buf, uint32(len(maps)))
	for _, m := range maps {
		buf = appendU32LE(buf, m.SourceBit)
		buf = appendU32LE(buf, m.DestBit)
	}
	return buf
}

func appendU32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
