package layout

import "testing"

func TestBitToWordEdges(t *testing.T) {
	cases := []struct {
		bit      uint32
		word     uint32
		mask     uint32
	}{
		{0, 0, 0x00000001},
		{31, 0, 0x80000000},
		{32, 1, 0x1},
		{63, 1, 0x80000000},
	}
	for _, c := range cases {
		w, m := BitToWord(c.bit)
		if w != c.word || m != c.mask {
			t.Fatalf("BitToWord(%d) = (%d, %#x), want (%d, %#x)", c.bit, w, m, c.word, c.mask)
		}
	}
}

func TestBitOps(t *testing.T) {
	words := make([]uint32, 2)
	SetBit(words, 0)
	SetBit(words, 31)
	if words[0] != 0x80000001 {
		t.Fatalf("words[0] = %#x, want 0x80000001", words[0])
	}
	SetBit(words, 32)
	if words[1] != 1 {
		t.Fatalf("words[1] = %#x, want 1", words[1])
	}
	ToggleBit(words, 0)
	if TestBit(words, 0) {
		t.Fatalf("bit 0 still set after toggle")
	}
	ClearBit(words, 31)
	if words[0] != 0 {
		t.Fatalf("words[0] = %#x, want 0", words[0])
	}
}

func TestByteWordRoundTrip(t *testing.T) {
	bitCount := uint32(37)
	b := make([]byte, ByteCount(bitCount))
	b[0] = 0xAB
	b[4] = 0x01 // bit 32
	words := BytesToWords(b, bitCount)
	back := WordsToBytes(words, bitCount)
	for i := range b {
		if b[i] != back[i] {
			t.Fatalf("round trip mismatch at byte %d: got %#x want %#x", i, back[i], b[i])
		}
	}
}

func TestBytesToWordsShortInputZeroPads(t *testing.T) {
	words := BytesToWords(nil, 9)
	if len(words) != 1 || words[0] != 0 {
		t.Fatalf("nil input should unpack to all-zero words, got %v", words)
	}
	words = BytesToWords([]byte{0xFF}, 9)
	if words[0] != 0xFF {
		t.Fatalf("partial input should zero-pad missing bytes, got %#x", words[0])
	}
}

func TestWordCountByteCount(t *testing.T) {
	if WordCount(0) != 0 || ByteCount(0) != 0 {
		t.Fatalf("zero count mismatch")
	}
	if WordCount(1) != 1 || WordCount(32) != 1 || WordCount(33) != 2 {
		t.Fatalf("WordCount boundary mismatch")
	}
	if ByteCount(1) != 1 || ByteCount(8) != 1 || ByteCount(9) != 2 {
		t.Fatalf("ByteCount boundary mismatch")
	}
}
