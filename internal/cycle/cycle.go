// Package cycle implements the oscillation detector and the three
// resolution policies that guarantee scheduler termination.
package cycle

import (
	"math/bits"

	"mycoscheduler.dev/sim/internal/chunkfmt"
	"mycoscheduler.dev/sim/internal/layout"
)

// Hash128 is a 128-bit state hash.
type Hash128 struct {
	Hi, Lo uint64
}

// Hasher selects which 128-bit hash construction the detector uses. Either
// is acceptable: higher-level behaviour depends only on equality
// under identical states, not on the specific mixing function.
type Hasher int

const (
	// HasherMurmur3 is a four-lane Murmur3-derived mix, grounded directly
	// on the original engine's default `hash_state`.
	HasherMurmur3 Hasher = iota
	// HasherFNV is an FNV-1a-derived alternative the original source
	// notes as equally acceptable.
	HasherFNV
)

func hashMurmur3(words []uint32) Hash128 {
	mix := func(h, k uint32) uint32 {
		k *= 0xcc9e2d51
		k = bits.RotateLeft32(k, 15)
		k *= 0x1b873593
		h ^= k
		h = bits.RotateLeft32(h, 13)
		h = h*5 + 0xe6546b64
		return h
	}
	fmix := func(h uint32) uint32 {
		h ^= h >> 16
		h *= 0x85ebca6b
		h ^= h >> 13
		h *= 0xc2b2ae35
		h ^= h >> 16
		return h
	}

	var h0, h1, h2, h3 uint32
	for _, w := range words {
		h0 = mix(h0, w)
		h1 = mix(h1, bits.RotateLeft32(w, 8))
		h2 = mix(h2, bits.RotateLeft32(w, 16))
		h3 = mix(h3, bits.RotateLeft32(w, 24))
	}
	length := uint32(len(words) * 4)
	h0 = fmix(h0 ^ length)
	h1 = fmix(h1 ^ length)
	h2 = fmix(h2 ^ length)
	h3 = fmix(h3 ^ length)

	hi := uint64(h0)<<32 | uint64(h1)
	lo := uint64(h2)<<32 | uint64(h3)
	return Hash128{Hi: hi, Lo: lo}
}

func hashFNV(words []uint32) Hash128 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	var hi, lo uint64 = offset64, offset64 ^ 0x9e3779b97f4a7c15
	for _, w := range words {
		b0 := byte(w)
		b1 := byte(w >> 8)
		b2 := byte(w >> 16)
		b3 := byte(w >> 24)
		for _, b := range [4]byte{b0, b1, b2, b3} {
			hi ^= uint64(b)
			hi *= prime64
			lo ^= uint64(b) + 1
			lo *= prime64
		}
	}
	return Hash128{Hi: hi, Lo: lo}
}

// HashState hashes an internal-state word vector with the given Hasher.
func HashState(words []uint32, h Hasher) Hash128 {
	switch h {
	case HasherFNV:
		return hashFNV(words)
	default:
		return hashMurmur3(words)
	}
}

// Detector is a ring buffer of W (a power of two) 128-bit hashes. After
// each round's commit, the scheduler hashes Curr and calls Observe; on a
// repeat, Observe returns the minimal period.
type Detector struct {
	ring   []Hash128
	pos    int
	hasher Hasher
	filled int
}

// NewDetector creates a Detector with the given ring window (must be a
// power of two, e.g. 16 or 64) and hash construction.
func NewDetector(window int, hasher Hasher) *Detector {
	return &Detector{ring: make([]Hash128, window), hasher: hasher}
}

// Observe hashes words and checks the ring for a repeat. It returns the
// detected period and true on a match, or (0, false) otherwise.
func (d *Detector) Observe(words []uint32) (uint32, bool) {
	h := HashState(words, d.hasher)
	w := len(d.ring)
	limit := w
	if d.filled < w {
		limit = d.filled
	}
	for i := 0; i < limit; i++ {
		if d.ring[i] == h {
			period := (w + d.pos - i) % w
			d.ring[d.pos] = h
			d.pos = (d.pos + 1) % w
			if d.filled < w {
				d.filled++
			}
			return uint32(period), true
		}
	}
	d.ring[d.pos] = h
	d.pos = (d.pos + 1) % w
	if d.filled < w {
		d.filled++
	}
	return 0, false
}

// ResolvePrecedence applies the commutative precedence rule shared by the
// scheduler's per-round Resolve step and the ClampCommutative policy:
// Disable beats Enable beats Toggle-parity. ok is false when the
// only proposals are an even number of Toggles (a no-op).
func ResolvePrecedence(actions []chunkfmt.Action) (chunkfmt.Action, bool) {
	var sawDisable, sawEnable bool
	toggles := 0
	for _, a := range actions {
		switch a {
		case chunkfmt.ActionDisable:
			sawDisable = true
		case chunkfmt.ActionEnable:
			sawEnable = true
		case chunkfmt.ActionToggle:
			toggles++
		}
	}
	switch {
	case sawDisable:
		return chunkfmt.ActionDisable, true
	case sawEnable:
		return chunkfmt.ActionEnable, true
	case toggles%2 == 1:
		return chunkfmt.ActionToggle, true
	default:
		return 0, false
	}
}

// FreezeLastStable restores curr to the last local fixpoint snapshot,
// stable, in place.
func FreezeLastStable(curr, stable []uint32) {
	copy(curr, stable)
}

// WindowProposal is one action proposed against an internal bit at some
// point during the detected cycle window.
type WindowProposal struct {
	Bit    uint32
	Action chunkfmt.Action
}

// ClampCommutative resolves, for every internal bit with at least one
// proposal recorded during the cycle window, the commutative precedence
// over the actions seen for that bit (Toggle proposals count by the parity
// of their number), and applies the result to curr.
func ClampCommutative(curr []uint32, proposals []WindowProposal) {
	byBit := make(map[uint32][]chunkfmt.Action)
	for _, p := range proposals {
		byBit[p.Bit] = append(byBit[p.Bit], p.Action)
	}
	for bit, actions := range byBit {
		action, ok := ResolvePrecedence(actions)
		if !ok {
			continue
		}
		applyAction(curr, bit, action)
	}
}

func applyAction(words []uint32, bit uint32, action chunkfmt.Action) {
	switch action {
	case chunkfmt.ActionEnable:
		layout.SetBit(words, bit)
	case chunkfmt.ActionDisable:
		layout.ClearBit(words, bit)
	case chunkfmt.ActionToggle:
		layout.ToggleBit(words, bit)
	}
}

// ParityQuench complements every internal word once if the detected period
// is odd, and leaves curr unchanged if even.
func ParityQuench(curr []uint32, period uint32) {
	if period%2 != 1 {
		return
	}
	for i := range curr {
		curr[i] = ^curr[i]
	}
}
