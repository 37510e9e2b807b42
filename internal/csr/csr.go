// Package csr builds the three-class (On/Off/Toggle) grouped adjacency the
// wavefront scheduler reads from: for each source bit and trigger class, a
// contiguous, deterministically sorted slice of effects to apply.
package csr

import (
	"sort"

	"mycoscheduler.dev/sim/internal/chunkfmt"
	"mycoscheduler.dev/sim/internal/layout"
	"mycoscheduler.dev/sim/internal/linkfmt"
)

// Effect is one action to apply to a target bit when its source fires.
type Effect struct {
	ToWord       uint32
	Mask         uint32
	Action       chunkfmt.Action
	OrderTag     uint32
	ToIsInternal bool
	ToBit        uint32
}

// CSR is the compressed grouped adjacency: OffsOn/OffsOff/OffsTog each have
// length srcTotal+1, and Effects is partitioned into three contiguous
// regions (On, Off, Toggle) in that order.
type CSR struct {
	OffsOn  []uint32
	OffsOff []uint32
	OffsTog []uint32
	Effects []Effect
}

// SrcTotal returns the number of source slots the CSR was built over.
func (c *CSR) SrcTotal() int {
	return len(c.OffsOn) - 1
}

// Slice returns the effects to apply for source src under trigger t.
func (c *CSR) Slice(src uint32, t chunkfmt.Trigger) []Effect {
	var offs []uint32
	switch t {
	case chunkfmt.TriggerOn:
		offs = c.OffsOn
	case chunkfmt.TriggerOff:
		offs = c.OffsOff
	case chunkfmt.TriggerToggle:
		offs = c.OffsTog
	}
	return c.Effects[offs[src]:offs[src+1]]
}

// record is one source+trigger+effect tuple fed into the shared bucket
// builder, regardless of whether it originated from a single chunk's
// connections or a population's links.
type record struct {
	src     uint32
	trigger chunkfmt.Trigger
	effect  Effect
}

// build is the common two-pass (count, then scatter) CSR construction:
// first pass computes bucket boundaries by counting, second pass scatters
// each record into its bucket, then each bucket is sorted by
// (to_word, order_tag) for deterministic commit order.
func build(srcTotal int, records []record) *CSR {
	offsOn := make([]uint32, srcTotal+1)
	offsOff := make([]uint32, srcTotal+1)
	offsTog := make([]uint32, srcTotal+1)

	for _, r := range records {
		switch r.trigger {
		case chunkfmt.TriggerOn:
			offsOn[r.src+1]++
		case chunkfmt.TriggerOff:
			offsOff[r.src+1]++
		case chunkfmt.TriggerToggle:
			offsTog[r.src+1]++
		}
	}
	for i := 0; i < srcTotal; i++ {
		offsOn[i+1] += offsOn[i]
		offsOff[i+1] += offsOff[i]
		offsTog[i+1] += offsTog[i]
	}

	baseOff := offsOn[srcTotal]
	baseTog := baseOff + offsOff[srcTotal]
	for i := range offsOff {
		offsOff[i] += baseOff
	}
	for i := range offsTog {
		offsTog[i] += baseTog
	}

	effects := make([]Effect, len(records))
	nextOn := append([]uint32(nil), offsOn[:srcTotal]...)
	nextOff := append([]uint32(nil), offsOff[:srcTotal]...)
	nextTog := append([]uint32(nil), offsTog[:srcTotal]...)

	for _, r := range records {
		switch r.trigger {
		case chunkfmt.TriggerOn:
			effects[nextOn[r.src]] = r.effect
			nextOn[r.src]++
		case chunkfmt.TriggerOff:
			effects[nextOff[r.src]] = r.effect
			nextOff[r.src]++
		case chunkfmt.TriggerToggle:
			effects[nextTog[r.src]] = r.effect
			nextTog[r.src]++
		}
	}

	sortBucket := func(offs []uint32) {
		for i := 0; i < srcTotal; i++ {
			start, end := offs[i], offs[i+1]
			bucket := effects[start:end]
			sort.SliceStable(bucket, func(a, b int) bool {
				if bucket[a].ToWord != bucket[b].ToWord {
					return bucket[a].ToWord < bucket[b].ToWord
				}
				return bucket[a].OrderTag < bucket[b].OrderTag
			})
		}
	}
	sortBucket(offsOn)
	sortBucket(offsOff)
	sortBucket(offsTog)

	return &CSR{OffsOn: offsOn, OffsOff: offsOff, OffsTog: offsTog, Effects: effects}
}

// BuildFromChunk builds the intra-chunk CSR: sources are Inputs
// (ids 0..NI) followed by Internals (ids NI..NI+NN); Outputs are never
// sources.
func BuildFromChunk(c *chunkfmt.Chunk) *CSR {
	srcTotal := int(c.NI + c.NN)
	records := make([]record, 0, len(c.Connections))
	for _, conn := range c.Connections {
		var src uint32
		switch conn.FromSection {
		case chunkfmt.SectionInput:
			src = conn.FromIndex
		case chunkfmt.SectionInternal:
			src = c.NI + conn.FromIndex
		default:
			continue
		}
		word, mask := layout.BitToWord(conn.ToIndex)
		records = append(records, record{
			src:     src,
			trigger: conn.Trigger,
			effect: Effect{
				ToWord:       word,
				Mask:         mask,
				Action:       conn.Action,
				OrderTag:     conn.OrderTag,
				ToIsInternal: conn.ToSection == chunkfmt.SectionInternal,
				ToBit:        conn.ToIndex,
			},
		})
	}
	return build(srcTotal, records)
}

// BuildFromLinks builds the inter-chunk (population) CSR: source id
// is offsets[link.FromChunk].Output + FromOutIdx; target id is
// offsets[link.ToChunk].Input + ToInIdx, both addressed in the population's
// flattened bit space.
func BuildFromLinks(links []linkfmt.Link, offsets []linkfmt.ChunkOffsets, outputTotal uint32) *CSR {
	records := make([]record, 0, len(links))
	for _, l := range links {
		src := offsets[l.FromChunk].Output + l.FromOutIdx
		toBit := offsets[l.ToChunk].Input + l.ToInIdx
		word, mask := layout.BitToWord(toBit)
		records = append(records, record{
			src:     src,
			trigger: l.Trigger,
			effect: Effect{
				ToWord:       word,
				Mask:         mask,
				Action:       l.Action,
				OrderTag:     l.OrderTag,
				ToIsInternal: false,
				ToBit:        toBit,
			},
		})
	}
	return build(int(outputTotal), records)
}
