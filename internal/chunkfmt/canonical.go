package chunkfmt

import "sort"

// Canonicalize returns a copy of c whose connections are grouped by
// (from_section, from_index), each group internally sorted by order_tag,
// with order_tag then rewritten to be strictly increasing within the group
// starting from the group's smallest existing tag (ties broken by
// incrementing).
func Canonicalize(c *Chunk) *Chunk {
	type indexed struct {
		conn Connection
		orig int
	}
	items := make([]indexed, len(c.Connections))
	for i, conn := range c.Connections {
		items[i] = indexed{conn: conn, orig: i}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].conn, items[j].conn
		if a.FromSection != b.FromSection {
			return a.FromSection < b.FromSection
		}
		if a.FromIndex != b.FromIndex {
			return a.FromIndex < b.FromIndex
		}
		return a.OrderTag < b.OrderTag
	})

	out := make([]Connection, len(items))
	start := 0
	for start < len(items) {
		end := start + 1
		for end < len(items) &&
			items[end].conn.FromSection == items[start].conn.FromSection &&
			items[end].conn.FromIndex == items[start].conn.FromIndex {
			end++
		}
		prev := int64(-1)
		for i := start; i < end; i++ {
			tag := int64(items[i].conn.OrderTag)
			var newTag int64
			if prev < 0 {
				newTag = tag
			} else if tag <= prev {
				newTag = prev + 1
			} else {
				newTag = tag
			}
			conn := items[i].conn
			conn.OrderTag = uint32(newTag)
			out[i] = conn
			prev = newTag
		}
		start = end
	}

	cp := *c
	cp.Connections = out
	return &cp
}
