package fragment

import "time"

type group struct {
	total     uint16
	received  uint16
	parts     [][]byte
	createdAt time.Time
}

// Reassembler collects fragments across possibly-interleaved groups and
// hands back the original payload once a group is complete.
type Reassembler struct {
	groups map[uint32]*group
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{groups: make(map[uint32]*group)}
}

// Add records one fragment's payload (the bytes after its Header). It
// returns (reassembled, true, nil) once every fragment in hdr.GroupID has
// arrived; otherwise (nil, false, nil). A duplicate fragment for an
// already-filled slot is ignored.
func (r *Reassembler) Add(hdr Header, data []byte, now time.Time) ([]byte, bool, error) {
	g, ok := r.groups[hdr.GroupID]
	if !ok {
		g = &group{total: hdr.Total, parts: make([][]byte, hdr.Total), createdAt: now}
		r.groups[hdr.GroupID] = g
	}
	if int(hdr.Index) >= len(g.parts) {
		return nil, false, nil
	}
	if g.parts[hdr.Index] != nil {
		return nil, false, nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	g.parts[hdr.Index] = buf
	g.received++

	if g.received < g.total {
		return nil, false, nil
	}

	total := 0
	for _, p := range g.parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range g.parts {
		out = append(out, p...)
	}
	delete(r.groups, hdr.GroupID)
	return out, true, nil
}

// ExpireOlderThan removes any incomplete groups whose first fragment
// arrived more than Timeout ago, returning how many were dropped.
func (r *Reassembler) ExpireOlderThan(now time.Time) int {
	dropped := 0
	for id, g := range r.groups {
		if now.Sub(g.createdAt) > Timeout {
			delete(r.groups, id)
			dropped++
		}
	}
	return dropped
}
