package page

import "github.com/Lol3rrr/free-access/internal/phaseflag"

// NodeMarks is the decoded form of a PageNode's marker word: whether the
// node has been visited in the current phase, and which phase last touched
// it.
type NodeMarks struct {
	Marked bool
	Phase  uint64
}

func (m NodeMarks) pack() uint64 {
	return phaseflag.Pack(m.Phase, m.Marked)
}

func unpackMarks(raw uint64) NodeMarks {
	phase, marked := phaseflag.Unpack(raw)
	return NodeMarks{Marked: marked, Phase: phase}
}
