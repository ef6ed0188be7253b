package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarksRoundTrip(t *testing.T) {
	cases := []NodeMarks{
		{Marked: false, Phase: 13},
		{Marked: true, Phase: 13},
		{Marked: true, Phase: 0},
		{Marked: false, Phase: (1 << 56) - 1},
	}
	for _, c := range cases {
		got := unpackMarks(c.pack())
		assert.Equal(t, c, got, "round trip %+v", c)
	}
}

// S1: NodeMarks{marked:true, phase:13} <-> 0x0D01
func TestMarksConcreteEncoding(t *testing.T) {
	m := NodeMarks{Marked: true, Phase: 0x0D}
	assert.Equal(t, uint64(0x0D01), m.pack())
	assert.Equal(t, m, unpackMarks(0x0D01))
}
