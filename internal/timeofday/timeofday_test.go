package timeofday

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"08:30": 510,
		"13:05": 785,
		"23:59": 1439,
		"9:15":  555,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{
		"", "0900", "ab:cd", "10:", ":30", "10:75",
		"+9:00", "-1:00", "09:+5", "24:00", "24:30", "25:00", "123:00", "9:5", "09: 5",
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrMalformed, in)
		assert.Equal(t, -1, Minutes(in), in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "00:00", Format(0))
	assert.Equal(t, "08:05", Format(485))
	assert.Equal(t, "23:59", Format(1439))
}

func TestFormatRoundTrip(t *testing.T) {
	for m := 0; m < MinutesPerDay; m += 7 {
		assert.Equal(t, m, Minutes(Format(m)))
	}
}

func TestOverlap(t *testing.T) {
	t.Run("shared minute overlaps", func(t *testing.T) {
		assert.True(t, Overlap(540, 600, 570, 630))
		assert.True(t, Overlap(570, 630, 540, 600))
	})

	t.Run("containment overlaps", func(t *testing.T) {
		assert.True(t, Overlap(540, 720, 600, 630))
		assert.True(t, Overlap(600, 630, 540, 720))
	})

	t.Run("back to back does not overlap", func(t *testing.T) {
		assert.False(t, Overlap(540, 600, 600, 660))
		assert.False(t, Overlap(600, 660, 540, 600))
	})

	t.Run("disjoint does not overlap", func(t *testing.T) {
		assert.False(t, Overlap(540, 600, 660, 720))
	})

	t.Run("matches point sharing for all small intervals", func(t *testing.T) {
		for s1 := 0; s1 < 6; s1++ {
			for e1 := s1 + 1; e1 <= 6; e1++ {
				for s2 := 0; s2 < 6; s2++ {
					for e2 := s2 + 1; e2 <= 6; e2++ {
						shared := false
						for p := 0; p < 6; p++ {
							if p >= s1 && p < e1 && p >= s2 && p < e2 {
								shared = true
							}
						}
						assert.Equal(t, shared, Overlap(s1, e1, s2, e2), "[%d,%d) [%d,%d)", s1, e1, s2, e2)
					}
				}
			}
		}
	})
}
