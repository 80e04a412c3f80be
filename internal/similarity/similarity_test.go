package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samples = []string{
	"",
	"x",
	"kitten",
	"sitting",
	"Bid 1,250 gold",
	"bid 1,205 gold",
	"Épée du roi",
	"epee du roi",
	"  multiple   spaces here ",
}

func TestEditDistanceKnownValues(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"héllo", "hello", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EditDistance(tt.a, tt.b), "EditDistance(%q, %q)", tt.a, tt.b)
	}
}

func TestEditDistanceMetricProperties(t *testing.T) {
	for _, a := range samples {
		for _, b := range samples {
			dab := EditDistance(a, b)
			require.Equal(t, dab, EditDistance(b, a), "symmetry for %q / %q", a, b)
			for _, c := range samples {
				assert.LessOrEqual(t, EditDistance(a, c), dab+EditDistance(b, c),
					"triangle inequality for %q, %q, %q", a, b, c)
			}
		}
	}
}

func TestSimilarity(t *testing.T) {
	for _, a := range samples {
		assert.Equal(t, 1.0, Similarity(a, a), "similarity(%q, itself)", a)
	}
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("", "x"))
	assert.Equal(t, 0.0, Similarity("x", ""))
	assert.InDelta(t, 1-3.0/7.0, Similarity("kitten", "sitting"), 1e-9)
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard("", "   "))
	assert.Equal(t, 0.0, Jaccard("", "word"))
	assert.Equal(t, 1.0, Jaccard("Gold BID", "bid gold"), "tokens are case-insensitive sets")
	assert.InDelta(t, 1.0/3.0, Jaccard("a b", "b c"), 1e-9)

	for _, a := range samples[1:] {
		for _, b := range samples[1:] {
			j := Jaccard(a, b)
			assert.True(t, j >= 0 && j <= 1, "jaccard(%q, %q) = %v", a, b, j)
		}
	}
}

func TestCompositeScore(t *testing.T) {
	assert.Equal(t, 1.0, CompositeScore("row one", "row one"))
	a, b := "kitten on a mat", "sitting on a mat"
	want := 0.7*Similarity(a, b) + 0.3*Jaccard(a, b)
	assert.InDelta(t, want, CompositeScore(a, b), 1e-12)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "0::", Fingerprint(""))
	assert.Equal(t, "5:hello:hello", Fingerprint("  HELLO "))

	long := "The quick brown fox jumps over the lazy dog"
	assert.Equal(t, "43:the quick brown fox :ps over the lazy dog", Fingerprint(long))

	assert.Equal(t, Fingerprint("Row  A\n\tRow B"), Fingerprint("row a row b"))
	assert.NotEqual(t, Fingerprint("row a"), Fingerprint("row b"))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Top bid", FirstLine("\n  \n  Top bid \nsecond"))
	assert.Equal(t, "", FirstLine(" \n\t\n"))
}

func TestPageMatch(t *testing.T) {
	page := "Iron Ore 1,250\nCopper 830\nSilver 4,100\nGold 9,900"

	t.Run("identical pages signal list end", func(t *testing.T) {
		res := PageMatch(page, page, DefaultFirstLineThreshold, DefaultOverallThreshold)
		assert.True(t, res.FirstLineMatch)
		assert.True(t, res.OverallMatch)
		assert.True(t, res.IsLikelySamePage)
		assert.Equal(t, 1.0, res.OverallScore)
	})

	t.Run("same first line, different rows", func(t *testing.T) {
		other := "Iron Ore 1,250\nTin 120\nLead 75\nZinc 310"
		res := PageMatch(page, other, DefaultFirstLineThreshold, DefaultOverallThreshold)
		assert.True(t, res.FirstLineMatch)
		assert.False(t, res.OverallMatch)
		assert.False(t, res.IsLikelySamePage)
	})

	t.Run("scrolled page", func(t *testing.T) {
		next := "Platinum 22,000\nDiamond 75,000"
		res := PageMatch(page, next, DefaultFirstLineThreshold, DefaultOverallThreshold)
		assert.False(t, res.FirstLineMatch)
		assert.False(t, res.IsLikelySamePage)
	})

	t.Run("custom thresholds", func(t *testing.T) {
		other := "Iron Ore 1,250\nCopper 830\nSilver 4,100\nGold 9,990"
		res := PageMatch(page, other, 0.95, 0.999)
		assert.True(t, res.FirstLineMatch)
		assert.False(t, res.OverallMatch)
		assert.False(t, math.IsNaN(res.OverallScore))
	})
}

func TestPageTracker(t *testing.T) {
	tracker := NewPageTracker(0, 0)

	_, same := tracker.Observe(NewSignature("Iron Ore 1,250\nCopper 830"))
	assert.False(t, same, "the first page never matches")

	_, same = tracker.Observe(NewSignature("Silver 4,100\nGold 9,900"))
	assert.False(t, same)
	assert.Equal(t, 0, tracker.Repeats())

	res, same := tracker.Observe(NewSignature("silver 4,100   gold 9,900"))
	assert.True(t, same, "fingerprints match after normalization")
	assert.True(t, res.IsLikelySamePage)
	assert.Equal(t, 1, tracker.Repeats())

	_, same = tracker.Observe(NewSignature("Silver 4,100\nGold 9,900"))
	assert.True(t, same)
	assert.Equal(t, 2, tracker.Repeats())

	tracker.Reset()
	assert.Equal(t, 0, tracker.Repeats())
	_, same = tracker.Observe(NewSignature("Silver 4,100\nGold 9,900"))
	assert.False(t, same)
}
