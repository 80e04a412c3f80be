package similarity

import (
	"sync"

	"github.com/xkilldash9x/bidrunner/api/schemas"
)

// PageMatchResult is the outcome of comparing two consecutive pages.
type PageMatchResult struct {
	FirstLineScore   float64
	OverallScore     float64
	FirstLineMatch   bool
	OverallMatch     bool
	IsLikelySamePage bool
}

// PageMatch compares the first non-blank lines and the whole texts of two pages.
func PageMatch(prev, curr string, firstLineThreshold, overallThreshold float64) PageMatchResult {
	res := PageMatchResult{
		FirstLineScore: Similarity(FirstLine(prev), FirstLine(curr)),
		OverallScore:   CompositeScore(prev, curr),
	}
	res.FirstLineMatch = res.FirstLineScore >= firstLineThreshold
	res.OverallMatch = res.OverallScore >= overallThreshold
	res.IsLikelySamePage = res.FirstLineMatch && res.OverallMatch
	return res
}

// NewSignature builds the signature of a page's text.
func NewSignature(text string) schemas.PageSignature {
	return schemas.PageSignature{
		FirstLine:   FirstLine(text),
		Fingerprint: Fingerprint(text),
		Text:        text,
	}
}

// PageTracker remembers the last observed page and counts how many observations in a
// row looked identical to their predecessor. Safe for concurrent use.
type PageTracker struct {
	mu                 sync.Mutex
	firstLineThreshold float64
	overallThreshold   float64
	prev               *schemas.PageSignature
	repeats            int
}

// NewPageTracker creates a tracker. Non-positive thresholds select the defaults.
func NewPageTracker(firstLineThreshold, overallThreshold float64) *PageTracker {
	if firstLineThreshold <= 0 {
		firstLineThreshold = DefaultFirstLineThreshold
	}
	if overallThreshold <= 0 {
		overallThreshold = DefaultOverallThreshold
	}
	return &PageTracker{firstLineThreshold: firstLineThreshold, overallThreshold: overallThreshold}
}

// Observe records sig and reports whether it matches the previous observation.
// The first observation never matches. Equal fingerprints short-circuit the comparison.
func (t *PageTracker) Observe(sig schemas.PageSignature) (PageMatchResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.prev
	t.prev = &sig
	if prev == nil {
		t.repeats = 0
		return PageMatchResult{}, false
	}

	var res PageMatchResult
	if prev.Fingerprint == sig.Fingerprint {
		res = PageMatchResult{FirstLineScore: 1, OverallScore: 1, FirstLineMatch: true, OverallMatch: true, IsLikelySamePage: true}
	} else {
		res = PageMatch(prev.Text, sig.Text, t.firstLineThreshold, t.overallThreshold)
	}

	if res.IsLikelySamePage {
		t.repeats++
	} else {
		t.repeats = 0
	}
	return res, res.IsLikelySamePage
}

// Repeats is the number of consecutive observations that matched their predecessor.
func (t *PageTracker) Repeats() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repeats
}

// Reset forgets the previous page.
func (t *PageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prev = nil
	t.repeats = 0
}
