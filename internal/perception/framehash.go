// File: internal/perception/framehash.go
package perception

import (
	"fmt"
	"image"
	"sync"

	"github.com/corona10/goimagehash"
)

// FrameHasher remembers the perceptual hash of the last frame it accepted and reports
// whether a new frame is visually the same. It lets the caller skip OCR when a scroll
// did not move the list at all.
type FrameHasher struct {
	mu          sync.Mutex
	maxDistance int
	last        *goimagehash.ImageHash
}

// NewFrameHasher creates a hasher that treats frames within maxDistance bits as unchanged.
func NewFrameHasher(maxDistance int) *FrameHasher {
	return &FrameHasher{maxDistance: max(0, maxDistance)}
}

// Unchanged hashes img and compares it with the previous frame. The first frame is
// never unchanged. A changed frame becomes the new reference.
func (f *FrameHasher) Unchanged(img image.Image) (bool, int, error) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false, -1, fmt.Errorf("failed to hash frame: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last == nil {
		f.last = hash
		return false, -1, nil
	}
	dist, err := f.last.Distance(hash)
	if err != nil {
		f.last = hash
		return false, -1, fmt.Errorf("failed to compare frame hashes: %w", err)
	}
	if dist <= f.maxDistance {
		return true, dist, nil
	}
	f.last = hash
	return false, dist, nil
}

// Reset drops the reference frame.
func (f *FrameHasher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = nil
}
