package spoofing

import (
	"sync"

	"geosnap-service/internal/model"
)

// DefaultHistorySize is how many prior fixes the analyzer window keeps.
const DefaultHistorySize = 10

// History is a bounded ring buffer of location samples, oldest first. It is
// owned by a single client session; appends happen only from the sample
// acquisition flow, so the mutex is just for safe read snapshots.
type History struct {
	mu      sync.Mutex
	samples []model.LocationSample
	limit   int
}

// NewHistory creates a history window. A non-positive limit falls back to
// DefaultHistorySize.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{
		samples: make([]model.LocationSample, 0, limit),
		limit:   limit,
	}
}

// Append records a sample, evicting the oldest when the window is full.
func (h *History) Append(sample model.LocationSample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) == h.limit {
		copy(h.samples, h.samples[1:])
		h.samples[len(h.samples)-1] = sample
		return
	}
	h.samples = append(h.samples, sample)
}

// Samples returns a copy of the window, oldest first.
func (h *History) Samples() []model.LocationSample {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]model.LocationSample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Len reports how many samples the window currently holds.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}
