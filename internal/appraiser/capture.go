package appraiser

import (
	"sync"

	"exportappraiser/internal/models"
)

// ResponseBuffer accumulates network responses observed during one vehicle
// lookup. The browser event goroutine appends while the extractor reads, so
// access is mutex-guarded. The buffer must be cleared before each vehicle,
// otherwise leftover responses from an earlier lookup corrupt extraction.
type ResponseBuffer struct {
	mu        sync.Mutex
	responses []models.CapturedResponse
}

// NewResponseBuffer returns an empty buffer.
func NewResponseBuffer() *ResponseBuffer {
	return &ResponseBuffer{}
}

// Add appends one captured response.
func (b *ResponseBuffer) Add(r models.CapturedResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses = append(b.responses, r)
}

// Clear drops all captured responses ahead of the next vehicle lookup.
func (b *ResponseBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses = nil
}

// Snapshot returns a copy of the captured responses in arrival order.
func (b *ResponseBuffer) Snapshot() []models.CapturedResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.CapturedResponse, len(b.responses))
	copy(out, b.responses)
	return out
}

// Len reports how many responses are currently buffered.
func (b *ResponseBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.responses)
}
