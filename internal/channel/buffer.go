package channel

import (
	"sync"

	"github.com/assetforge/assetforge/internal/protocol"
)

// RequestBuffer holds mutations that could not be delivered because the
// peer is disconnected. Messages drain in enqueue order exactly once per
// successful connection; a drain empties the buffer so no message can be
// re-delivered across a reconnect.
type RequestBuffer struct {
	queue []protocol.Mutation
	mutex sync.Mutex
}

// NewRequestBuffer creates an empty buffer.
func NewRequestBuffer() *RequestBuffer {
	return &RequestBuffer{}
}

// Enqueue appends a mutation to the buffer.
func (b *RequestBuffer) Enqueue(m protocol.Mutation) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.queue = append(b.queue, m)
}

// Drain returns all buffered mutations in enqueue order and empties the
// buffer atomically.
func (b *RequestBuffer) Drain() []protocol.Mutation {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	drained := b.queue
	b.queue = nil
	return drained
}

// Len returns the number of buffered mutations.
func (b *RequestBuffer) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.queue)
}
