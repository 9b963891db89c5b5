package orchestration

import (
	"strings"
	"sync"
)

// chunkBuffer hands chunks from one producer to one consumer in order. The
// producer never blocks; the consumer waits for new chunks until the
// producer completes or the buffer is cleared.
type chunkBuffer[T any] struct {
	mu             sync.Mutex
	chunks         []T
	chunksConsumed int
	complete       bool
	err            error
	cleared        bool
	updateSignal   chan struct{}
}

func newChunkBuffer[T any]() *chunkBuffer[T] {
	return &chunkBuffer[T]{
		updateSignal: make(chan struct{}, 1),
	}
}

func newTextBuffer() *chunkBuffer[string] { return newChunkBuffer[string]() }

func newAudioBuffer() *chunkBuffer[[]byte] { return newChunkBuffer[[]byte]() }

func (b *chunkBuffer[T]) Add(chunk T) {
	b.mu.Lock()
	if b.complete || b.cleared {
		b.mu.Unlock()
		return
	}
	b.chunks = append(b.chunks, chunk)
	b.mu.Unlock()
	b.signalUpdate()
}

// Complete marks the end of the stream. A non-nil err is reported by Err
// once the consumer has drained the buffer.
func (b *chunkBuffer[T]) Complete(err error) {
	b.mu.Lock()
	if b.complete {
		b.mu.Unlock()
		return
	}
	b.complete = true
	b.err = err
	b.mu.Unlock()
	b.signalUpdate()
}

// Clear stops the consumer without delivering the remaining chunks.
func (b *chunkBuffer[T]) Clear() {
	b.mu.Lock()
	b.cleared = true
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *chunkBuffer[T]) Chunks(yield func(T) bool) {
	for {
		b.mu.Lock()
		if b.cleared {
			b.mu.Unlock()
			return
		}

		if b.chunksConsumed < len(b.chunks) {
			chunk := b.chunks[b.chunksConsumed]
			b.chunksConsumed++
			b.mu.Unlock()
			if !yield(chunk) {
				return
			}
			continue
		}

		if b.complete {
			b.mu.Unlock()
			return
		}

		b.mu.Unlock()
		<-b.updateSignal
	}
}

func (b *chunkBuffer[T]) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *chunkBuffer[T]) All() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]T(nil), b.chunks...)
}

func (b *chunkBuffer[T]) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}

func joinText(buffer *chunkBuffer[string]) string {
	return strings.Join(buffer.All(), "")
}
