package store

import "sync"

// Stream is a cancellable sequence of full updates. Updates is closed when
// the stream ends; Err then reports why, or nil after Close.
type Stream[T any] interface {
	Updates() <-chan T
	Err() error
	Close()
}

// Feed is a Stream with a single producer. It buffers only the latest value:
// a consumer that falls behind skips stale updates instead of blocking the
// producer.
type Feed[T any] struct {
	updates   chan T
	mu        sync.Mutex
	err       error
	finished  bool
	closeOnce sync.Once
	onClose   func()
}

// NewFeed creates a feed. onClose runs once when the consumer calls Close; the
// producer is expected to Finish the feed in response.
func NewFeed[T any](onClose func()) *Feed[T] {
	return &Feed[T]{
		updates: make(chan T, 1),
		onClose: onClose,
	}
}

func (f *Feed[T]) Updates() <-chan T {
	return f.updates
}

func (f *Feed[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Feed[T]) Close() {
	f.closeOnce.Do(func() {
		if f.onClose != nil {
			f.onClose()
		}
	})
}

// Send replaces any undelivered value with v. It reports false once the feed
// is finished. Only the producer may call Send.
func (f *Feed[T]) Send(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished {
		return false
	}

	select {
	case f.updates <- v:
	default:
		select {
		case <-f.updates:
		default:
		}
		f.updates <- v
	}
	return true
}

// Finish ends the feed with err, which may be nil. Later calls are no-ops.
func (f *Feed[T]) Finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished {
		return
	}
	f.finished = true
	f.err = err
	close(f.updates)
}

func (f *Feed[T]) Finished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}
