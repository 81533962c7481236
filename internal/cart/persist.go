package cart

import (
	"context"
	"sync"
	"time"
)

const saveTimeout = 5 * time.Second

// writer persists snapshots on a single goroutine. Only the newest queued
// snapshot is kept, and a version is never written after a newer one.
type writer struct {
	save func(context.Context, []LineItem)

	mu       sync.Mutex
	next     []LineItem
	nextVer  uint64
	hasNext  bool
	written  uint64
	progress chan struct{}
	closed   bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newWriter(save func(context.Context, []LineItem)) *writer {
	return &writer{
		save:     save,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *writer) enqueue(ver uint64, items []LineItem) {
	w.mu.Lock()
	if w.closed || ver <= w.nextVer {
		w.mu.Unlock()
		return
	}
	w.next, w.nextVer, w.hasNext = items, ver, true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *writer) drain() {
	for {
		w.mu.Lock()
		if !w.hasNext {
			w.mu.Unlock()
			return
		}
		items, ver := w.next, w.nextVer
		w.next, w.hasNext = nil, false
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		w.save(ctx, items)
		cancel()

		w.mu.Lock()
		w.written = ver
		close(w.progress)
		w.progress = make(chan struct{})
		w.mu.Unlock()
	}
}

// wait blocks until version ver has been attempted.
func (w *writer) wait(ctx context.Context, ver uint64) error {
	for {
		w.mu.Lock()
		if w.written >= ver || (w.closed && !w.hasNext) {
			w.mu.Unlock()
			return nil
		}
		ch := w.progress
		w.mu.Unlock()

		select {
		case <-ch:
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.done
}
