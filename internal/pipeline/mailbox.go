// Package pipeline implements the frame path between the device driver
// and the virtual sink: single-slot overwrite mailboxes for lossy
// producer→consumer handoff, depth sample conversion, and the forwarding
// loop that drains mailboxes into the sink.
package pipeline

import (
	"sync"
	"sync/atomic"
)

// Sample constrains mailbox payloads to the two frame element types:
// video bytes and 11-bit depth samples in uint16 containers.
type Sample interface {
	~uint8 | ~uint16
}

// Mailbox is a single-slot overwrite buffer with a dirty flag.
//
// Semantics ("drop frames, never queue"):
//   - Store overwrites: a new producer write replaces unread data,
//     latest wins, and the overwrite is counted as a drop.
//   - Drain consumes: copies out the latest frame and clears the dirty
//     flag atomically with the copy, so no frame is ever both "cleared"
//     and "not yet copied".
//   - At most one unread frame is retained.
//
// The dirty flag is set as the final step of Store's critical section,
// guaranteeing it is only observed true once the data is fully written.
//
// Thread-safety: Store and Drain are safe for concurrent use from any
// goroutine; the critical sections are held only for copy operations.
type Mailbox[T Sample] struct {
	mu    sync.Mutex
	buf   []T
	dirty bool
	drops atomic.Uint64
}

// Store copies src into the mailbox under the lock, resizing the
// retained buffer when the producer's frame size changes (mode switch).
// Pure copy, no transformation: the producer holds the lock for as
// short a time as possible.
func (m *Mailbox[T]) Store(src []T) {
	m.mu.Lock()
	if m.dirty {
		m.drops.Add(1)
	}
	if len(m.buf) != len(src) {
		m.buf = make([]T, len(src))
	}
	copy(m.buf, src)
	m.dirty = true
	m.mu.Unlock()
}

// Drain copies the latest frame into dst (grown as needed) and clears
// the dirty flag, returning the filled slice and true. When no unread
// frame is present it returns dst unchanged and false.
func (m *Mailbox[T]) Drain(dst []T) ([]T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty {
		return dst, false
	}
	if cap(dst) < len(m.buf) {
		dst = make([]T, len(m.buf))
	}
	dst = dst[:len(m.buf)]
	copy(dst, m.buf)
	m.dirty = false
	return dst, true
}

// Len returns the length of the retained buffer. Once non-empty it
// always equals the producer's most recent frame size.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buf)
}

// Drops returns the lifetime count of overwritten unread frames.
func (m *Mailbox[T]) Drops() uint64 {
	return m.drops.Load()
}

// Frames holds the two process-lifetime mailboxes and implements the
// frame handler capability the device session pushes into. Mailboxes
// are never destroyed mid-run, only overwritten; they are resized
// lazily on the first write matching the negotiated format.
type Frames struct {
	video Mailbox[uint8]
	depth Mailbox[uint16]
}

// NewFrames creates the mailbox pair.
func NewFrames() *Frames {
	return &Frames{}
}

// OnVideoFrame copies one video frame (IR or RGB bytes) into the video
// mailbox. Called from driver context.
func (f *Frames) OnVideoFrame(data []byte) {
	f.video.Store(data)
}

// OnDepthFrame copies one depth frame into the depth mailbox. Called
// from driver context.
func (f *Frames) OnDepthFrame(samples []uint16) {
	f.depth.Store(samples)
}

// VideoDrops returns the video mailbox overwrite count.
func (f *Frames) VideoDrops() uint64 { return f.video.Drops() }

// DepthDrops returns the depth mailbox overwrite count.
func (f *Frames) DepthDrops() uint64 { return f.depth.Drops() }
