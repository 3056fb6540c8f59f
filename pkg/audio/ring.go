package audio

import "sync/atomic"

// Ring is a fixed-capacity single-producer/single-consumer ring of
// float32 samples. Push and pop never block and never allocate, so
// either end can live on a hardware audio callback. Clear may be
// called from a third goroutine; it races safely with a concurrent
// popper via compare-and-swap on the read cursor.
//
// head and tail are monotonic counters; slot = counter % capacity.
// The producer only advances tail, the consumer only advances head,
// so occupancy (tail-head) can never exceed capacity.
type Ring struct {
	buf  []float32
	head atomic.Uint64 // next slot to pop
	tail atomic.Uint64 // next slot to push
}

// NewRing creates a ring holding up to capacity samples. Capacity is
// sized generously above the steady-state rate because producers
// burst: a whole synthesized utterance can arrive faster than it
// plays.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]float32, capacity)}
}

// TryPush appends one sample. Returns false when the ring is full;
// the caller drops and moves on, it must never wait.
func (r *Ring) TryPush(s float32) bool {
	t := r.tail.Load()
	if t-r.head.Load() >= uint64(len(r.buf)) {
		return false
	}
	r.buf[t%uint64(len(r.buf))] = s
	r.tail.Store(t + 1)
	return true
}

// TryPop removes the oldest sample. ok is false when the ring is
// empty; playback treats that as digital silence.
func (r *Ring) TryPop() (s float32, ok bool) {
	for {
		h := r.head.Load()
		if h == r.tail.Load() {
			return 0, false
		}
		s = r.buf[h%uint64(len(r.buf))]
		// A concurrent Clear may have advanced head; retry on a lost race
		// so a discarded sample is never returned.
		if r.head.CompareAndSwap(h, h+1) {
			return s, true
		}
	}
}

// Clear discards every buffered-but-unconsumed sample. Safe against a
// concurrent TryPop; used for immediate playback interruption.
func (r *Ring) Clear() {
	for {
		h := r.head.Load()
		t := r.tail.Load()
		if h == t || r.head.CompareAndSwap(h, t) {
			return
		}
	}
}

// Len returns the number of buffered samples.
func (r *Ring) Len() int {
	t := r.tail.Load()
	h := r.head.Load()
	if t < h {
		return 0
	}
	return int(t - h)
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}
