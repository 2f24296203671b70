package protocol

// ring holds received bytes until the decoder has seen a whole frame. It
// tracks the byte count, so all of buf is usable.
type ring struct {
	buf  []byte
	head int // index of the oldest byte
	n    int
	flat []byte // reused when peek has to unwrap
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]byte, capacity)}
}

// write stores as much of p as fits and returns how much that was
func (r *ring) write(p []byte) int {
	free := len(r.buf) - r.n
	if len(p) > free {
		p = p[:free]
	}
	tail := (r.head + r.n) % len(r.buf)
	k := copy(r.buf[tail:], p)
	copy(r.buf, p[k:])
	r.n += len(p)
	return len(p)
}

// peek returns the buffered bytes in order without consuming them. The
// slice is valid until the next write or discard.
func (r *ring) peek() []byte {
	if r.head+r.n <= len(r.buf) {
		return r.buf[r.head : r.head+r.n]
	}
	r.flat = append(r.flat[:0], r.buf[r.head:]...)
	return append(r.flat, r.buf[:r.head+r.n-len(r.buf)]...)
}

// discard drops up to k bytes from the front
func (r *ring) discard(k int) {
	k = min(k, r.n)
	r.head = (r.head + k) % len(r.buf)
	r.n -= k
}

func (r *ring) len() int { return r.n }

func (r *ring) reset() {
	r.head, r.n = 0, 0
}
