package analysis

// ring keeps the most recent samples of one channel. Callers hold the
// stage lock.
type ring struct {
	buf []float64
	w   int // write position
	n   int // fill level
}

func newRing(size int) *ring {
	return &ring{buf: make([]float64, size)}
}

func (r *ring) write(v float64) {
	r.buf[r.w] = v
	r.w = (r.w + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

// latest copies the newest len(dst) samples into dst, oldest first,
// zero-filling the front when fewer have been written.
func (r *ring) latest(dst []float64) {
	size := len(r.buf)
	have := min(r.n, len(dst))
	pad := len(dst) - have
	for i := range pad {
		dst[i] = 0
	}
	start := (r.w - have + size) % size
	for i := range have {
		dst[pad+i] = r.buf[(start+i)%size]
	}
}

func (r *ring) reset() {
	r.w = 0
	r.n = 0
}
