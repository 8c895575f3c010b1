package player

import (
	"encoding/binary"
	"io"
	"sync"
	"time"
)

const readChunk = 4096

// Voice streams a decoder into the mixer as stereo float samples at the
// graph rate, resampling linearly and upmixing mono.
type Voice struct {
	mu sync.Mutex

	src      audioDecoder
	channels int
	step     float64 // source frames per output frame
	loop     bool
	paused   bool

	raw    []byte
	frames []int16 // decoded source samples not yet consumed
	phase  float64
	cur    [2]float32
	next   [2]float32
	primed bool
	tail   int   // silent frames fed after the source ended
	played int64 // source frames consumed
}

func newVoice(src audioDecoder, outRate int, loop bool) *Voice {
	return &Voice{
		src:      src,
		channels: src.ChannelCount(),
		step:     float64(src.SampleRate()) / float64(outRate),
		loop:     loop,
		raw:      make([]byte, readChunk),
	}
}

// Stream implements mixer.Voice. A paused voice writes nothing but stays
// alive.
func (v *Voice) Stream(dst []float32) (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return 0, false
	}
	if !v.primed {
		v.cur = v.pull()
		v.next = v.pull()
		v.primed = true
	}

	out := len(dst) / 2
	for i := range out {
		for v.phase >= 1 {
			v.phase--
			v.cur = v.next
			v.next = v.pull()
			if v.tail >= 2 {
				return i, true
			}
		}
		t := float32(v.phase)
		dst[i*2] = v.cur[0] + (v.next[0]-v.cur[0])*t
		dst[i*2+1] = v.cur[1] + (v.next[1]-v.cur[1])*t
		v.phase += v.step
	}
	return out, false
}

// pull returns the next source frame as stereo, or silence past the end.
func (v *Voice) pull() [2]float32 {
	for len(v.frames) < v.channels {
		if !v.fill() {
			v.tail++
			return [2]float32{}
		}
	}
	l := float32(v.frames[0]) / 32768
	r := l
	if v.channels > 1 {
		r = float32(v.frames[1]) / 32768
	}
	v.frames = v.frames[v.channels:]
	v.played++
	return [2]float32{l, r}
}

// fill decodes another chunk, rewinding when looping.
func (v *Voice) fill() bool {
	for attempt := 0; attempt < 2; attempt++ {
		n, err := v.src.Read(v.raw)
		n -= n % 2
		if n > 0 {
			for i := 0; i < n; i += 2 {
				v.frames = append(v.frames, int16(binary.LittleEndian.Uint16(v.raw[i:])))
			}
			return true
		}
		if err == nil {
			continue
		}
		if !v.loop {
			return false
		}
		if _, err := v.src.Seek(0, io.SeekStart); err != nil {
			return false
		}
		v.played = 0
	}
	return false
}

// SetPaused holds or releases the voice.
func (v *Voice) SetPaused(paused bool) {
	v.mu.Lock()
	v.paused = paused
	v.mu.Unlock()
}

// Paused reports whether the voice is held.
func (v *Voice) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// Position returns how far into the source the voice has played.
func (v *Voice) Position() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return framesToDuration(v.played, v.src.SampleRate())
}

// Restart rewinds the source.
func (v *Voice) Restart() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := v.src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	v.frames = v.frames[:0]
	v.phase = 0
	v.primed = false
	v.tail = 0
	v.played = 0
	return nil
}

func framesToDuration(frames int64, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(rate) * float64(time.Second))
}
