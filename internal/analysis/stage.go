package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sync"

	"github.com/google/uuid"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/olivier-w/spectra/internal/spectrum"
)

// DefaultWindowSize matches the FFT DSP default of 2048 samples.
const DefaultWindowSize = 2048

// ErrReleased is returned by every call on a released stage.
var ErrReleased = errors.New("analysis stage released")

// Stage is an FFT analysis unit. The audio goroutine feeds it through
// Process; the renderer reads snapshots through Spectrum.
type Stage struct {
	id uuid.UUID

	mu       sync.Mutex
	size     int
	window   spectrum.Window
	rings    []*ring
	released bool
}

// NewStage returns a stage with a rectangular window of DefaultWindowSize.
func NewStage() *Stage {
	return &Stage{
		id:     uuid.New(),
		size:   DefaultWindowSize,
		window: spectrum.WindowRect,
	}
}

// ID identifies the stage in logs.
func (s *Stage) ID() string { return s.id.String() }

// Process records interleaved samples from the mixer.
func (s *Stage) Process(samples []float32, channels int) {
	if channels <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	if len(s.rings) != channels {
		s.rings = make([]*ring, channels)
		for ch := range s.rings {
			s.rings[ch] = newRing(s.size)
		}
	}
	for i, v := range samples {
		s.rings[i%channels].write(float64(v))
	}
}

// Spectrum returns size/2 magnitude bins per channel. A stage that has
// not seen audio yet returns a frame with zero channels.
func (s *Stage) Spectrum() (spectrum.Frame, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return spectrum.Frame{}, ErrReleased
	}
	size, win := s.size, s.window
	snaps := make([][]float64, len(s.rings))
	for ch, r := range s.rings {
		snaps[ch] = make([]float64, size)
		r.latest(snaps[ch])
	}
	s.mu.Unlock()

	if len(snaps) == 0 {
		return spectrum.Frame{}, nil
	}

	weights := windowFunc(win)(size)
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return spectrum.Frame{}, fmt.Errorf("degenerate %s window of size %d", win, size)
	}

	frame := spectrum.Frame{Channels: len(snaps), Bins: make([][]float64, len(snaps))}
	for ch, x := range snaps {
		for i := range x {
			x[i] *= weights[i]
		}
		out := fft.FFTReal(x)
		bins := make([]float64, size/2)
		for k := range bins {
			bins[k] = cmplx.Abs(out[k]) * 2 / sum
		}
		frame.Bins[ch] = bins
	}
	return frame, nil
}

// WindowSize returns the FFT length in samples.
func (s *Stage) WindowSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// SetWindowSize changes the FFT length and drops recorded history.
func (s *Stage) SetWindowSize(n int) error {
	if n < 2 {
		return fmt.Errorf("window size must be at least 2, got %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	s.size = n
	for ch := range s.rings {
		s.rings[ch] = newRing(n)
	}
	return nil
}

// SetWindow selects the window function applied before the transform.
func (s *Stage) SetWindow(w spectrum.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	switch w {
	case spectrum.WindowRect, spectrum.WindowHamming, spectrum.WindowHann:
		s.window = w
		return nil
	}
	return fmt.Errorf("unsupported window %d", w)
}

// Reset forgets recorded samples.
func (s *Stage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rings {
		r.reset()
	}
}

// Release frees the recorded history. Later calls fail with ErrReleased.
func (s *Stage) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	s.released = true
	s.rings = nil
	return nil
}

func windowFunc(w spectrum.Window) func(int) []float64 {
	switch w {
	case spectrum.WindowHamming:
		return window.Hamming
	case spectrum.WindowHann:
		return window.Hann
	default:
		return window.Rectangular
	}
}
