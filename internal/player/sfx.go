package player

import (
	"fmt"
	"math"
	"os"

	"github.com/olivier-w/spectra/internal/mixer"
)

// maxSFXLength caps how much of a file is loaded as a one-shot.
const maxSFXLength = 10 // seconds

// SFX is a short sound decoded up front and fired on demand.
type SFX struct {
	graph   *mixer.Graph
	bus     string
	samples []float32 // interleaved stereo at the graph rate
}

// LoadSFX decodes path fully into memory.
func LoadSFX(path string, g *mixer.Graph, bus string) (*SFX, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := newDecoder(f)
	if err != nil {
		return nil, err
	}
	if dec.SampleRate() <= 0 || dec.ChannelCount() < 1 {
		return nil, fmt.Errorf("unsupported stream: %d Hz, %d channels", dec.SampleRate(), dec.ChannelCount())
	}

	v := newVoice(dec, g.SampleRate(), false)
	limit := g.SampleRate() * maxSFXLength * 2
	chunk := make([]float32, 2048)
	var out []float32
	for len(out) < limit {
		n, done := v.Stream(chunk)
		out = append(out, chunk[:n*2]...)
		if done {
			break
		}
	}
	return &SFX{graph: g, bus: bus, samples: out}, nil
}

// Chime synthesizes a short two-tone bell for hosts without a sound file.
func Chime(g *mixer.Graph, bus string) *SFX {
	rate := float64(g.SampleRate())
	tones := []float64{880, 1318.5}
	frames := g.SampleRate() * 35 / 100
	out := make([]float32, frames*2)
	for i := range frames {
		t := float64(i) / rate
		var s float64
		for k, f := range tones {
			// second partial enters 120ms later
			start := float64(k) * 0.12
			if t < start {
				continue
			}
			s += 0.3 * math.Sin(2*math.Pi*f*(t-start)) * math.Exp(-(t-start)*9)
		}
		out[i*2] = float32(s)
		out[i*2+1] = float32(s)
	}
	return &SFX{graph: g, bus: bus, samples: out}
}

// Len returns the one-shot length in frames.
func (s *SFX) Len() int { return len(s.samples) / 2 }

// Play fires an independent one-shot.
func (s *SFX) Play() error {
	return s.graph.Play(s.bus, &clip{samples: s.samples})
}

// clip plays shared samples once.
type clip struct {
	samples []float32
	pos     int
}

func (c *clip) Stream(dst []float32) (int, bool) {
	n := copy(dst[:len(dst)-len(dst)%2], c.samples[c.pos:])
	c.pos += n
	return n / 2, c.pos >= len(c.samples)
}
