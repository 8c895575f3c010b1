package mixer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/olivier-w/spectra/internal/analysis"
	"github.com/olivier-w/spectra/internal/spectrum"
	"github.com/sirupsen/logrus"
)

const (
	// MasterPath addresses the master bus.
	MasterPath = "bus:/"
	busPrefix  = "bus:/"
	vcaPrefix  = "vca:/"

	// Channels is the graph's fixed output layout.
	Channels      = 2
	bytesPerFrame = Channels * 2
)

var (
	// ErrNoSignal is returned when attaching a stage to a node that carries
	// no audio, such as a VCA.
	ErrNoSignal = errors.New("node carries no signal")
	// ErrNotDSP is returned for analyzers that cannot process samples.
	ErrNotDSP = errors.New("analyzer cannot process audio")
	// ErrStageNotAttached is returned when removing an unknown stage.
	ErrStageNotAttached = errors.New("stage not attached")
)

// DSP processes interleaved samples in place.
type DSP interface {
	Process(samples []float32, channels int)
}

// Voice produces interleaved stereo samples at the graph rate.
type Voice interface {
	// Stream fills dst and reports frames written and whether the voice
	// is exhausted.
	Stream(dst []float32) (frames int, done bool)
}

// Graph is a small bus/VCA mixer. It renders s16le stereo for playback
// through Read and resolves nodes for the spectrum renderer.
type Graph struct {
	mu     sync.Mutex
	rate   int
	master *Bus
	buses  []*Bus // excludes master, in creation order
	byPath map[string]spectrum.Node
	log    logrus.FieldLogger

	mix []float32
}

// New returns a graph with only the master bus.
func New(sampleRate int, log logrus.FieldLogger) *Graph {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	g := &Graph{
		rate:   sampleRate,
		byPath: make(map[string]spectrum.Node),
		log:    log.WithField("component", "mixer"),
	}
	g.master = &Bus{g: g, path: MasterPath, volume: 1}
	g.byPath[MasterPath] = g.master
	return g
}

// SampleRate returns the rate voices must produce.
func (g *Graph) SampleRate() int { return g.rate }

// AddBus creates bus:/<name> routed into master.
func (g *Graph) AddBus(name string) (*Bus, error) {
	path := busPrefix + strings.Trim(name, "/")
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byPath[path]; ok {
		return nil, fmt.Errorf("bus %s already exists", path)
	}
	b := &Bus{g: g, path: path, volume: 1}
	g.buses = append(g.buses, b)
	g.byPath[path] = b
	return b, nil
}

// AddVCA creates vca:/<name> controlling the given bus paths.
func (g *Graph) AddVCA(name string, buses ...string) (*VCA, error) {
	path := vcaPrefix + strings.Trim(name, "/")
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byPath[path]; ok {
		return nil, fmt.Errorf("vca %s already exists", path)
	}
	targets := make([]*Bus, 0, len(buses))
	for _, bp := range buses {
		b, ok := g.byPath[bp].(*Bus)
		if !ok {
			return nil, fmt.Errorf("vca %s: %w: %s", path, spectrum.ErrNodeNotFound, bp)
		}
		targets = append(targets, b)
	}
	v := &VCA{g: g, path: path, volume: 1}
	for _, b := range targets {
		b.vcas = append(b.vcas, v)
	}
	g.byPath[path] = v
	return v, nil
}

// Node resolves a bus or VCA path.
func (g *Graph) Node(path string) (spectrum.Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.byPath[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", spectrum.ErrNodeNotFound, path)
	}
	return n, nil
}

// Master returns the master bus.
func (g *Graph) Master() (spectrum.Node, error) {
	return g.master, nil
}

// NewAnalyzer creates an unattached FFT analysis stage.
func (g *Graph) NewAnalyzer() (spectrum.Analyzer, error) {
	s := analysis.NewStage()
	g.log.WithField("stage", s.ID()).Debug("created FFT stage")
	return s, nil
}

// Bus looks up a bus by path.
func (g *Graph) Bus(path string) (*Bus, error) {
	n, err := g.Node(path)
	if err != nil {
		return nil, err
	}
	b, ok := n.(*Bus)
	if !ok {
		return nil, fmt.Errorf("%s is not a bus", path)
	}
	return b, nil
}

// Play starts v on the bus at path.
func (g *Graph) Play(path string, v Voice) error {
	b, err := g.Bus(path)
	if err != nil {
		return err
	}
	g.mu.Lock()
	b.voices = append(b.voices, v)
	g.mu.Unlock()
	return nil
}

// Stop removes v from whichever bus plays it.
func (g *Graph) Stop(v Voice) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.master.drop(v)
	for _, b := range g.buses {
		b.drop(v)
	}
}

// Read renders interleaved s16le stereo. It never blocks on voices and
// fills silence when nothing plays.
func (g *Graph) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	n := frames * Channels
	if cap(g.mix) < n {
		g.mix = make([]float32, n)
	}
	mix := g.mix[:n]
	clear(mix)

	for _, b := range g.buses {
		out := b.gather(n)
		b.post(out)
		for i, v := range out {
			mix[i] += v
		}
	}

	// master voices join the submix before the master fader
	direct := g.master.gather(n)
	for i := range mix {
		mix[i] += direct[i]
	}
	g.master.post(mix)

	for i, v := range mix {
		s := math.Round(float64(v) * 32767)
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(p[i*2:], uint16(int16(s)))
	}
	return frames * bytesPerFrame, nil
}
