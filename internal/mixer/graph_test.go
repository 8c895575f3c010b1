package mixer

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/olivier-w/spectra/internal/analysis"
	"github.com/olivier-w/spectra/internal/spectrum"
)

// constVoice plays a fixed sample value for a number of frames.
type constVoice struct {
	value  float32
	frames int
}

func (v *constVoice) Stream(dst []float32) (int, bool) {
	n := min(len(dst)/Channels, v.frames)
	for i := range n * Channels {
		dst[i] = v.value
	}
	v.frames -= n
	return n, v.frames == 0
}

type captureDSP struct {
	samples []float32
}

func (c *captureDSP) Process(samples []float32, channels int) {
	c.samples = append(c.samples[:0], samples...)
}

// captureStage is an analyzer that also records what it sees.
type captureStage struct {
	captureDSP
}

func (*captureStage) Spectrum() (spectrum.Frame, error) { return spectrum.Frame{}, nil }
func (*captureStage) WindowSize() int                   { return 0 }
func (*captureStage) SetWindowSize(int) error           { return nil }
func (*captureStage) SetWindow(spectrum.Window) error   { return nil }
func (*captureStage) Release() error                    { return nil }

func sampleAt(p []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(p[i*2:]))
}

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := New(48000, nil)
	for _, name := range []string{"Music", "Sfx"} {
		if _, err := g.AddBus(name); err != nil {
			t.Fatalf("AddBus(%q) error = %v", name, err)
		}
	}
	if _, err := g.AddVCA("General", "bus:/Music", "bus:/Sfx"); err != nil {
		t.Fatalf("AddVCA() error = %v", err)
	}
	if _, err := g.AddVCA("Music", "bus:/Music"); err != nil {
		t.Fatalf("AddVCA() error = %v", err)
	}
	return g
}

func TestReadMixesBusesThroughVCAs(t *testing.T) {
	g := newTestGraph(t)
	if err := g.Play("bus:/Music", &constVoice{value: 0.5, frames: 100}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := g.Play("bus:/Sfx", &constVoice{value: 0.25, frames: 100}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	music, _ := g.Node("vca:/Music")
	if err := music.SetVolume(0.5); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}

	p := make([]byte, 8*bytesPerFrame)
	n, err := g.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	// 0.5*0.5 + 0.25
	want := int16(math.Round(0.5 * 32767))
	if got := sampleAt(p, 0); got != want {
		t.Fatalf("sample = %d, want %d", got, want)
	}
}

func TestReadClampsAndRemovesFinishedVoices(t *testing.T) {
	g := newTestGraph(t)
	_ = g.Play("bus:/Music", &constVoice{value: 1, frames: 2})
	_ = g.Play("bus:/Sfx", &constVoice{value: 1, frames: 2})

	p := make([]byte, 4*bytesPerFrame)
	if _, err := g.Read(p); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := sampleAt(p, 0); got != 32767 {
		t.Fatalf("clamped sample = %d, want 32767", got)
	}
	if got := sampleAt(p, 4); got != 0 {
		t.Fatalf("sample after voice end = %d, want 0", got)
	}
	b, _ := g.Bus("bus:/Music")
	if b.Playing() != 0 {
		t.Fatalf("Playing() = %d, want 0", b.Playing())
	}
}

func TestStagesSeePostFaderSignal(t *testing.T) {
	g := newTestGraph(t)
	bus, _ := g.Node("bus:/Music")
	stage := &captureStage{}
	if err := bus.AddStage(stage); err != nil {
		t.Fatalf("AddStage() error = %v", err)
	}
	_ = bus.SetVolume(0.5)
	_ = g.Play("bus:/Music", &constVoice{value: 0.8, frames: 10})

	if _, err := g.Read(make([]byte, 4*bytesPerFrame)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(stage.samples) != 8 {
		t.Fatalf("stage saw %d samples, want 8", len(stage.samples))
	}
	if got := stage.samples[0]; math.Abs(float64(got)-0.4) > 1e-6 {
		t.Fatalf("stage sample = %v, want 0.4", got)
	}

	if err := bus.RemoveStage(stage); err != nil {
		t.Fatalf("RemoveStage() error = %v", err)
	}
	if err := bus.RemoveStage(stage); !errors.Is(err, ErrStageNotAttached) {
		t.Fatalf("second RemoveStage() error = %v, want ErrStageNotAttached", err)
	}
}

func TestMasterStageHearsAllBuses(t *testing.T) {
	g := newTestGraph(t)
	master, _ := g.Master()
	a, err := g.NewAnalyzer()
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	if err := a.SetWindowSize(8); err != nil {
		t.Fatalf("SetWindowSize() error = %v", err)
	}
	if err := master.AddStage(a); err != nil {
		t.Fatalf("AddStage() error = %v", err)
	}
	_ = g.Play("bus:/Sfx", &constVoice{value: 0.5, frames: 64})
	if _, err := g.Read(make([]byte, 8*bytesPerFrame)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	frame, err := a.(*analysis.Stage).Spectrum()
	if err != nil {
		t.Fatalf("Spectrum() error = %v", err)
	}
	if frame.Channels != 2 {
		t.Fatalf("channels = %d, want 2", frame.Channels)
	}
	if got := frame.Bins[0][0]; math.Abs(got-1) > 1e-6 {
		t.Fatalf("dc = %v, want 1", got)
	}
}

func TestNodeResolution(t *testing.T) {
	g := newTestGraph(t)
	if _, err := g.Node("bus:/Ambience"); !errors.Is(err, spectrum.ErrNodeNotFound) {
		t.Fatalf("Node() error = %v, want ErrNodeNotFound", err)
	}
	vca, err := g.Node("vca:/General")
	if err != nil {
		t.Fatalf("Node() error = %v", err)
	}
	if err := vca.AddStage(analysis.NewStage()); !errors.Is(err, ErrNoSignal) {
		t.Fatalf("VCA AddStage() error = %v, want ErrNoSignal", err)
	}
	if _, err := g.AddBus("Music"); err == nil {
		t.Fatal("expected duplicate bus error")
	}
	if _, err := g.AddVCA("Broken", "bus:/Nope"); !errors.Is(err, spectrum.ErrNodeNotFound) {
		t.Fatalf("AddVCA() error = %v, want ErrNodeNotFound", err)
	}
	if _, err := g.Bus("vca:/General"); err == nil {
		t.Fatal("expected error resolving a vca as a bus")
	}
}

func TestVolumesClamp(t *testing.T) {
	g := newTestGraph(t)
	for _, path := range []string{"bus:/Music", "vca:/General"} {
		n, _ := g.Node(path)
		_ = n.SetVolume(3)
		if v, _ := n.Volume(); v != 1 {
			t.Fatalf("%s volume = %v, want 1", path, v)
		}
		_ = n.SetVolume(-1)
		if v, _ := n.Volume(); v != 0 {
			t.Fatalf("%s volume = %v, want 0", path, v)
		}
	}
}

func TestStopRemovesVoice(t *testing.T) {
	g := newTestGraph(t)
	v := &constVoice{value: 0.5, frames: 1000}
	_ = g.Play("bus:/Music", v)
	g.Stop(v)
	p := make([]byte, 2*bytesPerFrame)
	_, _ = g.Read(p)
	if got := sampleAt(p, 0); got != 0 {
		t.Fatalf("sample = %d, want 0 after Stop", got)
	}
}
