package spectrum

import "errors"

var (
	// ErrNodeNotFound is returned by a Mixer when no node exists at a path.
	ErrNodeNotFound = errors.New("mixer node not found")
	// ErrNodeResolution means neither the requested node nor the master could be used.
	ErrNodeResolution = errors.New("no mixer node to attach analysis stage")
	// ErrStageCreation means the mixer could not create an analysis stage.
	ErrStageCreation = errors.New("analysis stage creation failed")
	// ErrMalformedFrame is reported for frames with no channels or no bins.
	ErrMalformedFrame = errors.New("malformed spectrum frame")
)

// Window selects the analysis window function.
type Window uint8

const (
	WindowRect Window = iota
	WindowHamming
	WindowHann
)

func (w Window) String() string {
	switch w {
	case WindowHamming:
		return "hamming"
	case WindowHann:
		return "hann"
	default:
		return "rect"
	}
}

// Frame is one snapshot of per-channel linear bin magnitudes.
type Frame struct {
	Channels int
	Bins     [][]float64
}

// Validate reports ErrMalformedFrame when the frame has nothing to draw
// from its first channel.
func (f Frame) Validate() error {
	if f.Channels <= 0 || len(f.Bins) == 0 || len(f.Bins[0]) == 0 {
		return ErrMalformedFrame
	}
	return nil
}

// Analyzer is a frequency-domain analysis stage living in the mixer graph.
type Analyzer interface {
	Spectrum() (Frame, error)
	WindowSize() int
	SetWindowSize(n int) error
	SetWindow(w Window) error
	Release() error
}

// Node is a borrowed handle to a bus, VCA or channel group.
type Node interface {
	Path() string
	Volume() (float64, error)
	SetVolume(v float64) error
	AddStage(a Analyzer) error
	RemoveStage(a Analyzer) error
}

// Fader is optionally implemented by nodes that expose a fader level
// separate from their volume.
type Fader interface {
	FaderLevel() (float64, error)
}

// Mixer resolves nodes by path and creates analysis stages.
type Mixer interface {
	Node(path string) (Node, error)
	Master() (Node, error)
	NewAnalyzer() (Analyzer, error)
}

// Sink receives the rebuilt geometry once per tick.
type Sink interface {
	SetPoints(pts []Vec3)
}
