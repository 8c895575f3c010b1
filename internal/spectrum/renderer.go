package spectrum

import (
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
)

// Status describes what the last Tick drew.
type Status uint8

const (
	StatusDisabled Status = iota
	StatusDrawn
	StatusSilent
	StatusMalformed
	StatusFault
)

func (s Status) String() string {
	switch s {
	case StatusDrawn:
		return "drawn"
	case StatusSilent:
		return "silent"
	case StatusMalformed:
		return "malformed"
	case StatusFault:
		return "fault"
	default:
		return "disabled"
	}
}

// Flat reports whether the status left a flat line in the sink.
func (s Status) Flat() bool {
	return s == StatusSilent || s == StatusMalformed || s == StatusFault
}

const (
	// volumes at or below this draw a flat line
	silentVolume = 0.001
	dbRange      = -minDB
)

// Config is supplied once when the renderer is built.
type Config struct {
	AnalysisPath string
	// VolumePath defaults to AnalysisPath.
	VolumePath string
	WindowSize int
	Width      float64
	Height     float64
}

// Renderer turns the spectrum of one mixer node into a line of
// world-space points, rebuilt every tick.
type Renderer struct {
	cfg    Config
	mixer  Mixer
	sink   Sink
	anchor Anchor
	log    logrus.FieldLogger

	stage      Analyzer
	stageNode  Node
	volumeNode Node

	pose      Pose
	bufs      [2][]Vec3
	front     int
	published bool
}

// New validates cfg and allocates the geometry buffers. A nil anchor
// means the identity pose; a nil logger discards output.
func New(cfg Config, m Mixer, sink Sink, anchor Anchor, log logrus.FieldLogger) (*Renderer, error) {
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", cfg.WindowSize)
	}
	if m == nil {
		return nil, fmt.Errorf("renderer needs a mixer")
	}
	if sink == nil {
		return nil, fmt.Errorf("renderer needs a sink")
	}
	if cfg.VolumePath == "" {
		cfg.VolumePath = cfg.AnalysisPath
	}
	if anchor == nil {
		anchor = Fixed(IdentityPose())
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	r := &Renderer{
		cfg:    cfg,
		mixer:  m,
		sink:   sink,
		anchor: anchor,
		log:    log.WithField("component", "spectrum"),
		pose:   IdentityPose(),
	}
	r.bufs[0] = make([]Vec3, cfg.WindowSize)
	r.bufs[1] = make([]Vec3, cfg.WindowSize)
	return r, nil
}

// Attach creates the analysis stage and inserts it into the mixer graph.
// A missing analysis node falls back to the master node. On error the
// renderer stays disabled and Tick does nothing.
func (r *Renderer) Attach() error {
	if r.stage != nil {
		return nil
	}

	if node, err := r.mixer.Node(r.cfg.VolumePath); err != nil {
		r.log.WithError(err).WithField("path", r.cfg.VolumePath).Warn("volume node unavailable, assuming full volume")
	} else {
		r.volumeNode = node
	}

	stage, err := r.mixer.NewAnalyzer()
	if err != nil {
		r.log.WithError(err).Error("failed to create FFT analysis stage, visualizer disabled")
		return fmt.Errorf("%w: %v", ErrStageCreation, err)
	}
	if err := stage.SetWindow(WindowHamming); err != nil {
		r.log.WithError(err).Warn("could not set analysis window")
	}
	if err := stage.SetWindowSize(r.cfg.WindowSize * 2); err != nil {
		r.log.WithError(err).Warn("could not set analysis window size")
	}

	log := r.log.WithField("path", r.cfg.AnalysisPath)
	node, err := r.mixer.Node(r.cfg.AnalysisPath)
	if err == nil {
		err = node.AddStage(stage)
	}
	if err != nil {
		log.WithError(err).Warn("could not attach analysis stage, adding to master as fallback")
		node, err = r.mixer.Master()
		if err == nil {
			err = node.AddStage(stage)
		}
		if err != nil {
			log.WithError(err).Error("failed to attach analysis stage to master")
			if rerr := stage.Release(); rerr != nil {
				log.WithError(rerr).Warn("releasing analysis stage")
			}
			return fmt.Errorf("%w: %v", ErrNodeResolution, err)
		}
	}

	r.stage = stage
	r.stageNode = node
	log.WithField("node", node.Path()).Info("FFT analysis stage attached")
	return nil
}

// Attached reports whether a stage is in place.
func (r *Renderer) Attached() bool { return r.stage != nil }

// Node returns the node the stage was attached to, or nil.
func (r *Renderer) Node() Node { return r.stageNode }

// Tick rebuilds the geometry from the current spectrum and hands it to
// the sink. It never panics; faults degrade to a flat line.
func (r *Renderer) Tick() (status Status) {
	if r.stage == nil {
		return StatusDisabled
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("panic", rec).Error("error processing FFT data")
			r.safeFlat()
			status = StatusFault
		}
	}()

	r.pose = r.anchor.Pose()

	volume, fader := r.channelState()
	if volume <= silentVolume {
		r.flat()
		return StatusSilent
	}

	frame, err := r.stage.Spectrum()
	if err == nil {
		err = frame.Validate()
	}
	if err != nil {
		r.log.WithError(err).Debug("no usable spectrum")
		r.flat()
		return StatusMalformed
	}

	gain := volume
	if fader > silentVolume {
		gain = fader
	}

	bins := frame.Bins[0]
	last := len(bins) - 1
	buf := r.back()
	for i := range buf {
		m := bins[min(i, last)] * gain
		h := math.Max((dbRange+Lin2dB(m))*r.cfg.Height, 0) * r.pose.Scale[1]
		buf[i] = r.pose.Apply(mgl64.Vec3{r.x(i), h, 0})
	}
	r.publish(buf)
	return StatusDrawn
}

func (r *Renderer) channelState() (volume, fader float64) {
	volume = 1
	if r.volumeNode == nil {
		return volume, 0
	}
	if v, err := r.volumeNode.Volume(); err == nil {
		volume = v
	}
	if f, ok := r.volumeNode.(Fader); ok {
		if l, err := f.FaderLevel(); err == nil {
			fader = l
		}
	}
	return volume, fader
}

func (r *Renderer) x(i int) float64 {
	n := float64(r.cfg.WindowSize)
	return -r.cfg.Width*0.5 + float64(i)*(r.cfg.Width/n)
}

func (r *Renderer) flat() {
	buf := r.back()
	for i := range buf {
		buf[i] = r.pose.Apply(mgl64.Vec3{r.x(i), 0, 0})
	}
	r.publish(buf)
}

// safeFlat draws the flat line from inside a recover; a second fault is
// logged and dropped.
func (r *Renderer) safeFlat() {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("panic", rec).Error("flat line failed")
		}
	}()
	r.flat()
}

func (r *Renderer) back() []Vec3 {
	return r.bufs[1-r.front]
}

func (r *Renderer) publish(buf []Vec3) {
	r.sink.SetPoints(buf)
	r.front = 1 - r.front
	r.published = true
}

// Points returns a copy of the geometry last handed to the sink.
func (r *Renderer) Points() []Vec3 {
	if !r.published {
		return nil
	}
	out := make([]Vec3, len(r.bufs[r.front]))
	copy(out, r.bufs[r.front])
	return out
}

// Bounds returns the world-space box the plot can occupy at the current
// pose, from the flat line up to full-scale bins.
func (r *Renderer) Bounds() (lo, hi Vec3) {
	pose := r.anchor.Pose()
	top := dbRange * r.cfg.Height * pose.Scale[1]
	xs := []float64{r.x(0), r.x(r.cfg.WindowSize - 1)}
	ys := []float64{0, top}
	first := true
	for _, x := range xs {
		for _, y := range ys {
			p := pose.Apply(mgl64.Vec3{x, y, 0})
			if first {
				lo, hi = p, p
				first = false
				continue
			}
			for i := range 3 {
				lo[i] = math.Min(lo[i], p[i])
				hi[i] = math.Max(hi[i], p[i])
			}
		}
	}
	return lo, hi
}

// Detach removes the stage from its node and releases it. Safe to call
// repeatedly or without a prior Attach.
func (r *Renderer) Detach() {
	if r.stage == nil {
		return
	}
	if r.stageNode != nil {
		if err := r.stageNode.RemoveStage(r.stage); err != nil {
			r.log.WithError(err).Warn("removing analysis stage")
		}
	}
	if err := r.stage.Release(); err != nil {
		r.log.WithError(err).Warn("releasing analysis stage")
	}
	r.stage = nil
	r.stageNode = nil
}

// SetChannelVolume clamps v to [0,1] and writes it to the volume node.
func (r *Renderer) SetChannelVolume(v float64) {
	if r.volumeNode == nil {
		return
	}
	if err := r.volumeNode.SetVolume(mgl64.Clamp(v, 0, 1)); err != nil {
		r.log.WithError(err).Warn("setting channel volume")
	}
}

// ChannelVolume returns the volume node's level, or 0 without one.
func (r *Renderer) ChannelVolume() float64 {
	if r.volumeNode == nil {
		return 0
	}
	v, err := r.volumeNode.Volume()
	if err != nil {
		return 0
	}
	return v
}
