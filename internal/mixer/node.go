package mixer

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/olivier-w/spectra/internal/spectrum"
)

// Bus is a summing node with a fader and a DSP chain.
type Bus struct {
	g      *Graph
	path   string
	volume float64
	vcas   []*VCA
	stages []DSP // head first
	voices []Voice

	buf     []float32
	scratch []float32
}

func (b *Bus) Path() string { return b.path }

func (b *Bus) Volume() (float64, error) {
	b.g.mu.Lock()
	defer b.g.mu.Unlock()
	return b.volume, nil
}

// SetVolume clamps v to [0,1].
func (b *Bus) SetVolume(v float64) error {
	b.g.mu.Lock()
	defer b.g.mu.Unlock()
	b.volume = mgl64.Clamp(v, 0, 1)
	return nil
}

// AddStage inserts a at the head of the chain, after the fader.
func (b *Bus) AddStage(a spectrum.Analyzer) error {
	dsp, ok := a.(DSP)
	if !ok {
		return ErrNotDSP
	}
	b.g.mu.Lock()
	defer b.g.mu.Unlock()
	b.stages = slices.Insert(b.stages, 0, dsp)
	b.g.log.WithField("node", b.path).Debug("analysis stage added")
	return nil
}

func (b *Bus) RemoveStage(a spectrum.Analyzer) error {
	dsp, ok := a.(DSP)
	if !ok {
		return ErrNotDSP
	}
	b.g.mu.Lock()
	defer b.g.mu.Unlock()
	i := slices.Index(b.stages, dsp)
	if i < 0 {
		return fmt.Errorf("%s: %w", b.path, ErrStageNotAttached)
	}
	b.stages = slices.Delete(b.stages, i, i+1)
	b.g.log.WithField("node", b.path).Debug("analysis stage removed")
	return nil
}

// Playing returns the number of live voices.
func (b *Bus) Playing() int {
	b.g.mu.Lock()
	defer b.g.mu.Unlock()
	return len(b.voices)
}

// gain is the fader times every controlling VCA. Caller holds the lock.
func (b *Bus) gain() float64 {
	g := b.volume
	for _, v := range b.vcas {
		g *= v.volume
	}
	return g
}

// gather sums the voices into the bus buffer and drops finished ones.
func (b *Bus) gather(n int) []float32 {
	if cap(b.buf) < n {
		b.buf = make([]float32, n)
		b.scratch = make([]float32, n)
	}
	buf := b.buf[:n]
	clear(buf)

	live := b.voices[:0]
	for _, v := range b.voices {
		tmp := b.scratch[:n]
		frames, done := v.Stream(tmp)
		for i := range min(frames*Channels, n) {
			buf[i] += tmp[i]
		}
		if !done {
			live = append(live, v)
		}
	}
	clear(b.voices[len(live):])
	b.voices = live
	return buf
}

// post applies the fader and runs the chain.
func (b *Bus) post(buf []float32) {
	g := float32(b.gain())
	if g != 1 {
		for i := range buf {
			buf[i] *= g
		}
	}
	for _, dsp := range b.stages {
		dsp.Process(buf, Channels)
	}
}

func (b *Bus) drop(v Voice) {
	if i := slices.Index(b.voices, v); i >= 0 {
		b.voices = slices.Delete(b.voices, i, i+1)
	}
}

// VCA scales every bus it controls. It carries no signal of its own.
type VCA struct {
	g      *Graph
	path   string
	volume float64
}

func (v *VCA) Path() string { return v.path }

func (v *VCA) Volume() (float64, error) {
	v.g.mu.Lock()
	defer v.g.mu.Unlock()
	return v.volume, nil
}

// SetVolume clamps level to [0,1].
func (v *VCA) SetVolume(level float64) error {
	v.g.mu.Lock()
	defer v.g.mu.Unlock()
	v.volume = mgl64.Clamp(level, 0, 1)
	return nil
}

func (v *VCA) AddStage(spectrum.Analyzer) error {
	return fmt.Errorf("%s: %w", v.path, ErrNoSignal)
}

func (v *VCA) RemoveStage(spectrum.Analyzer) error {
	return fmt.Errorf("%s: %w", v.path, ErrNoSignal)
}
