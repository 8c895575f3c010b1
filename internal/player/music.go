package player

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/olivier-w/spectra/internal/mixer"
)

// Music is a looping background track routed to one bus.
type Music struct {
	file     *os.File
	voice    *Voice
	graph    *mixer.Graph
	bus      string
	duration time.Duration
	meta     Metadata

	mu     sync.Mutex
	closed bool
}

// OpenMusic decodes path and starts it looping on bus.
func OpenMusic(path string, g *mixer.Graph, bus string) (*Music, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := newDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if dec.SampleRate() <= 0 || dec.ChannelCount() < 1 {
		f.Close()
		return nil, fmt.Errorf("unsupported stream: %d Hz, %d channels", dec.SampleRate(), dec.ChannelCount())
	}

	m := &Music{
		file:     f,
		voice:    newVoice(dec, g.SampleRate(), true),
		graph:    g,
		bus:      bus,
		duration: framesToDuration(dec.Length()/int64(dec.ChannelCount()*2), dec.SampleRate()),
		meta:     ReadMetadata(path),
	}
	if err := g.Play(bus, m.voice); err != nil {
		f.Close()
		return nil, fmt.Errorf("routing music to %s: %w", bus, err)
	}
	return m, nil
}

// Metadata returns the track's tags.
func (m *Music) Metadata() Metadata { return m.meta }

// TogglePause flips between playing and paused.
func (m *Music) TogglePause() {
	m.voice.SetPaused(!m.voice.Paused())
}

// SetPaused pauses or resumes explicitly.
func (m *Music) SetPaused(paused bool) { m.voice.SetPaused(paused) }

// Paused reports whether the track is held.
func (m *Music) Paused() bool { return m.voice.Paused() }

// Position is the offset into the current loop.
func (m *Music) Position() time.Duration { return m.voice.Position() }

// Duration is the length of one loop.
func (m *Music) Duration() time.Duration { return m.duration }

// Close detaches the voice and closes the file.
func (m *Music) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.graph.Stop(m.voice)
	m.file.Close()
}
