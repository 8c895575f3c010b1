package player

import (
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/olivier-w/spectra/internal/mixer"
)

// outputLatency bounds how far playback runs ahead of the analysis stage.
const outputLatency = 60 * time.Millisecond

var (
	globalOtoCtx *oto.Context
	otoOnce      sync.Once
	otoInitErr   error
)

// oto allows one context per process.
func initOto(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: mixer.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   outputLatency,
		}
		var ready chan struct{}
		globalOtoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
		}
	})
	return globalOtoCtx, otoInitErr
}

// Output pulls the mixer graph into the sound card.
type Output struct {
	player *oto.Player
	mu     sync.Mutex
	closed bool
}

// NewOutput starts playback of g.
func NewOutput(g *mixer.Graph) (*Output, error) {
	ctx, err := initOto(g.SampleRate())
	if err != nil {
		return nil, err
	}
	p := ctx.NewPlayer(g)
	p.SetBufferSize(int(outputLatency.Seconds() * float64(g.SampleRate()) * mixer.Channels * 2))
	p.Play()
	return &Output{player: p}, nil
}

// Close stops pulling from the graph.
func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.player.Pause()
}
