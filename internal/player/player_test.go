package player

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/olivier-w/spectra/internal/mixer"
)

type stubPCMDecoder struct {
	data       []byte
	pos        int64
	sampleRate int
	channels   int
}

func (d *stubPCMDecoder) Read(p []byte) (int, error) {
	if d.pos >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[d.pos:])
	d.pos += int64(n)
	return n, nil
}

func (d *stubPCMDecoder) Seek(offset int64, whence int) (int64, error) {
	d.pos = clampSeek(offset, whence, d.pos, int64(len(d.data)))
	return d.pos, nil
}

func (d *stubPCMDecoder) Length() int64     { return int64(len(d.data)) }
func (d *stubPCMDecoder) SampleRate() int   { return d.sampleRate }
func (d *stubPCMDecoder) ChannelCount() int { return d.channels }

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestVoiceUpmixesMono(t *testing.T) {
	src := &stubPCMDecoder{data: pcm16(16384, -16384, 8192), sampleRate: 48000, channels: 1}
	v := newVoice(src, 48000, false)

	dst := make([]float32, 16)
	n, done := v.Stream(dst)
	if n != 3 || !done {
		t.Fatalf("Stream() = %d, %v, want 3, true", n, done)
	}
	want := []float32{0.5, 0.5, -0.5, -0.5, 0.25, 0.25}
	for i, w := range want {
		if dst[i] != w {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], w)
		}
	}
}

func TestVoiceResamplesDown(t *testing.T) {
	src := &stubPCMDecoder{
		data:       pcm16(0, 0, 100, 100, 200, 200, 300, 300, 400, 400, 500, 500),
		sampleRate: 96000,
		channels:   2,
	}
	v := newVoice(src, 48000, false)
	dst := make([]float32, 6)
	n, _ := v.Stream(dst)
	if n != 3 {
		t.Fatalf("Stream() frames = %d, want 3", n)
	}
	for i, w := range []float32{0, 200, 400} {
		if got := dst[i*2] * 32768; math.Abs(float64(got-w)) > 1e-3 {
			t.Fatalf("frame %d = %v, want %v", i, got, w)
		}
	}
}

func TestVoiceLoopsAndPauses(t *testing.T) {
	src := &stubPCMDecoder{data: pcm16(1000, 1000), sampleRate: 48000, channels: 2}
	v := newVoice(src, 48000, true)

	dst := make([]float32, 10)
	n, done := v.Stream(dst)
	if n != 5 || done {
		t.Fatalf("looping Stream() = %d, %v, want 5, false", n, done)
	}
	for i := range dst {
		if dst[i] == 0 {
			t.Fatalf("dst[%d] silent in a looping voice", i)
		}
	}

	v.SetPaused(true)
	if n, done := v.Stream(dst); n != 0 || done {
		t.Fatalf("paused Stream() = %d, %v, want 0, false", n, done)
	}
	if !v.Paused() {
		t.Fatal("expected voice to be paused")
	}
}

func TestVoiceRestartRewinds(t *testing.T) {
	src := &stubPCMDecoder{data: pcm16(100, 100, 200, 200, 300, 300), sampleRate: 48000, channels: 2}
	v := newVoice(src, 48000, false)
	dst := make([]float32, 4)
	v.Stream(dst)
	if v.Position() == 0 {
		t.Fatal("expected position to advance")
	}
	if err := v.Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if got := v.Position(); got != 0 {
		t.Fatalf("Position() after Restart = %v, want 0", got)
	}
	v.Stream(dst)
	if got := dst[0] * 32768; math.Abs(float64(got-100)) > 1e-3 {
		t.Fatalf("first sample after restart = %v, want 100", got)
	}
}

func TestClipPlaysOnce(t *testing.T) {
	c := &clip{samples: []float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3}}
	dst := make([]float32, 4)
	if n, done := c.Stream(dst); n != 2 || done {
		t.Fatalf("Stream() = %d, %v, want 2, false", n, done)
	}
	if n, done := c.Stream(dst); n != 1 || !done {
		t.Fatalf("Stream() = %d, %v, want 1, true", n, done)
	}
}

func TestChimeFitsGraphRate(t *testing.T) {
	g := mixer.New(48000, nil)
	if _, err := g.AddBus("Sfx"); err != nil {
		t.Fatalf("AddBus() error = %v", err)
	}
	s := Chime(g, "bus:/Sfx")
	if got, want := s.Len(), 48000*35/100; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if err := s.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	b, _ := g.Bus("bus:/Sfx")
	if b.Playing() != 1 {
		t.Fatalf("Playing() = %d, want 1", b.Playing())
	}
	if err := Chime(g, "bus:/Nope").Play(); err == nil {
		t.Fatal("expected error playing on a missing bus")
	}
}

// writeWAV writes a 16-bit PCM file with the canonical 44-byte header.
func writeWAV(t *testing.T, rate, channels int, samples []int16) string {
	t.Helper()
	data := pcm16(samples...)
	hdr := make([]byte, 44)
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(36+len(data)))
	copy(hdr[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1)
	binary.LittleEndian.PutUint16(hdr[22:], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(rate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(rate*channels*2))
	binary.LittleEndian.PutUint16(hdr[32:], uint16(channels*2))
	binary.LittleEndian.PutUint16(hdr[34:], 16)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], uint32(len(data)))

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, append(hdr, data...), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadSFXDecodesWAV(t *testing.T) {
	samples := make([]int16, 480)
	for i := range samples {
		samples[i] = 4096
	}
	path := writeWAV(t, 48000, 1, samples)

	g := mixer.New(48000, nil)
	if _, err := g.AddBus("Sfx"); err != nil {
		t.Fatalf("AddBus() error = %v", err)
	}
	s, err := LoadSFX(path, g, "bus:/Sfx")
	if err != nil {
		t.Fatalf("LoadSFX() error = %v", err)
	}
	if s.Len() != 480 {
		t.Fatalf("Len() = %d, want 480", s.Len())
	}
	if got := s.samples[1]; got != 0.125 {
		t.Fatalf("sample = %v, want 0.125", got)
	}
}

func TestOpenMusicRoutesAndPauses(t *testing.T) {
	path := writeWAV(t, 24000, 2, make([]int16, 24000*2))

	g := mixer.New(48000, nil)
	if _, err := g.AddBus("Music"); err != nil {
		t.Fatalf("AddBus() error = %v", err)
	}
	m, err := OpenMusic(path, g, "bus:/Music")
	if err != nil {
		t.Fatalf("OpenMusic() error = %v", err)
	}
	defer m.Close()

	if m.Duration() != time.Second {
		t.Fatalf("Duration() = %v, want 1s", m.Duration())
	}
	if m.Metadata().Title != "tone" {
		t.Fatalf("Title = %q, want tone", m.Metadata().Title)
	}
	m.TogglePause()
	if !m.Paused() {
		t.Fatal("expected music paused after toggle")
	}
	m.TogglePause()
	if m.Paused() {
		t.Fatal("expected music playing after second toggle")
	}

	m.Close()
	b, _ := g.Bus("bus:/Music")
	if b.Playing() != 0 {
		t.Fatalf("Playing() = %d after Close, want 0", b.Playing())
	}
}

func TestOpenMusicRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("la la"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := OpenMusic(path, mixer.New(48000, nil), "bus:/"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestIsSupportedExt(t *testing.T) {
	for ext, want := range map[string]bool{".MP3": true, ".wav": true, ".flac": true, ".ogg": true, ".m4a": false} {
		if got := IsSupportedExt(ext); got != want {
			t.Fatalf("IsSupportedExt(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestMetadataByline(t *testing.T) {
	tests := []struct {
		m    Metadata
		want string
	}{
		{Metadata{Artist: "A", Album: "B"}, "A - B"},
		{Metadata{Artist: "A"}, "A"},
		{Metadata{Album: "B"}, "B"},
		{Metadata{}, ""},
	}
	for _, tt := range tests {
		if got := tt.m.Byline(); got != tt.want {
			t.Fatalf("Byline() = %q, want %q", got, tt.want)
		}
	}
}
