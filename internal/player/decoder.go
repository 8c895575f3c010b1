package player

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// audioDecoder yields interleaved s16le PCM at the source rate.
type audioDecoder interface {
	io.ReadSeeker
	Length() int64
	SampleRate() int
	ChannelCount() int
}

var supportedExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

// IsSupportedExt reports whether ext names a decodable format.
func IsSupportedExt(ext string) bool {
	return supportedExts[strings.ToLower(ext)]
}

// newDecoder picks a decoder by file extension.
func newDecoder(f *os.File) (audioDecoder, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	switch ext {
	case ".mp3":
		return newMP3Decoder(f)
	case ".wav":
		return newWAVDecoder(f)
	case ".flac":
		return newFLACDecoder(f)
	case ".ogg":
		return newOGGDecoder(f)
	default:
		return nil, fmt.Errorf("unsupported format: %s", ext)
	}
}

func putSample(dst []byte, i, sample int) {
	if sample > 32767 {
		sample = 32767
	} else if sample < -32768 {
		sample = -32768
	}
	binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(sample)))
}

// clampSeek resolves a seek request against the output length.
func clampSeek(offset int64, whence int, pos, length int64) int64 {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = pos + offset
	case io.SeekEnd:
		next = length + offset
	}
	return max(0, min(next, length))
}

// pending holds converted bytes that did not fit the caller's buffer.
type pending struct {
	buf []byte
	pos int64
}

func (p *pending) drain(dst []byte) (int, bool) {
	if len(p.buf) == 0 {
		return 0, false
	}
	n := copy(dst, p.buf)
	p.buf = p.buf[n:]
	p.pos += int64(n)
	return n, true
}

func (p *pending) deliver(dst, raw []byte) int {
	n := copy(dst, raw)
	if n < len(raw) {
		p.buf = raw[n:]
	}
	p.pos += int64(n)
	return n
}

type mp3Decoder struct {
	dec *mp3.Decoder
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) Read(p []byte) (int, error) { return d.dec.Read(p) }
func (d *mp3Decoder) Seek(offset int64, whence int) (int64, error) {
	return d.dec.Seek(offset, whence)
}
func (d *mp3Decoder) Length() int64     { return d.dec.Length() }
func (d *mp3Decoder) SampleRate() int   { return d.dec.SampleRate() }
func (d *mp3Decoder) ChannelCount() int { return 2 }

type wavDecoder struct {
	pending
	file       *os.File
	pcmStart   int64
	totalBytes int64
	sampleRate int
	channels   int
	bitDepth   int
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels < 1 || bitDepth%8 != 0 || bitDepth == 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported WAV layout: %d channels, %d bits", channels, bitDepth)
	}
	srcFrame := int64(channels * bitDepth / 8)

	pcmStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("getting PCM start position: %w", err)
	}

	return &wavDecoder{
		file:       f,
		pcmStart:   pcmStart,
		totalBytes: dec.PCMLen() / srcFrame * int64(channels) * 2,
		sampleRate: int(dec.SampleRate),
		channels:   channels,
		bitDepth:   bitDepth,
	}, nil
}

func (d *wavDecoder) Read(p []byte) (int, error) {
	if n, ok := d.drain(p); ok {
		return n, nil
	}
	if d.pos >= d.totalBytes {
		return 0, io.EOF
	}

	width := d.bitDepth / 8
	// stop at the end of the data chunk even if trailing chunks follow
	want := min(max(len(p)/2, 1), int((d.totalBytes-d.pos)/2))
	src := make([]byte, want*width)
	n, err := io.ReadFull(d.file, src)
	samples := n / width
	if samples == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, samples*2)
	for i := range samples {
		b := src[i*width:]
		var s int
		switch d.bitDepth {
		case 8:
			s = (int(b[0]) - 128) << 8
		case 16:
			s = int(int16(binary.LittleEndian.Uint16(b)))
		case 24:
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			s = int(v >> 8)
		case 32:
			s = int(int32(binary.LittleEndian.Uint32(b)) >> 16)
		}
		putSample(raw, i, s)
	}

	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return d.deliver(p, raw), err
}

func (d *wavDecoder) Seek(offset int64, whence int) (int64, error) {
	next := clampSeek(offset, whence, d.pos, d.totalBytes)
	frame := next / int64(d.channels*2)
	src := frame * int64(d.channels*d.bitDepth/8)
	if _, err := d.file.Seek(d.pcmStart+src, io.SeekStart); err != nil {
		return d.pos, err
	}
	d.buf = nil
	d.pos = frame * int64(d.channels*2)
	return d.pos, nil
}

func (d *wavDecoder) Length() int64     { return d.totalBytes }
func (d *wavDecoder) SampleRate() int   { return d.sampleRate }
func (d *wavDecoder) ChannelCount() int { return d.channels }

type flacDecoder struct {
	pending
	stream     *flac.Stream
	totalBytes int64
	sampleRate int
	channels   int
	bps        int
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.NewSeek(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	channels := int(info.NChannels)
	return &flacDecoder{
		stream:     stream,
		totalBytes: int64(info.NSamples) * int64(channels) * 2,
		sampleRate: int(info.SampleRate),
		channels:   channels,
		bps:        int(info.BitsPerSample),
	}, nil
}

func (d *flacDecoder) Read(p []byte) (int, error) {
	if n, ok := d.drain(p); ok {
		return n, nil
	}

	frame, err := d.stream.ParseNext()
	if err != nil {
		return 0, err
	}

	count := int(frame.Subframes[0].NSamples)
	raw := make([]byte, count*d.channels*2)
	for i := range count {
		for ch := range d.channels {
			s := int(frame.Subframes[ch].Samples[i])
			if d.bps > 16 {
				s >>= d.bps - 16
			} else if d.bps < 16 {
				s <<= 16 - d.bps
			}
			putSample(raw, i*d.channels+ch, s)
		}
	}
	return d.deliver(p, raw), nil
}

func (d *flacDecoder) Seek(offset int64, whence int) (int64, error) {
	next := clampSeek(offset, whence, d.pos, d.totalBytes)
	frameBytes := int64(d.channels * 2)
	if _, err := d.stream.Seek(uint64(next / frameBytes)); err != nil {
		return d.pos, err
	}
	d.buf = nil
	d.pos = next - next%frameBytes
	return d.pos, nil
}

func (d *flacDecoder) Length() int64     { return d.totalBytes }
func (d *flacDecoder) SampleRate() int   { return d.sampleRate }
func (d *flacDecoder) ChannelCount() int { return d.channels }

type oggDecoder struct {
	pending
	reader     *oggvorbis.Reader
	totalBytes int64
	sampleRate int
	channels   int
}

func newOGGDecoder(f *os.File) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	channels := reader.Channels()
	return &oggDecoder{
		reader:     reader,
		totalBytes: reader.Length() * int64(channels) * 2,
		sampleRate: reader.SampleRate(),
		channels:   channels,
	}, nil
}

func (d *oggDecoder) Read(p []byte) (int, error) {
	if n, ok := d.drain(p); ok {
		return n, nil
	}

	samples := make([]float32, max(len(p)/2, d.channels))
	n, err := d.reader.Read(samples)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, n*2)
	for i, s := range samples[:n] {
		putSample(raw, i, int(s*32767))
	}
	return d.deliver(p, raw), err
}

func (d *oggDecoder) Seek(offset int64, whence int) (int64, error) {
	next := clampSeek(offset, whence, d.pos, d.totalBytes)
	frameBytes := int64(d.channels * 2)
	if err := d.reader.SetPosition(next / frameBytes); err != nil {
		return d.pos, err
	}
	d.buf = nil
	d.pos = next - next%frameBytes
	return d.pos, nil
}

func (d *oggDecoder) Length() int64     { return d.totalBytes }
func (d *oggDecoder) SampleRate() int   { return d.sampleRate }
func (d *oggDecoder) ChannelCount() int { return d.channels }
