package host

import (
	"math"

	"github.com/ebitengine/oto/v3"

	"nescore/internal/audio"
	"nescore/internal/neserr"
)

// otoSampleRate matches the APU's internal resample target
// (internal/apu.New's sampleRate field); the oto context must agree or
// playback pitch drifts.
const otoSampleRate = 44100

// AudioPlayer drains the core's ring buffer on oto's own callback
// thread, grounded on IntuitionAmiga-IntuitionEngine's OtoPlayer
// (audio_backend_oto.go): an io.Reader fed to oto.NewPlayer, silence-
// padding short reads rather than blocking.
type AudioPlayer struct {
	ctx    *oto.Context
	player *oto.Player
	ring   *audio.RingBuffer
	scratch []float32
}

// NewAudioPlayer opens the platform audio backend and wires it to the
// bus's ring buffer as the audio pull-callback.
func NewAudioPlayer(ring *audio.RingBuffer) (*AudioPlayer, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   otoSampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4096,
	})
	if err != nil {
		return nil, neserr.Wrap(neserr.KindHostService, err, "opening oto audio context")
	}
	<-ready

	ap := &AudioPlayer{ctx: ctx, ring: ring}
	ap.player = ctx.NewPlayer(ap)
	ap.player.Play()
	return ap, nil
}

// Read implements io.Reader for oto's player: it is called on oto's own
// audio thread, draining the lock-guarded ring buffer and padding any
// shortfall with silence rather than blocking on the emulation thread.
func (ap *AudioPlayer) Read(p []byte) (int, error) {
	n := len(p) / 4
	if cap(ap.scratch) < n {
		ap.scratch = make([]float32, n)
	}
	samples := ap.scratch[:n]

	got := ap.ring.Read(samples)
	for i := got; i < n; i++ {
		samples[i] = 0
	}

	for i, s := range samples {
		bits := math.Float32bits(s)
		p[i*4+0] = byte(bits)
		p[i*4+1] = byte(bits >> 8)
		p[i*4+2] = byte(bits >> 16)
		p[i*4+3] = byte(bits >> 24)
	}
	return len(p), nil
}

// Close stops playback and releases the oto player.
func (ap *AudioPlayer) Close() {
	if ap.player != nil {
		ap.player.Close()
	}
}
