// Package apu implements the NES 2A03 Audio Processing Unit: two pulse
// channels, a triangle channel, a noise channel, a delta-modulation
// channel (DMC), and the frame counter sequencer that clocks their
// envelope, sweep, and length units.
package apu

// APU is the NES Audio Processing Unit.
type APU struct {
	pulse1   Pulse
	pulse2   Pulse
	triangle Triangle
	noise    Noise
	dmc      DMC

	// Frame counter sequencer.
	frameCounter   uint16
	frameMode      bool // false = 4-step, true = 5-step
	frameIRQEnable bool
	frameIRQFlag   bool

	channelEnable [5]bool // pulse1, pulse2, triangle, noise, dmc

	sampleBuffer     []float32
	sampleRate       int     // target output rate, e.g. 44100 Hz
	cpuFrequency     float64 // NTSC CPU clock
	cycleAccumulator float64 // fractional-sample carry for rate conversion

	cycles uint64

	// ReadMemory fetches a DMC sample byte from processor address
	// space. The bus installs this after construction; DMC playback is
	// silent (bytes read as 0) until it is set.
	ReadMemory func(addr uint16) uint8
}

// New creates an APU with its channels silent and the frame counter in
// its default 4-step mode.
func New() *APU {
	a := &APU{
		sampleBuffer:   make([]float32, 0, 4096),
		sampleRate:     44100,
		cpuFrequency:   1789773.0,
		frameIRQEnable: true,
	}
	a.noise.shift = 1
	return a
}

// Reset returns the APU to its post-power state.
func (a *APU) Reset() {
	a.pulse1 = Pulse{}
	a.pulse2 = Pulse{}
	a.triangle = Triangle{}
	a.noise = Noise{shift: 1}
	a.dmc = DMC{}

	a.frameCounter = 0
	a.frameMode = false
	a.frameIRQEnable = true
	a.frameIRQFlag = false

	for i := range a.channelEnable {
		a.channelEnable[i] = false
	}

	a.cycles = 0
	a.cycleAccumulator = 0
	a.sampleBuffer = a.sampleBuffer[:0]
}

// Step advances the APU by one CPU cycle: the frame sequencer, every
// enabled channel's timer, and (when the sample-rate accumulator rolls
// over) mixes a new output sample.
func (a *APU) Step() {
	a.cycles++
	a.stepFrameCounter()
	a.stepTimers()
	a.generateSample()
}

// stepFrameCounter advances the frame sequencer. The NTSC step
// boundaries are cycle-exact (7457/14913/22371/29829 in 4-step mode,
// plus 37281 in 5-step) rather than a nearest-multiple approximation:
// every channel timer is clocked every single cycle, so sequencer drift
// here would be audible as pitch error.
func (a *APU) stepFrameCounter() {
	a.frameCounter++

	if a.frameMode {
		switch a.frameCounter {
		case 7457:
			a.clockQuarterFrame()
		case 14913:
			a.clockQuarterFrame()
			a.clockHalfFrame()
		case 22371:
			a.clockQuarterFrame()
		case 37281:
			a.clockQuarterFrame()
			a.clockHalfFrame()
			a.frameCounter = 0
		}
		return
	}

	switch a.frameCounter {
	case 7457:
		a.clockQuarterFrame()
	case 14913:
		a.clockQuarterFrame()
		a.clockHalfFrame()
	case 22371:
		a.clockQuarterFrame()
	case 29829:
		a.clockQuarterFrame()
		a.clockHalfFrame()
	case 29830:
		if a.frameIRQEnable {
			a.frameIRQFlag = true
		}
		a.frameCounter = 0
	}
}

// clockQuarterFrame clocks the envelopes and the triangle's linear
// counter; it fires on every sequencer step.
func (a *APU) clockQuarterFrame() {
	a.pulse1.Envelope.clock()
	a.pulse2.Envelope.clock()
	a.noise.Envelope.clock()
	a.triangle.clockLinear()
}

// clockHalfFrame clocks length counters and the pulse sweep units; it
// fires on every other sequencer step.
func (a *APU) clockHalfFrame() {
	a.pulse1.Length.clock()
	a.pulse1.clockSweep(true)
	a.pulse2.Length.clock()
	a.pulse2.clockSweep(false)
	a.triangle.Length.clock()
	a.noise.Length.clock()
}

func (a *APU) stepTimers() {
	if a.channelEnable[0] {
		a.pulse1.stepTimer()
	}
	if a.channelEnable[1] {
		a.pulse2.stepTimer()
	}
	if a.channelEnable[2] {
		a.triangle.stepTimer()
	}
	if a.channelEnable[3] {
		a.noise.stepTimer()
	}
	if a.channelEnable[4] {
		a.dmc.stepTimer(a.ReadMemory)
	}
}

// generateSample converts from the CPU clock to the target sample rate
// with a fractional accumulator, mixing a new sample each time it rolls
// over 1.0.
func (a *APU) generateSample() {
	a.cycleAccumulator += float64(a.sampleRate) / a.cpuFrequency
	if a.cycleAccumulator < 1.0 {
		return
	}
	a.cycleAccumulator -= 1.0

	sample := mixChannels(
		a.pulse1.output(),
		a.pulse2.output(),
		a.triangle.output(),
		a.noise.output(),
		a.dmc.output,
	)
	a.sampleBuffer = append(a.sampleBuffer, sample)
}

// GetSamples drains and returns all samples mixed since the last call.
func (a *APU) GetSamples() []float32 {
	samples := make([]float32, len(a.sampleBuffer))
	copy(samples, a.sampleBuffer)
	a.sampleBuffer = a.sampleBuffer[:0]
	return samples
}

// ReadStatus reads the APU status register ($4015): each channel's
// length-counter-active bit, the frame IRQ flag, and the DMC IRQ flag.
// Reading it clears the frame IRQ flag.
func (a *APU) ReadStatus() uint8 {
	status := uint8(0)
	if a.pulse1.Length.value > 0 {
		status |= 0x01
	}
	if a.pulse2.Length.value > 0 {
		status |= 0x02
	}
	if a.triangle.Length.value > 0 {
		status |= 0x04
	}
	if a.noise.Length.value > 0 {
		status |= 0x08
	}
	if a.dmc.bytesRemaining > 0 {
		status |= 0x10
	}
	if a.frameIRQFlag {
		status |= 0x40
	}
	if a.dmc.irqFlag {
		status |= 0x80
	}

	a.frameIRQFlag = false
	return status
}

// GetFrameIRQ reports the frame counter's IRQ line.
func (a *APU) GetFrameIRQ() bool { return a.frameIRQFlag }

// GetDMCIRQ reports the DMC channel's IRQ line.
func (a *APU) GetDMCIRQ() bool { return a.dmc.irqFlag }

// SetSampleRate changes the target output rate, resetting the
// fractional accumulator so the next sample isn't skewed by the switch.
func (a *APU) SetSampleRate(rate int) {
	a.sampleRate = rate
	a.cycleAccumulator = 0
}

// GetSampleRate returns the current target output rate.
func (a *APU) GetSampleRate() int { return a.sampleRate }

// GetChannelOutput returns a single channel's current output level,
// ignoring the mixer; useful for a per-channel VU display.
func (a *APU) GetChannelOutput(channel int) uint8 {
	if channel < 0 || channel >= len(a.channelEnable) || !a.channelEnable[channel] {
		return 0
	}
	switch channel {
	case 0:
		return a.pulse1.output()
	case 1:
		return a.pulse2.output()
	case 2:
		return a.triangle.output()
	case 3:
		return a.noise.output()
	case 4:
		return a.dmc.output
	default:
		return 0
	}
}

// IsChannelEnabled reports whether $4015 last enabled the given channel.
func (a *APU) IsChannelEnabled(channel int) bool {
	if channel < 0 || channel >= len(a.channelEnable) {
		return false
	}
	return a.channelEnable[channel]
}
