// Package bus implements the system bus: the central clock and
// address-decode router that ties the CPU, video coprocessor, audio
// coprocessor, cartridge mapper and input latches into one machine.
// The bus is the only component that knows about all the others; every
// other package is reachable only through the narrow interfaces this
// file wires together, keeping the wiring explicit rather than global.
package bus

import (
	"nescore/internal/apu"
	"nescore/internal/audio"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/input"
	"nescore/internal/mapper"
	"nescore/internal/neserr"
	"nescore/internal/ppu"
)

// Space identifies one of the three address spaces a read or write can
// target: the 16-bit processor bus, the video coprocessor's 14-bit
// address space, or its 8-bit OAM space.
type Space int

const (
	SpaceCPU Space = iota
	SpaceVideo
	SpaceOAM
)

// audioRingCapacity is sized for roughly two frames of NTSC audio
// (~735 samples/frame at 44.1kHz/60Hz) so host scheduling jitter never
// forces the producer to drop samples under normal play.
const audioRingCapacity = 2048

// cpuDivisor/audioDivisor express the NTSC master-clock ratios: one
// CPU cycle every three master ticks, one audio cycle every six (the
// video coprocessor advances one dot per tick, i.e. every call).
const (
	cpuDivisor   = 3
	audioDivisor = 6
)

// Bus owns every subsystem exclusively and is the sole clock driving
// them. It satisfies cpu.Bus itself (via the CPU-space Read/Write
// methods) so the CPU core never imports this package.
type Bus struct {
	Cart   *cartridge.Cartridge
	Mapper *mapper.Mapper
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Input  *input.Input
	Audio  *audio.RingBuffer

	wram [0x0800]uint8

	masterCycle uint64
	cpuCycle    uint64

	dmaActive  bool
	dmaWait    int
	dmaSource  uint16
	dmaDest    uint8
	dmaLatch   uint8
}

// New builds an uninitialised bus. Call Init with a cartridge image
// before driving Cycle.
func New() *Bus {
	b := &Bus{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.New(),
		Audio: audio.New(audioRingCapacity),
	}
	b.CPU = cpu.New(b)
	return b
}

// Init parses romBytes as an iNES image, constructs the cartridge's
// mapper, and wires the video coprocessor's CHR/IRQ callbacks to it.
func (b *Bus) Init(romBytes []byte) error {
	cart, err := cartridge.Load(romBytes)
	if err != nil {
		return neserr.Wrap(neserr.KindCartridge, err, "loading cartridge")
	}
	m, err := mapper.New(cart)
	if err != nil {
		return neserr.Wrap(neserr.KindUnsupportedMapper, err, "constructing mapper")
	}

	b.Cart = cart
	b.Mapper = m
	b.wireCallbacks()
	b.APU.ReadMemory = b.readCPU
	b.Reset()
	return nil
}

// wireCallbacks connects the video coprocessor's external hooks
// (CHR access, A12 scanline trigger, NMI line) to the mapper and CPU.
// Split out of Init/Reset since the mapper is replaced (not just
// reset) only by Init/LoadCartridge, never by RESET.
func (b *Bus) wireCallbacks() {
	b.PPU.ReadCHR = b.Mapper.ReadCHR
	b.PPU.WriteCHR = b.Mapper.WriteCHR
	b.PPU.OnA12 = func() { b.Mapper.Scanline() }
	b.PPU.NMI = b.CPU.SetNMI
	b.PPU.Mirror = b.Mapper.Mirror
}

// SetButtonSource installs the host's button-poll query.
func (b *Bus) SetButtonSource(fn input.GetButtonFunc) {
	b.Input.GetButton = fn
}

// Reset re-runs reset on all subsystems in a deterministic order
// (mapper, audio, input, CPU, video; the host-service button source has
// no state to reset since it is injected per-call) and zeroes the
// master cycle.
func (b *Bus) Reset() {
	if b.Mapper != nil {
		b.Mapper.Reset()
		b.PPU.Mirror = b.Mapper.Mirror
	}
	b.APU.Reset()
	b.Audio.Reset()
	b.Input.Reset()
	b.CPU.Reset()
	b.PPU.Reset()

	b.masterCycle = 0
	b.cpuCycle = 0
	b.dmaActive = false
	b.dmaWait = 0
	b.dmaSource = 0
	b.dmaDest = 0
	b.dmaLatch = 0
}

// Uninit releases the bus's subsystems. Nothing here holds OS
// resources directly (those live in the host package), so this is
// mostly a formality giving callers a single, symmetric teardown point.
func (b *Bus) Uninit() {
	b.Cart = nil
	b.Mapper = nil
}

// Cycle advances the machine by one master tick: a CPU cycle every
// three ticks (OAM-DMA, when active, steals that slot instead), an
// audio cycle every six ticks, and one video dot every tick. Returns
// true on the dot the frame completes.
func (b *Bus) Cycle() bool {
	if b.masterCycle%cpuDivisor == 0 {
		if b.dmaActive {
			b.stepDMA()
		} else {
			b.CPU.SetIRQ(b.Mapper.IRQPending() || b.APU.GetFrameIRQ() || b.APU.GetDMCIRQ())
			b.CPU.Tick()
		}
		b.cpuCycle++
	}

	if b.masterCycle%audioDivisor == 0 {
		b.APU.Step()
		for _, sample := range b.APU.GetSamples() {
			b.Audio.WriteSample(sample)
		}
	}

	b.masterCycle++

	frameComplete := b.PPU.Tick()
	return frameComplete
}

// stepDMA advances the OAM-DMA state machine one CPU cycle at a time:
// one alignment cycle, plus a second if OAM-DMA was triggered on an odd
// CPU cycle, then 256 read/write pairs — 513 or 514 total CPU cycles
// depending on starting parity.
func (b *Bus) stepDMA() {
	b.CPU.Halt(true)

	if b.dmaWait > 0 {
		b.dmaWait--
		return
	}

	if b.cpuCycle%2 == 0 {
		b.dmaLatch = b.readCPU(b.dmaSource)
		b.dmaSource++
	} else {
		b.PPU.WriteOAMByte(b.dmaDest, b.dmaLatch)
		b.dmaDest++
		if b.dmaDest == 0 {
			b.dmaActive = false
			b.CPU.Halt(false)
		}
	}
}

// triggerOAMDMA starts a transfer from processor-space page (byte<<8)
// into OAM, per a write to $4014. An extra alignment cycle is needed
// when the trigger lands on an odd CPU cycle (the 513/514 parity
// rule).
func (b *Bus) triggerOAMDMA(page uint8) {
	b.dmaActive = true
	b.dmaWait = 1
	if b.cpuCycle%2 == 1 {
		b.dmaWait = 2
	}
	b.dmaSource = uint16(page) << 8
	b.dmaDest = 0
}

// ReadSpace services a processor-space, video-space or OAM-space read.
// Tests and the host's debug tooling use this; the CPU core itself
// goes through Read below, which always means processor space.
func (b *Bus) ReadSpace(space Space, addr uint16) uint8 {
	switch space {
	case SpaceVideo:
		return b.readVideo(addr)
	case SpaceOAM:
		return b.PPU.ReadOAMByte(uint8(addr))
	default:
		return b.readCPU(addr)
	}
}

// WriteSpace services a processor-space, video-space or OAM-space
// write.
func (b *Bus) WriteSpace(space Space, addr uint16, value uint8) {
	switch space {
	case SpaceVideo:
		b.writeVideo(addr, value)
	case SpaceOAM:
		b.PPU.WriteOAMByte(uint8(addr), value)
	default:
		b.writeCPU(addr, value)
	}
}

// Read implements cpu.Bus: the CPU core only ever addresses processor
// space directly.
func (b *Bus) Read(addr uint16) uint8 { return b.readCPU(addr) }

// Write implements cpu.Bus.
func (b *Bus) Write(addr uint16, value uint8) { b.writeCPU(addr, value) }

func (b *Bus) readCPU(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return b.wram[addr&0x07FF]
	case addr < 0x4000:
		return b.PPU.ReadRegister(addr)
	case addr < 0x4014:
		return 0 // audio registers are write-only; open bus
	case addr == 0x4014:
		return 0 // OAM-DMA trigger is write-only
	case addr == 0x4015:
		return b.APU.ReadStatus()
	case addr == 0x4016:
		return b.Input.Read(addr)
	case addr == 0x4017:
		return b.Input.Read(addr)
	case addr < 0x6000:
		return 0 // unmapped expansion region
	case addr < 0x8000:
		return b.Mapper.ReadRAM(addr)
	default:
		return b.Mapper.ReadROM(addr)
	}
}

func (b *Bus) writeCPU(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		b.wram[addr&0x07FF] = value
	case addr < 0x4000:
		b.PPU.WriteRegister(addr, value)
	case addr < 0x4014:
		b.APU.WriteRegister(addr, value)
	case addr == 0x4014:
		b.triggerOAMDMA(value)
	case addr == 0x4015:
		b.APU.WriteRegister(addr, value)
	case addr == 0x4016:
		b.Input.Write(addr, value)
	case addr == 0x4017:
		b.APU.WriteRegister(addr, value)
	case addr < 0x6000:
		// unmapped expansion region
	case addr < 0x8000:
		b.Mapper.WriteRAM(addr, value)
	default:
		b.Mapper.WriteROM(addr, value)
	}
}

// readVideo/writeVideo service spec §4.1's video address space: CHR
// below $2000, nametable/palette RAM above it — the PPU's internal bus,
// not the CPU-facing $2000-$2007 register ports (those are reached
// only through SpaceCPU).
func (b *Bus) readVideo(addr uint16) uint8 {
	return b.PPU.ReadBus(addr)
}

func (b *Bus) writeVideo(addr uint16, value uint8) {
	b.PPU.WriteBus(addr, value)
}

// Interrupt implements spec §4.1's `interrupt(kind)` (no status is
// returned): an externally-driven IRQ/NMI/RESET assertion (used by tests and by a host
// that wants to model expansion hardware). The regular NMI/mapper-IRQ
// paths go through the direct callbacks wired in wireCallbacks/Cycle.
func (b *Bus) Interrupt(kind InterruptKind) {
	switch kind {
	case InterruptNMI:
		b.CPU.SetNMI(true)
		b.CPU.SetNMI(false)
	case InterruptIRQ:
		b.CPU.SetIRQ(true)
	case InterruptReset:
		b.Reset()
	}
}

// InterruptKind enumerates the interrupt lines Interrupt can drive.
type InterruptKind int

const (
	InterruptNMI InterruptKind = iota
	InterruptIRQ
	InterruptReset
)

// FrameBuffer exposes the video coprocessor's current framebuffer for
// the host's pixel sink to blit.
func (b *Bus) FrameBuffer() *[256 * 240]uint32 { return &b.PPU.FrameBuffer }

// MasterCycle reports the total number of master ticks executed since
// the last Reset, for diagnostics and tests.
func (b *Bus) MasterCycle() uint64 { return b.masterCycle }
