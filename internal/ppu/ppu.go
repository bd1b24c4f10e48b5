// Package ppu implements the NES video coprocessor (2C02): background
// and sprite pipelines, nametable/palette RAM, scroll registers, and
// the 341-dot/262-scanline timing grid. Stepped one dot at a time by
// the bus, at three dots per CPU cycle.
package ppu

import "nescore/internal/cartridge"

const (
	dotsPerScanline   = 341
	scanlinesPerFrame = 262
	visibleScanlines  = 240
	postRenderLine    = 240
	vblankStartLine   = 241
	preRenderLine     = 261
)

// PPU is the video coprocessor. ReadCHR/WriteCHR/Mirror/OnA12 are
// supplied by the bus (backed by the cartridge mapper) so this package
// never imports the mapper package directly.
type PPU struct {
	ctrl   uint8
	mask   uint8
	status uint8

	oamAddr uint8

	v uint16
	t uint16
	x uint8
	w bool

	readBuffer uint8

	nametable [2048]uint8
	palette   [32]uint8
	oam       [256]uint8
	secOAM    [32]uint8
	secCount  int
	spriteIdx [8]uint8

	scanline int
	dot      int
	oddFrame bool
	frames   uint64

	bgShiftLo, bgShiftHi     uint16
	bgAttrShiftLo, bgAttrShiftHi uint16
	ntByte, atByte, patLo, patHi uint8

	spritePatLo, spritePatHi [8]uint8
	spriteAttr               [8]uint8
	spriteX                  [8]uint8
	sprite0OnLine            bool
	sprite0Rendering         bool

	FrameBuffer [256 * 240]uint32

	Mirror  cartridge.MirrorMode
	ReadCHR func(addr uint16) uint8
	WriteCHR func(addr uint16, v uint8)
	OnA12    func()
	NMI      func(asserted bool)

	frameComplete bool
}

// New constructs a PPU; wiring callbacks (ReadCHR etc.) is the bus's job.
func New() *PPU {
	p := &PPU{}
	p.Reset()
	return p
}

// Reset puts the PPU in its documented power-up state.
func (p *PPU) Reset() {
	p.ctrl, p.mask = 0, 0
	p.status = 0
	p.oamAddr = 0
	p.v, p.t, p.x = 0, 0, 0
	p.w = false
	p.readBuffer = 0
	p.scanline = preRenderLine
	p.dot = 0
	p.oddFrame = false
	p.frames = 0
	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.FrameBuffer {
		p.FrameBuffer[i] = 0
	}
}

func (p *PPU) renderingEnabled() bool { return p.mask&0x18 != 0 }
func (p *PPU) showBackground() bool   { return p.mask&0x08 != 0 }
func (p *PPU) showSprites() bool      { return p.mask&0x10 != 0 }

// Tick advances the PPU by one dot (one video cycle, 3x CPU rate).
// Returns true on the dot that completes scanline 260, the last idle
// line before the pre-render line.
func (p *PPU) Tick() bool {
	p.frameComplete = false

	if p.scanline == preRenderLine {
		p.preRenderDot()
	} else if p.scanline < visibleScanlines {
		p.visibleDot()
	} else if p.scanline == vblankStartLine && p.dot == 1 {
		p.status |= 0x80
		p.signalNMI()
	}

	p.dot++
	if p.dot > 340 {
		p.dot = 0
		p.scanline++
		if p.scanline == preRenderLine {
			p.frameComplete = true
			p.frames++
		} else if p.scanline > preRenderLine {
			p.scanline = 0
			p.oddFrame = !p.oddFrame
		}
	}
	return p.frameComplete
}

func (p *PPU) signalNMI() {
	if p.ctrl&0x80 != 0 && p.NMI != nil {
		p.NMI(true)
		p.NMI(false)
	}
}

func (p *PPU) preRenderDot() {
	if p.dot == 1 {
		p.status &^= 0xE0 // clear vblank, sprite-0-hit, overflow
	}
	if p.renderingEnabled() {
		p.backgroundPipeline()
		if p.dot >= 280 && p.dot <= 304 {
			// copy vertical bits of t into v
			p.v = (p.v &^ 0x7BE0) | (p.t & 0x7BE0)
		}
		if p.dot == 256 {
			p.incrementY()
		}
		if p.dot == 257 {
			p.copyHorizontal()
			p.evaluateSprites()
		}
		if p.dot == 260 && p.OnA12 != nil {
			p.OnA12()
		}
	}
}

func (p *PPU) visibleDot() {
	if p.dot >= 1 && p.dot <= 256 {
		if p.renderingEnabled() {
			p.backgroundPipeline()
		}
		if p.dot <= 256 {
			p.renderPixel()
		}
		if p.dot == 256 && p.renderingEnabled() {
			p.incrementY()
		}
	}
	if p.dot == 257 && p.renderingEnabled() {
		p.copyHorizontal()
		p.evaluateSprites()
	}
	if p.dot == 260 && p.renderingEnabled() && p.OnA12 != nil {
		p.OnA12()
	}
}

// backgroundPipeline runs the 8-dot fetch sequence (nametable byte,
// attribute byte, pattern low, pattern high) and shifts the pixel
// pipeline every dot in the fetch window.
func (p *PPU) backgroundPipeline() {
	if (p.dot >= 1 && p.dot <= 256) || (p.dot >= 321 && p.dot <= 336) {
		p.shiftBackground()
		switch p.dot % 8 {
		case 1:
			p.loadShiftRegisters()
			p.ntByte = p.fetchNametableByte()
		case 3:
			p.atByte = p.fetchAttributeByte()
		case 5:
			p.patLo = p.fetchPatternByte(false)
		case 7:
			p.patHi = p.fetchPatternByte(true)
		case 0:
			if p.dot != 0 {
				p.incrementX()
			}
		}
	}
}

func (p *PPU) shiftBackground() {
	p.bgShiftLo <<= 1
	p.bgShiftHi <<= 1
	p.bgAttrShiftLo <<= 1
	p.bgAttrShiftHi <<= 1
}

func (p *PPU) loadShiftRegisters() {
	p.bgShiftLo = (p.bgShiftLo &^ 0xFF) | uint16(p.patLo)
	p.bgShiftHi = (p.bgShiftHi &^ 0xFF) | uint16(p.patHi)
	var lo, hi uint16
	if p.atByte&0x01 != 0 {
		lo = 0xFF
	}
	if p.atByte&0x02 != 0 {
		hi = 0xFF
	}
	p.bgAttrShiftLo = (p.bgAttrShiftLo &^ 0xFF) | lo
	p.bgAttrShiftHi = (p.bgAttrShiftHi &^ 0xFF) | hi
}

func (p *PPU) fetchNametableByte() uint8 {
	addr := 0x2000 | (p.v & 0x0FFF)
	return p.readNametable(addr)
}

func (p *PPU) fetchAttributeByte() uint8 {
	addr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
	at := p.readNametable(addr)
	shift := ((p.v >> 4) & 0x04) | (p.v & 0x02)
	return (at >> shift) & 0x03
}

func (p *PPU) fetchPatternByte(high bool) uint8 {
	fineY := (p.v >> 12) & 0x07
	table := uint16(0)
	if p.ctrl&0x10 != 0 {
		table = 0x1000
	}
	plane := uint16(0)
	if high {
		plane = 8
	}
	addr := table + uint16(p.ntByte)*16 + fineY + plane
	return p.ReadCHR(addr)
}

func (p *PPU) incrementX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) copyHorizontal() {
	p.v = (p.v &^ 0x041F) | (p.t & 0x041F)
}

// renderPixel mixes background and sprite pixels and writes into the
// frame buffer at (dot-1, scanline).
func (p *PPU) renderPixel() {
	x := p.dot - 1
	y := p.scanline
	if x < 0 || x >= 256 || y < 0 || y >= 240 {
		return
	}

	bgPixel, bgPalette := p.backgroundPixel()
	spPixel, spPalette, spPriority, isSprite0 := p.spritePixel(x)

	if !p.showBackground() {
		bgPixel = 0
	}
	if !p.showSprites() {
		spPixel = 0
	}

	if isSprite0 && bgPixel != 0 && spPixel != 0 && x != 255 {
		p.status |= 0x40 // sprite-0 hit
	}

	var colorIndex uint8
	switch {
	case bgPixel == 0 && spPixel == 0:
		colorIndex = p.palette[0]
	case bgPixel == 0:
		colorIndex = p.palette[0x10+spPalette*4+spPixel]
	case spPixel == 0:
		colorIndex = p.palette[bgPalette*4+bgPixel]
	case spPriority:
		colorIndex = p.palette[bgPalette*4+bgPixel]
	default:
		colorIndex = p.palette[0x10+spPalette*4+spPixel]
	}

	p.FrameBuffer[y*256+x] = p.emphasize(nesPalette[colorIndex&0x3F])
}

// emphasize applies the mask register's R/G/B emphasis bits (mask bits
// 5/6/7): each forces its channel fully on, per spec §4.3/§6 "R/G/B
// emphasis forces the respective channel to 0xFF on output".
func (p *PPU) emphasize(c uint32) uint32 {
	if p.mask&0x20 != 0 {
		c |= 0x00FF0000
	}
	if p.mask&0x40 != 0 {
		c |= 0x0000FF00
	}
	if p.mask&0x80 != 0 {
		c |= 0x000000FF
	}
	return c
}

func (p *PPU) backgroundPixel() (pixel, palette uint8) {
	shift := 15 - p.x
	lo := uint8((p.bgShiftLo >> shift) & 1)
	hi := uint8((p.bgShiftHi >> shift) & 1)
	pixel = lo | (hi << 1)
	aLo := uint8((p.bgAttrShiftLo >> shift) & 1)
	aHi := uint8((p.bgAttrShiftHi >> shift) & 1)
	palette = aLo | (aHi << 1)
	return
}

func (p *PPU) spritePixel(x int) (pixel, palette uint8, priority bool, isSprite0 bool) {
	for i := 0; i < p.secCount; i++ {
		offset := x - int(p.spriteX[i])
		if offset < 0 || offset > 7 {
			continue
		}
		lo := (p.spritePatLo[i] >> (7 - offset)) & 1
		hi := (p.spritePatHi[i] >> (7 - offset)) & 1
		px := lo | (hi << 1)
		if px == 0 {
			continue
		}
		return px, p.spriteAttr[i] & 0x03, p.spriteAttr[i]&0x20 != 0, p.spriteIdx[i] == 0 && p.sprite0OnLine
	}
	return 0, 0, false, false
}

// evaluateSprites selects up to 8 sprites for the NEXT scanline and
// fetches their pattern bytes, applying vertical/horizontal flip.
func (p *PPU) evaluateSprites() {
	p.secCount = 0
	p.sprite0OnLine = false
	height := 8
	if p.ctrl&0x20 != 0 {
		height = 16
	}
	targetLine := p.scanline + 1

	for i := 0; i < 64; i++ {
		spriteY := int(p.oam[i*4])
		row := targetLine - spriteY - 1
		if row < 0 || row >= height {
			continue
		}
		if p.secCount >= 8 {
			// Secondary OAM is full; real hardware keeps scanning with
			// its buggy diagonal evaluator, but the observable result
			// is just the overflow flag, so report it and stop.
			p.status |= 0x20
			break
		}
		if i == 0 {
			p.sprite0OnLine = true
		}
		idx := p.secCount
		p.spriteIdx[idx] = uint8(i)
		tile := p.oam[i*4+1]
		attr := p.oam[i*4+2]
		p.spriteAttr[idx] = attr
		p.spriteX[idx] = p.oam[i*4+3]

		if attr&0x80 != 0 {
			row = height - 1 - row
		}

		var table uint16
		var tileIdx int
		if height == 16 {
			table = uint16(tile&1) * 0x1000
			tileIdx = int(tile &^ 1)
			if row >= 8 {
				tileIdx++
				row -= 8
			}
		} else {
			table = 0
			if p.ctrl&0x08 != 0 {
				table = 0x1000
			}
			tileIdx = int(tile)
		}

		addr := table + uint16(tileIdx)*16 + uint16(row)
		lo := p.ReadCHR(addr)
		hi := p.ReadCHR(addr + 8)
		if attr&0x40 != 0 {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}
		p.spritePatLo[idx] = lo
		p.spritePatHi[idx] = hi
		p.secCount++
	}
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

// readNametable resolves a $2000-$2FFF nametable access through the
// cartridge's current mirroring mode.
func (p *PPU) readNametable(addr uint16) uint8 {
	return p.nametable[p.mirrorOffset(addr)]
}

func (p *PPU) writeNametable(addr uint16, v uint8) {
	p.nametable[p.mirrorOffset(addr)] = v
}

// ReadRegister services a CPU read of $2000-$2007 (mirrored every 8
// bytes through $3FFF by the bus).
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr & 7 {
	case 0, 1, 3, 5, 6:
		return p.status & 0x1F // write-only ports expose open-bus status bits
	case 2:
		v := p.status
		p.status &^= 0x80 // clear vblank on read only; sprite-0-hit/overflow persist
		p.w = false
		return v
	case 4:
		return p.oam[p.oamAddr]
	case 7:
		return p.readData()
	}
	return 0
}

// WriteRegister services a CPU write of $2000-$2007.
func (p *PPU) WriteRegister(addr uint16, v uint8) {
	switch addr & 7 {
	case 0:
		p.ctrl = v
		p.t = (p.t &^ 0x0C00) | ((uint16(v) & 0x03) << 10)
	case 1:
		p.mask = v
	case 2:
		// read-only
	case 3:
		p.oamAddr = v
	case 4:
		p.oam[p.oamAddr] = v
		if p.status&0x80 == 0 {
			p.oamAddr++
		}
	case 5:
		p.writeScroll(v)
	case 6:
		p.writeAddr(v)
	case 7:
		p.writeData(v)
	}
}

// WriteOAMByte writes directly into OAM at addr (used by the bus's
// OAM-DMA state machine, bypassing OAMADDR auto-increment semantics).
func (p *PPU) WriteOAMByte(addr uint8, v uint8) { p.oam[addr] = v }

// ReadOAMByte reads directly from OAM at addr, bypassing OAMADDR.
func (p *PPU) ReadOAMByte(addr uint8) uint8 { return p.oam[addr] }

// GetFrameCount reports how many frames have completed.
func (p *PPU) GetFrameCount() uint64 { return p.frames }

func (p *PPU) writeScroll(v uint8) {
	if !p.w {
		p.t = (p.t &^ 0x001F) | (uint16(v) >> 3)
		p.x = v & 0x07
		p.w = true
	} else {
		p.t = (p.t &^ 0x7000) | ((uint16(v) & 0x07) << 12)
		p.t = (p.t &^ 0x03E0) | ((uint16(v) & 0xF8) << 2)
		p.w = false
	}
}

func (p *PPU) writeAddr(v uint8) {
	if !p.w {
		p.t = (p.t &^ 0x7F00) | ((uint16(v) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t &^ 0x00FF) | uint16(v)
		p.v = p.t
		p.w = false
	}
}

func (p *PPU) readData() uint8 {
	var data uint8
	if p.v >= 0x3F00 {
		data = p.readBus(p.v)
		p.readBuffer = p.readBus(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.readBus(p.v)
	}
	p.advanceAddr()
	return data
}

func (p *PPU) writeData(v uint8) {
	p.writeBus(p.v, v)
	p.advanceAddr()
}

func (p *PPU) advanceAddr() {
	if p.ctrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// ReadBus and WriteBus expose the PPU's own 14-bit address space to
// the system bus's video-space decode (spec §4.1: $0000-$1FFF mapper
// CHR, $2000-$3FFF nametable/palette RAM) — distinct from the
// CPU-facing $2000-$2007 register ports serviced by ReadRegister.
func (p *PPU) ReadBus(addr uint16) uint8 { return p.readBus(addr) }

// WriteBus is the write counterpart of ReadBus.
func (p *PPU) WriteBus(addr uint16, v uint8) { p.writeBus(addr, v) }

// readBus/writeBus resolve the PPU's own 14-bit address space:
// pattern tables (mapper CHR), nametables (mirrored internal RAM) and
// palette RAM, mirroring $3F10/$3F14/$3F18/$3F1C to their $3F00 base.
func (p *PPU) readBus(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		return p.ReadCHR(addr)
	case addr < 0x3F00:
		return p.readNametable(addr)
	default:
		return p.palette[paletteIndex(addr)]
	}
}

func (p *PPU) writeBus(addr uint16, v uint8) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		p.WriteCHR(addr, v)
	case addr < 0x3F00:
		p.writeNametable(addr, v)
	default:
		p.palette[paletteIndex(addr)] = v
	}
}

func paletteIndex(addr uint16) uint16 {
	i := addr & 0x1F
	if i&0x13 == 0x10 {
		i &^= 0x10
	}
	return i
}

func (p *PPU) mirrorOffset(addr uint16) uint16 {
	addr &= 0x0FFF
	table := addr / 0x0400
	offset := addr % 0x0400

	switch p.Mirror {
	case cartridge.MirrorVertical:
		return (table%2)*0x0400 + offset
	case cartridge.MirrorHorizontal:
		return (table/2)*0x0400 + offset
	case cartridge.MirrorSingleScreenLow:
		return offset
	case cartridge.MirrorSingleScreenHigh:
		return 0x0400 + offset
	default: // four-screen: each of the 4 logical tables maps 1:1 (only 2KB backing, wraps)
		return addr % 2048
	}
}
