package emu

import (
	"github.com/go-faster/errors"

	"integrator/emu/log"
	"integrator/hw/hwio"
)

// SPI frame layout, sent MSB first.
//
//	15     write (1) or read (0)
//	14..8  register address
//	7..0   data (write) or don't care (read)
//
// On reads the slave shifts the register value out on MISO during the data
// phase, one bit per falling edge of SCLK.
const (
	spiFrameBits = 16
	spiCmdBits   = 8
	spiWriteBit  = 0x80
	spiAddrMask  = 0x7F

	minSPIHalfPeriod = 2
)

type spiPins struct {
	csn  bool // chip select, active low
	sclk bool
	mosi bool
}

// spiSlave is the peripheral side of the serial bus. Its inputs go through a
// two flip-flop synchroniser and its MISO output is registered, so a pin
// change made by the master is reflected on MISO three edges later.
type spiSlave struct {
	dev Device

	raw          spiPins // driven by the master
	sync1, sync2 spiPins

	sclkPrev bool
	shiftIn  uint16
	nbits    int
	write    bool
	addr     uint8
	shiftOut uint8
	miso     bool
}

func (s *spiSlave) reset() {
	*s = spiSlave{
		dev: s.dev,
		raw: spiPins{csn: true},
	}
	s.sync1 = s.raw
	s.sync2 = s.raw
}

// Tick implements Clocked.
func (s *spiSlave) Tick() {
	in := s.sync2
	s.sync2 = s.sync1
	s.sync1 = s.raw

	if in.csn {
		if s.nbits != 0 && s.nbits != spiFrameBits {
			log.ModBus.WarnZ("spi: aborted frame").
				Int("bits", s.nbits).
				End()
		}
		s.nbits = 0
		s.sclkPrev = in.sclk
		return
	}

	rising := in.sclk && !s.sclkPrev
	falling := !in.sclk && s.sclkPrev
	s.sclkPrev = in.sclk

	switch {
	case rising && s.nbits < spiFrameBits:
		s.shiftIn <<= 1
		if in.mosi {
			s.shiftIn |= 1
		}
		s.nbits++

		switch s.nbits {
		case spiCmdBits:
			cmd := uint8(s.shiftIn)
			s.write = cmd&spiWriteBit != 0
			s.addr = cmd & spiAddrMask
			if !s.write {
				s.shiftOut = s.dev.ReadReg(s.addr)
			}
		case spiFrameBits:
			if s.write {
				s.dev.WriteReg(s.addr, uint8(s.shiftIn))
			}
		}

	case falling && !s.write && s.nbits >= spiCmdBits && s.nbits < spiFrameBits:
		s.miso = s.shiftOut&0x80 != 0
		s.shiftOut <<= 1
	}
}

// SPI is a bit-banged serial binding. The master side drives the pins and
// runs the clock for half a SCLK period after each pin change, so each
// transaction takes (2*16+3) half periods.
type SPI struct {
	clk   *Clock
	half  uint64
	slave spiSlave
}

func NewSPI(dev Device, clk *Clock, halfPeriod uint64) (*SPI, error) {
	if halfPeriod < minSPIHalfPeriod {
		return nil, errors.Errorf("spi: half period must be at least %d cycles, got %d", minSPIHalfPeriod, halfPeriod)
	}

	b := &SPI{clk: clk, half: halfPeriod}
	b.slave.dev = dev
	b.slave.reset()
	clk.Attach(&b.slave)
	return b, nil
}

// Reset resets the device and brings the bus back to idle.
func (b *SPI) Reset() {
	b.slave.dev.Reset()
	b.slave.reset()
}

func (b *SPI) WriteReg(addr, val uint8) {
	if addr > spiAddrMask {
		b.drop(hwio.Fault{Kind: hwio.Unmapped, Bus: BusSPI, Addr: addr, Val: val, Write: true})
		return
	}
	b.transfer(uint16(spiWriteBit|addr)<<8 | uint16(val))
}

func (b *SPI) ReadReg(addr uint8) uint8 {
	if addr > spiAddrMask {
		b.drop(hwio.Fault{Kind: hwio.Unmapped, Bus: BusSPI, Addr: addr})
		return 0
	}
	return b.transfer(uint16(addr) << 8)
}

// drop handles an address the frame cannot encode. No frame is sent, so
// the clock doesn't advance.
func (b *SPI) drop(f hwio.Fault) {
	if fr, ok := b.slave.dev.(FaultRecorder); ok {
		fr.RecordFault(f)
		return
	}
	log.ModBus.WarnZ("spi: address out of frame range").
		Hex8("addr", f.Addr).
		Bool("write", f.Write).
		End()
}

func (b *SPI) transfer(frame uint16) uint8 {
	pins := &b.slave.raw

	pins.csn = false
	pins.sclk = false
	b.clk.Cycles(b.half)

	var data uint8
	for i := spiFrameBits - 1; i >= 0; i-- {
		pins.mosi = frame>>i&1 != 0
		pins.sclk = false
		b.clk.Cycles(b.half)
		pins.sclk = true
		b.clk.Cycles(b.half)

		if i < spiFrameBits-spiCmdBits {
			data <<= 1
			if b.slave.miso {
				data |= 1
			}
		}
	}

	pins.sclk = false
	b.clk.Cycles(b.half)
	pins.csn = true
	pins.mosi = false
	b.clk.Cycles(b.half)
	return data
}
