package emu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// regFile is a bare register file recording the edge at which writes land.
type regFile struct {
	clk    *Clock
	regs   [128]uint8
	writes int
	wedge  uint64
}

func (r *regFile) Reset() { r.regs = [128]uint8{} }

func (r *regFile) WriteReg(addr, val uint8) {
	r.regs[addr] = val
	r.writes++
	// Called during an edge, before the clock counts it.
	r.wedge = r.clk.Cycle() + 1
}

func (r *regFile) ReadReg(addr uint8) uint8 { return r.regs[addr] }

var _ = Describe("SPI slave", func() {
	const half = 8

	var (
		clk  *Clock
		regs *regFile
		spi  *SPI
		pins *spiPins
	)

	// shift drives the first n bits of frame, MSB first, and returns the
	// cycle at which the last rising edge was driven.
	shift := func(frame uint16, n int) uint64 {
		var lastRise uint64
		for i := spiFrameBits - 1; i >= spiFrameBits-n; i-- {
			pins.mosi = frame>>i&1 != 0
			pins.sclk = false
			clk.Cycles(half)
			pins.sclk = true
			lastRise = clk.Cycle()
			clk.Cycles(half)
		}
		return lastRise
	}

	BeforeEach(func() {
		clk = NewClock("SPI", 10)
		regs = &regFile{clk: clk}
		var err error
		spi, err = NewSPI(regs, clk, half)
		Expect(err).NotTo(HaveOccurred())
		pins = &spi.slave.raw
	})

	It("should reject too short half periods", func() {
		_, err := NewSPI(regs, clk, 1)
		Expect(err).To(HaveOccurred())
	})

	It("should commit a write three edges after the last rising edge", func() {
		pins.csn = false
		clk.Cycles(half)
		rise := shift(0x85A5, 16)

		Expect(regs.writes).To(Equal(1))
		Expect(regs.regs[5]).To(Equal(uint8(0xA5)))
		Expect(regs.wedge - rise).To(Equal(uint64(3)))
	})

	It("should update MISO three edges after a falling edge", func() {
		regs.regs[3] = 0x80
		pins.csn = false
		clk.Cycles(half)
		shift(0x0300, 8)

		Expect(spi.slave.miso).To(BeFalse())
		pins.sclk = false
		edges := 0
		for !spi.slave.miso && edges < 10 {
			clk.Cycles(1)
			edges++
		}
		Expect(edges).To(Equal(3))
	})

	It("should drop a frame aborted by CS_N", func() {
		pins.csn = false
		clk.Cycles(half)
		shift(0x85A5, 12)
		pins.sclk = false
		pins.csn = true
		clk.Cycles(4 * half)

		pins.csn = false
		clk.Cycles(half)
		shift(0x8611, 16)
		pins.sclk = false
		pins.csn = true
		clk.Cycles(2 * half)

		Expect(regs.writes).To(Equal(1))
		Expect(regs.regs[5]).To(Equal(uint8(0)))
		Expect(regs.regs[6]).To(Equal(uint8(0x11)))
	})

	It("should carry full transactions", func() {
		for v := 0; v < 256; v += 17 {
			spi.WriteReg(0x7F, uint8(v))
			Expect(spi.ReadReg(0x7F)).To(Equal(uint8(v)))
		}
		Expect(clk.Cycle()).To(Equal(uint64(2 * 16 * 35 * half)))
	})
})
