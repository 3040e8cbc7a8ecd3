package emu

import (
	"github.com/go-faster/errors"

	"integrator/hw/hwio"
)

// Device is the register interface of a peripheral, as seen by a bus binding.
type Device interface {
	Reset()
	WriteReg(addr, val uint8)
	ReadReg(addr uint8) uint8
}

// FaultRecorder is implemented by devices that account for accesses a bus
// binding dropped before they reached the device.
type FaultRecorder interface {
	RecordFault(f hwio.Fault)
}

// Bus is a byte-addressable register bus. Every transaction advances the
// clock by the number of cycles the binding needs to carry it.
type Bus interface {
	// Reset asserts the reset line of the device and of the bus interface.
	Reset()
	WriteReg(addr, val uint8)
	ReadReg(addr uint8) uint8
}

// NewBus creates the bus binding described by cfg, clocked by clk.
func NewBus(cfg BusConfig, dev Device, clk *Clock) (Bus, error) {
	switch cfg.Kind {
	case BusMMIO:
		return NewMMIO(dev, clk), nil
	case BusSPI:
		spi, err := NewSPI(dev, clk, cfg.SPIHalfPeriod)
		if err != nil {
			return nil, err
		}
		return spi, nil
	}
	return nil, errors.Errorf("unknown bus %q", cfg.Kind)
}

// MMIO is a memory-mapped binding: the device sits on a CPU bus sharing its
// clock, each transaction takes effect immediately and lasts one cycle.
type MMIO struct {
	dev Device
	clk *Clock
}

func NewMMIO(dev Device, clk *Clock) *MMIO {
	return &MMIO{dev: dev, clk: clk}
}

func (b *MMIO) Reset() {
	b.dev.Reset()
}

func (b *MMIO) WriteReg(addr, val uint8) {
	b.dev.WriteReg(addr, val)
	b.clk.Cycles(1)
}

func (b *MMIO) ReadReg(addr uint8) uint8 {
	val := b.dev.ReadReg(addr)
	b.clk.Cycles(1)
	return val
}
