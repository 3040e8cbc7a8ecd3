package hw

import (
	"integrator/emu/log"
	"integrator/hw/hwdefs"
	"integrator/hw/hwio"
	"integrator/hw/snapshot"
)

// Integrator is the register-level model of the integrator peripheral: a
// 16-bit signed accumulator summing 8-bit samples, one per rising edge of the
// strobe bit, with optional saturation and a threshold comparator.
//
// All methods must be called from a single goroutine, the one driving the
// clock.
type Integrator struct {
	Bus *hwio.Table

	CTRL       hwio.Reg8 `hwio:"offset=0x0,rwmask=0xF4"`
	STATUS     hwio.Reg8 `hwio:"offset=0x1,readonly,rcb"`
	INPUT      hwio.Reg8 `hwio:"offset=0x2"`
	ACC_LOW    hwio.Reg8 `hwio:"offset=0x3,readonly,rcb"`
	ACC_HIGH   hwio.Reg8 `hwio:"offset=0x4,readonly,rcb"`
	THRESH     hwio.Reg8 `hwio:"offset=0x5,wcb"`
	DECAYSHIFT hwio.Reg8 `hwio:"offset=0x6,wcb"`

	acc        int16
	overflow   bool // saturation clamped since reset
	above      bool // |acc| > THRESH
	strobePrev bool

	stats Stats
}

// Stats holds counters about the device activity since the last reset.
type Stats struct {
	// Cycles is the number of clock edges seen.
	Cycles uint64
	// Samples is the number of samples added to the accumulator.
	Samples uint64
	// Clamps is the number of additions clamped by saturation.
	Clamps uint64
	// Wraps is the number of additions that wrapped around.
	Wraps uint64
	// ReadOnlyWrites counts writes to STATUS, ACC_LOW or ACC_HIGH.
	ReadOnlyWrites uint64
	// InvalidAccesses counts accesses outside of the register map.
	InvalidAccesses uint64
}

func NewIntegrator() *Integrator {
	d := &Integrator{}
	hwio.MustInitRegs(d)

	d.Bus = hwio.NewTable("integ")
	d.Bus.MapBank(0x00, d, 0)
	d.Bus.OnFault = d.onFault
	return d
}

// RecordFault accounts for an access that a bus binding could not deliver,
// such as an address its frame cannot encode.
func (d *Integrator) RecordFault(f hwio.Fault) {
	d.Bus.Report(f)
}

func (d *Integrator) onFault(f hwio.Fault) {
	switch f.Kind {
	case hwio.ReadOnlyWrite:
		d.stats.ReadOnlyWrites++
	case hwio.Unmapped:
		d.stats.InvalidAccesses++
	}
}

// Reset clears all registers and internal state, as when the reset line is
// asserted. It can be called at any time.
func (d *Integrator) Reset() {
	hwio.ResetRegs(d)
	d.acc = 0
	d.overflow = false
	d.above = false
	d.strobePrev = false
	d.stats = Stats{}

	log.ModInteg.DebugZ("reset").End()
}

// WriteReg writes val to the register at addr. Writes to computed registers
// and to unmapped addresses are dropped.
func (d *Integrator) WriteReg(addr, val uint8) {
	d.Bus.Write8(addr, val)
}

// ReadReg returns the value of the register at addr, or 0 for unmapped
// addresses.
func (d *Integrator) ReadReg(addr uint8) uint8 {
	return d.Bus.Read8(addr, false)
}

// PeekReg is like ReadReg, without fault accounting.
func (d *Integrator) PeekReg(addr uint8) uint8 {
	return d.Bus.Peek8(addr)
}

func (d *Integrator) enabled() bool  { return hwio.GetBit8(d.CTRL.Value, hwdefs.CtrlEnable) }
func (d *Integrator) strobe() bool   { return hwio.GetBit8(d.CTRL.Value, hwdefs.CtrlStrobe) }
func (d *Integrator) saturate() bool { return hwio.GetBit8(d.CTRL.Value, hwdefs.CtrlSaturate) }

// Tick advances the device by one clock edge.
func (d *Integrator) Tick() {
	d.stats.Cycles++

	strobe := d.strobe()
	if d.enabled() && strobe && !d.strobePrev {
		d.sample(int8(d.INPUT.Value))
	}
	d.strobePrev = strobe

	d.compare()
}

func (d *Integrator) compare() {
	d.above = abs(d.acc) > int32(d.THRESH.Value)
}

func (d *Integrator) sample(in int8) {
	d.stats.Samples++

	sum := int32(d.acc) + int32(in)
	switch {
	case sum >= -32768 && sum <= 32767:
		d.acc = int16(sum)
	case d.saturate():
		d.stats.Clamps++
		if sum > 0 {
			d.acc = 32767
		} else {
			d.acc = -32768
		}
		if !d.overflow {
			log.ModInteg.InfoZ("accumulator saturated").
				Int("sum", int(sum)).
				Int16("acc", d.acc).
				End()
		}
		d.overflow = true
	default:
		// Without saturation the accumulator wraps, STATUS is unchanged.
		d.stats.Wraps++
		d.acc = int16(sum)
		log.ModInteg.DebugZ("accumulator wrapped").
			Int("sum", int(sum)).
			Int16("acc", d.acc).
			End()
	}
}

func abs(v int16) int32 {
	if v < 0 {
		return -int32(v)
	}
	return int32(v)
}

// Acc returns the accumulator value.
func (d *Integrator) Acc() int16 { return d.acc }

// Status returns the STATUS register content.
func (d *Integrator) Status() hwdefs.Status {
	var s hwdefs.Status
	if d.overflow {
		s |= hwdefs.Overflow
	}
	if d.above {
		s |= hwdefs.AboveThreshold
	}
	return s
}

func (d *Integrator) Stats() Stats { return d.stats }

// STATUS
func (d *Integrator) ReadSTATUS(_ uint8) uint8 { return uint8(d.Status()) }

// ACC_LOW
func (d *Integrator) ReadACC_LOW(_ uint8) uint8 { return uint8(d.acc) }

// ACC_HIGH
func (d *Integrator) ReadACC_HIGH(_ uint8) uint8 { return uint8(uint16(d.acc) >> 8) }

// THRESH feeds the comparator directly, STATUS reflects a new threshold
// without waiting for an edge.
func (d *Integrator) WriteTHRESH(_, _ uint8) { d.compare() }

// DECAYSHIFT is stored and can be read back, but decay is not modelled: the
// accumulator only changes on samples.
func (d *Integrator) WriteDECAYSHIFT(old, val uint8) {
	if val != 0 && old != val {
		log.ModInteg.DebugZ("decay shift set, decay is not modelled").
			Hex8("shift", val).
			End()
	}
}

// Snapshot returns the current device state.
func (d *Integrator) Snapshot() *snapshot.Integrator {
	s := &snapshot.Integrator{
		Version:    snapshot.Version,
		Acc:        d.acc,
		Overflow:   d.overflow,
		Above:      d.above,
		StrobePrev: d.strobePrev,
		Cycles:     d.stats.Cycles,
	}
	for addr := range s.Regs {
		s.Regs[addr] = d.PeekReg(uint8(addr))
	}
	return s
}

// Restore loads a state previously returned by Snapshot. Computed registers
// are derived from the internal state, their value in s is ignored.
// Statistics other than the cycle count are reset.
func (d *Integrator) Restore(s *snapshot.Integrator) {
	hwio.ResetRegs(d)
	d.CTRL.Value = s.Regs[hwdefs.CTRL] &^ d.CTRL.RoMask
	d.INPUT.Value = s.Regs[hwdefs.INPUT]
	d.THRESH.Value = s.Regs[hwdefs.THRESH]
	d.DECAYSHIFT.Value = s.Regs[hwdefs.DECAYSHIFT]

	d.acc = s.Acc
	d.overflow = s.Overflow
	d.above = s.Above
	d.strobePrev = s.StrobePrev
	d.stats = Stats{Cycles: s.Cycles}
}
