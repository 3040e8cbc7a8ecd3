package hwio

import (
	"fmt"

	"integrator/emu/log"
)

type RWFlags uint8

const (
	ReadWriteFlag RWFlags = 0
	ReadOnlyFlag  RWFlags = (1 << iota)
	WriteOnlyFlag
)

// Reg8 is a byte-wide register. Bits set in RoMask are preserved on write.
type Reg8 struct {
	Name       string
	Value      uint8
	ResetValue uint8
	RoMask     uint8

	Flags   RWFlags
	ReadCb  func(val uint8) uint8
	PeekCb  func(val uint8) uint8
	WriteCb func(old uint8, val uint8)
}

func (reg Reg8) String() string {
	s := fmt.Sprintf("%s{%02x", reg.Name, reg.Value)
	if reg.ReadCb != nil {
		s += ",r!"
	}
	if reg.PeekCb != nil {
		s += ",p!"
	}
	if reg.WriteCb != nil {
		s += ",w!"
	}
	return s + "}"
}

func (reg *Reg8) write(val uint8) {
	old := reg.Value
	reg.Value = (reg.Value & reg.RoMask) | (val &^ reg.RoMask)
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

// Write8CheckRO writes val unless the register is read-only, in which case it
// reports false and leaves the register untouched.
func (reg *Reg8) Write8CheckRO(addr uint8, val uint8) bool {
	if reg.Flags&ReadOnlyFlag != 0 {
		return false
	}
	reg.write(val)
	return true
}

func (reg *Reg8) Write8(addr uint8, val uint8) {
	if !reg.Write8CheckRO(addr, val) {
		log.ModHwIo.ErrorZ("invalid Write8 to readonly reg").
			String("name", reg.Name).
			Hex8("addr", addr).
			Hex8("val", val).
			End()
	}
}

func (reg *Reg8) Read8(addr uint8, peek bool) uint8 {
	if peek {
		return reg.Peek8(addr)
	}
	if reg.Flags&WriteOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Read8 from writeonly reg").
			String("name", reg.Name).
			Hex8("addr", addr).
			End()
		return 0
	}
	if reg.ReadCb != nil {
		return reg.ReadCb(reg.Value)
	}
	return reg.Value
}

// Peek8 returns the register value without side effects. Read callbacks are
// used as a fallback when no peek callback is set, they must therefore be
// side-effect free for such registers.
func (reg *Reg8) Peek8(addr uint8) uint8 {
	switch {
	case reg.PeekCb != nil:
		return reg.PeekCb(reg.Value)
	case reg.ReadCb != nil:
		return reg.ReadCb(reg.Value)
	}
	return reg.Value
}

func (reg *Reg8) Reset() {
	reg.Value = reg.ResetValue
}
