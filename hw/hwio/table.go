package hwio

import (
	"fmt"

	"integrator/emu/log"
)

type BankIO8 interface {
	// Read8 reads a byte from the given address. If peek is true, the read
	// shouldn't have any side effects (debugging/tracing).
	Read8(addr uint8, peek bool) uint8
	Write8(addr uint8, val uint8)
}

// Table decodes an 8-bit address space into registers.
type Table struct {
	Name string

	// OnFault, if set, is called for every access that was dropped.
	OnFault func(Fault)

	table8 [256]BankIO8
}

func NewTable(name string) *Table {
	t := new(Table)
	t.Name = name
	t.Reset()
	return t
}

// Reset unmaps everything.
func (t *Table) Reset() {
	t.table8 = [256]BankIO8{}
}

// MapBank maps all registers of a register bank (see InitRegs) with the given
// bank number, at addr plus their offset.
func (t *Table) MapBank(addr uint8, bank any, bankNum int) {
	regs, err := bankGetRegs(bank, bankNum)
	if err != nil {
		panic(err)
	}

	for _, reg := range regs {
		t.MapReg8(addr+reg.offset, reg.reg)
	}
}

func (t *Table) MapReg8(addr uint8, reg *Reg8) {
	if t.table8[addr] != nil {
		panic(fmt.Errorf("%s: address %02X already mapped", t.Name, addr))
	}

	log.ModHwIo.DebugZ("mapping reg").
		Hex8("addr", addr).
		String("reg", reg.Name).
		String("bus", t.Name).
		End()

	t.table8[addr] = reg
}

// Report logs a dropped access and forwards it to OnFault. The table
// reports its own faults, bus bindings use it for accesses they cannot carry.
func (t *Table) Report(f Fault) {
	if f.Bus == "" {
		f.Bus = t.Name
	}
	log.ModHwIo.WarnZ("dropped bus access").
		Stringer("fault", f.Kind).
		String("bus", f.Bus).
		Hex8("addr", f.Addr).
		Hex8("val", f.Val).
		End()
	if t.OnFault != nil {
		t.OnFault(f)
	}
}

// Read8 searches in the table for the register mapped at the given address and
// forward the read to it. Reads of unmapped addresses return 0 and, unless
// peek is true, are reported as faults.
func (t *Table) Read8(addr uint8, peek bool) uint8 {
	io := t.table8[addr]
	if io == nil {
		if !peek {
			t.Report(Fault{Kind: Unmapped, Addr: addr})
		}
		return 0
	}
	if reg, ok := io.(*Reg8); ok && !peek && reg.Flags&WriteOnlyFlag != 0 {
		t.Report(Fault{Kind: WriteOnlyRead, Addr: addr})
		return 0
	}
	return io.Read8(addr, peek)
}

// Peek8 is a convenience function.
func (t *Table) Peek8(addr uint8) uint8 {
	return t.Read8(addr, true)
}

func (t *Table) Write8(addr uint8, val uint8) {
	io := t.table8[addr]
	if io == nil {
		t.Report(Fault{Kind: Unmapped, Addr: addr, Val: val, Write: true})
		return
	}
	if reg, ok := io.(*Reg8); ok {
		if !reg.Write8CheckRO(addr, val) {
			t.Report(Fault{Kind: ReadOnlyWrite, Addr: addr, Val: val, Write: true})
		}
		return
	}
	io.Write8(addr, val)
}
