// Package hwdefs holds the register map of the integrator peripheral.
package hwdefs

import (
	"fmt"
	"strings"
)

// Register addresses.
const (
	CTRL       uint8 = 0x0
	STATUS     uint8 = 0x1
	INPUT      uint8 = 0x2
	ACC_LOW    uint8 = 0x3
	ACC_HIGH   uint8 = 0x4
	THRESH     uint8 = 0x5
	DECAYSHIFT uint8 = 0x6

	NumRegs = 7
)

var regNames = [NumRegs]string{
	"CTRL",
	"STATUS",
	"INPUT",
	"ACC_LOW",
	"ACC_HIGH",
	"THRESH",
	"DECAYSHIFT",
}

// RegName returns the name of the register at addr, or its hex address if
// nothing is mapped there.
func RegName(addr uint8) string {
	if int(addr) < NumRegs {
		return regNames[addr]
	}
	return fmt.Sprintf("$%02X", addr)
}

// RegByName looks up a register address by its (case-insensitive) name.
func RegByName(name string) (uint8, bool) {
	for i, s := range regNames {
		if strings.EqualFold(s, name) {
			return uint8(i), true
		}
	}
	return 0, false
}

// CTRL bit positions.
const (
	CtrlEnable   = 0
	CtrlStrobe   = 1
	CtrlSaturate = 3

	// CtrlReserved are the CTRL bits with no function, they read as zero.
	CtrlReserved uint8 = ^uint8(1<<CtrlEnable | 1<<CtrlStrobe | 1<<CtrlSaturate)
)

// Status is the content of the STATUS register.
type Status uint8

const (
	Overflow Status = 1 << iota
	AboveThreshold

	numStatusBits = 2
)

var statusNames = [numStatusBits]string{
	"ovf",
	"thr",
}

func (s Status) String() string {
	var names []string
	for i := range numStatusBits {
		if s&(1<<i) != 0 {
			names = append(names, statusNames[i])
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "|")
}
