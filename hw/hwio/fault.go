package hwio

import "fmt"

// FaultKind classifies an access the bus could not honor. None of them is
// fatal: the access is dropped (writes) or returns zero (reads).
type FaultKind uint8

const (
	// ReadOnlyWrite is a write to a register computed by the device.
	ReadOnlyWrite FaultKind = iota + 1
	// WriteOnlyRead is a read from a register that cannot be read back.
	WriteOnlyRead
	// Unmapped is an access to an address no register is mapped at.
	Unmapped
)

func (k FaultKind) String() string {
	switch k {
	case ReadOnlyWrite:
		return "ReadOnlyRegisterWrite"
	case WriteOnlyRead:
		return "WriteOnlyRegisterRead"
	case Unmapped:
		return "InvalidAddress"
	}
	return fmt.Sprintf("FaultKind(%d)", uint8(k))
}

// Fault describes a dropped bus access.
type Fault struct {
	Kind  FaultKind
	Bus   string
	Addr  uint8
	Val   uint8 // written value, zero for reads
	Write bool
}

func (f Fault) Error() string {
	op := "read"
	if f.Write {
		op = "write"
	}
	return fmt.Sprintf("%s: %s %s at %02X", f.Bus, f.Kind, op, f.Addr)
}
