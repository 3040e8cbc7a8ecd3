package hwio

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// regOpts holds the options parsed from a "hwio" struct tag.
type regOpts struct {
	offset int // -1 if not part of a bank
	bank   int
	reset  uint8
	rwmask uint8
	flags  RWFlags

	rcb, wcb, pcb string // callback method names
}

func parseTag(name, tag string) (regOpts, error) {
	opts := regOpts{offset: -1}
	for _, opt := range strings.Split(tag, ",") {
		key, val, hasVal := strings.Cut(strings.TrimSpace(opt), "=")
		switch key {
		case "":
		case "offset":
			n, err := strconv.ParseUint(val, 0, 8)
			if err != nil {
				return opts, fmt.Errorf("invalid offset %q: %v", val, err)
			}
			opts.offset = int(n)
		case "bank":
			n, err := strconv.ParseUint(val, 0, 8)
			if err != nil {
				return opts, fmt.Errorf("invalid bank %q: %v", val, err)
			}
			opts.bank = int(n)
		case "reset":
			n, err := strconv.ParseUint(val, 0, 8)
			if err != nil {
				return opts, fmt.Errorf("invalid reset value %q: %v", val, err)
			}
			opts.reset = uint8(n)
		case "rwmask":
			n, err := strconv.ParseUint(val, 0, 8)
			if err != nil {
				return opts, fmt.Errorf("invalid rwmask %q: %v", val, err)
			}
			opts.rwmask = uint8(n)
		case "readonly":
			opts.flags |= ReadOnlyFlag
		case "writeonly":
			opts.flags |= WriteOnlyFlag
		case "rcb":
			opts.rcb = cbName(hasVal, val, "Read", name)
		case "wcb":
			opts.wcb = cbName(hasVal, val, "Write", name)
		case "pcb":
			opts.pcb = cbName(hasVal, val, "Peek", name)
		default:
			return opts, fmt.Errorf("unknown option %q", key)
		}
	}
	if opts.flags&ReadOnlyFlag != 0 && opts.flags&WriteOnlyFlag != 0 {
		return opts, fmt.Errorf("readonly and writeonly are mutually exclusive")
	}
	return opts, nil
}

// cbName returns the explicit callback name if any, or the default one which
// is prefix followed by the upper-cased field name (ReadSTATUS, WriteCTRL...).
func cbName(explicit bool, val, prefix, field string) string {
	if explicit {
		return val
	}
	return prefix + strings.ToUpper(field)
}

// walkRegs calls fn for each Reg8 field of the struct pointed to by data
// carrying a "hwio" tag.
func walkRegs(data any, fn func(name string, reg *Reg8, opts regOpts) error) error {
	pval := reflect.ValueOf(data)
	if pval.Kind() != reflect.Pointer || pval.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("hwio: want pointer to struct, got %T", data)
	}

	sval := pval.Elem()
	styp := sval.Type()
	for i := 0; i < styp.NumField(); i++ {
		field := styp.Field(i)
		tag, ok := field.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		if !field.IsExported() {
			return fmt.Errorf("hwio: %s.%s: tagged field must be exported", styp.Name(), field.Name)
		}

		opts, err := parseTag(field.Name, tag)
		if err != nil {
			return fmt.Errorf("hwio: %s.%s: %v", styp.Name(), field.Name, err)
		}

		reg, ok := sval.Field(i).Addr().Interface().(*Reg8)
		if !ok {
			return fmt.Errorf("hwio: %s.%s: unsupported register type %s", styp.Name(), field.Name, field.Type)
		}
		if err := fn(field.Name, reg, opts); err != nil {
			return fmt.Errorf("hwio: %s.%s: %v", styp.Name(), field.Name, err)
		}
	}
	return nil
}

// InitRegs initializes all registers of a register bank, that is a structure
// containing Reg8 fields. For this function to work, registers must have a
// struct tag "hwio", containing the following fields:
//
//	offset=0x12     Byte-offset within the register bank at which this
//	                register is mapped. If missing, the register is
//	                initialized but never mapped by Table.MapBank.
//
//	bank=NN         Ordinal bank number (default to zero).
//
//	reset=0x12      Value of the register at reset (default to zero).
//
//	rwmask=0x80     Bits that writes cannot modify.
//
//	readonly        The register rejects writes.
//
//	writeonly       The register reads as zero.
//
//	rcb, wcb, pcb   Read, write and peek callbacks. Without a value the
//	                method named Read/Write/Peek followed by the upper-cased
//	                field name is used, otherwise the given method name.
//
// Read and peek callbacks have signature func(val uint8) uint8, write
// callbacks func(old, val uint8).
func InitRegs(data any) error {
	pval := reflect.ValueOf(data)
	return walkRegs(data, func(name string, reg *Reg8, opts regOpts) error {
		*reg = Reg8{
			Name:       name,
			Value:      opts.reset,
			ResetValue: opts.reset,
			RoMask:     opts.rwmask,
			Flags:      opts.flags,
		}

		if opts.rcb != "" {
			cb, err := method[func(uint8) uint8](pval, opts.rcb)
			if err != nil {
				return err
			}
			reg.ReadCb = cb
		}
		if opts.pcb != "" {
			cb, err := method[func(uint8) uint8](pval, opts.pcb)
			if err != nil {
				return err
			}
			reg.PeekCb = cb
		}
		if opts.wcb != "" {
			cb, err := method[func(uint8, uint8)](pval, opts.wcb)
			if err != nil {
				return err
			}
			reg.WriteCb = cb
		}
		return nil
	})
}

// MustInitRegs is like InitRegs but panics on error.
func MustInitRegs(data any) {
	if err := InitRegs(data); err != nil {
		panic(err)
	}
}

// ResetRegs sets all registers of a bank back to their reset value. Write
// callbacks are not invoked.
func ResetRegs(data any) {
	err := walkRegs(data, func(_ string, reg *Reg8, _ regOpts) error {
		reg.Reset()
		return nil
	})
	if err != nil {
		panic(err)
	}
}

func method[F any](pval reflect.Value, name string) (F, error) {
	var fn F
	m := pval.MethodByName(name)
	if !m.IsValid() {
		return fn, fmt.Errorf("missing method %s", name)
	}
	fn, ok := m.Interface().(F)
	if !ok {
		return fn, fmt.Errorf("method %s has type %s, want %T", name, m.Type(), fn)
	}
	return fn, nil
}

type bankReg struct {
	reg    *Reg8
	offset uint8
}

func bankGetRegs(bank any, bankNum int) ([]bankReg, error) {
	var regs []bankReg
	err := walkRegs(bank, func(_ string, reg *Reg8, opts regOpts) error {
		if opts.offset < 0 || opts.bank != bankNum {
			return nil
		}
		regs = append(regs, bankReg{reg: reg, offset: uint8(opts.offset)})
		return nil
	})
	return regs, err
}
