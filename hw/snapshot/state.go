// Package snapshot serializes the volatile state of the integrator to JSON.
package snapshot

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"integrator/hw/hwdefs"
)

const Version = 1

// Integrator is the complete state of the device: register contents plus the
// internal latches that are not visible on the bus.
type Integrator struct {
	Version int

	// Regs holds the stored value of every register. For computed
	// registers (STATUS, ACC_LOW, ACC_HIGH) it is the value they read as.
	Regs [hwdefs.NumRegs]uint8

	Acc        int16
	Overflow   bool
	Above      bool
	StrobePrev bool

	Cycles uint64
}

// Encode writes the state as a JSON object.
func (s *Integrator) Encode(e *jx.Encoder) {
	e.ObjStart()

	e.FieldStart("version")
	e.Int(s.Version)

	e.FieldStart("regs")
	e.ObjStart()
	for addr, val := range s.Regs {
		e.FieldStart(hwdefs.RegName(uint8(addr)))
		e.Int(int(val))
	}
	e.ObjEnd()

	e.FieldStart("acc")
	e.Int(int(s.Acc))
	e.FieldStart("overflow")
	e.Bool(s.Overflow)
	e.FieldStart("above")
	e.Bool(s.Above)
	e.FieldStart("strobe_prev")
	e.Bool(s.StrobePrev)
	e.FieldStart("cycles")
	e.Int64(int64(s.Cycles))

	e.ObjEnd()
}

// Decode reads a JSON object written by Encode. Unknown fields are skipped.
func (s *Integrator) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			v, err := d.Int()
			if err != nil {
				return err
			}
			if v != Version {
				return errors.Errorf("unsupported snapshot version %d", v)
			}
			s.Version = v
		case "regs":
			return d.Obj(func(d *jx.Decoder, name string) error {
				addr, ok := hwdefs.RegByName(name)
				if !ok {
					return errors.Errorf("unknown register %q", name)
				}
				v, err := d.Int()
				if err != nil {
					return err
				}
				if v < 0 || v > 0xFF {
					return errors.Errorf("register %s: value %d out of range", name, v)
				}
				s.Regs[addr] = uint8(v)
				return nil
			})
		case "acc":
			v, err := d.Int()
			if err != nil {
				return err
			}
			if v < -32768 || v > 32767 {
				return errors.Errorf("accumulator %d out of range", v)
			}
			s.Acc = int16(v)
		case "overflow":
			v, err := d.Bool()
			if err != nil {
				return err
			}
			s.Overflow = v
		case "above":
			v, err := d.Bool()
			if err != nil {
				return err
			}
			s.Above = v
		case "strobe_prev":
			v, err := d.Bool()
			if err != nil {
				return err
			}
			s.StrobePrev = v
		case "cycles":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			if v < 0 {
				return errors.Errorf("negative cycle count %d", v)
			}
			s.Cycles = uint64(v)
		default:
			return d.Skip()
		}
		return nil
	})
}

func (s *Integrator) Marshal() []byte {
	var e jx.Encoder
	s.Encode(&e)
	return e.Bytes()
}

func (s *Integrator) Unmarshal(data []byte) error {
	*s = Integrator{}
	if err := s.Decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrap(err, "decode snapshot")
	}
	if s.Version == 0 {
		return errors.New("decode snapshot: missing version")
	}
	return nil
}
