package emu

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"integrator/emu/log"
	"integrator/hw/hwdefs"
	"integrator/hw/hwio"
)

var modVerify = log.NewModule("verify")

// A Check exercises one register-level property of the device. Each check
// starts by resetting the session.
type Check struct {
	Name string
	Desc string
	Run  func(s *Session) error
}

var Checks = []Check{
	{"reset", "all registers read zero after reset", checkReset},
	{"accumulate", "5 samples of +5 accumulate to 25", checkAccumulate},
	{"subtract", "a sample of -5 (0xFB) brings 25 down to 20", checkSubtract},
	{"threshold", "THRESH=15 with acc=20 sets STATUS bit 1", checkThreshold},
	{"idle", "the accumulator ignores INPUT while strobe is low", checkIdle},
	{"saturation", "+127 samples with saturation clamp at 32767 and set STATUS bit 0", checkSaturation},
	{"input-roundtrip", "every INPUT value reads back unchanged", checkInputRoundTrip},
}

// Result is the outcome of a check on a given bus binding.
type Result struct {
	Bus    string
	Check  string
	Cycles uint64
	Err    error
}

func (r Result) Passed() bool { return r.Err == nil }

// Verify runs all checks on each bus binding. Bindings run concurrently, each
// one in its own session. The returned error is only about setting up or
// cancelling the run, check failures are reported in the results.
func Verify(ctx context.Context, cfg Config, buses []string) ([]Result, error) {
	var tracer *Tracer
	if cfg.TraceOut != nil {
		tracer = NewTracer(cfg.TraceOut)
	}

	sessions := make([]*Session, len(buses))
	for i, kind := range buses {
		bcfg := cfg
		bcfg.Bus.Kind = kind
		bcfg.TraceOut = nil

		s, err := NewSession(bcfg)
		if err != nil {
			return nil, errors.Wrapf(err, "bus %s", kind)
		}
		s.Tracer = tracer
		sessions[i] = s
	}

	results := make([][]Result, len(buses))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range sessions {
		g.Go(func() error {
			for _, c := range Checks {
				if err := ctx.Err(); err != nil {
					return err
				}

				start := s.Clock.Cycle()
				err := c.Run(s)
				results[i] = append(results[i], Result{
					Bus:    s.BusKind(),
					Check:  c.Name,
					Cycles: s.Clock.Cycle() - start,
					Err:    err,
				})

				modVerify.InfoZ("check done").
					String("bus", s.BusKind()).
					String("check", c.Name).
					Bool("ok", err == nil).
					End()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(results...), nil
}

// sample latches in and pulses the strobe bit, with the extra CTRL bits in
// ctrl kept set.
func sample(s *Session, ctrl, in uint8) {
	hwio.SetBit8(&ctrl, hwdefs.CtrlEnable)
	hwio.SetBit8(&ctrl, hwdefs.CtrlStrobe)

	s.WriteReg(hwdefs.INPUT, in)
	s.WriteReg(hwdefs.CTRL, ctrl)
	s.ClockCycles(1)
	hwio.ClearBit8(&ctrl, hwdefs.CtrlStrobe)
	s.WriteReg(hwdefs.CTRL, ctrl)
}

// ReadAcc reads the accumulator through the bus.
func (s *Session) ReadAcc() int16 {
	lo := s.ReadReg(hwdefs.ACC_LOW)
	hi := s.ReadReg(hwdefs.ACC_HIGH)
	return int16(uint16(hi)<<8 | uint16(lo))
}

func wantAcc(s *Session, want int16) error {
	if got := s.ReadAcc(); got != want {
		return errors.Errorf("accumulator = %d, want %d", got, want)
	}
	return nil
}

func checkReset(s *Session) error {
	// Leave some state behind first.
	s.Reset()
	s.WriteReg(hwdefs.THRESH, 1)
	s.WriteReg(hwdefs.DECAYSHIFT, 4)
	sample(s, 0, 100)
	s.WriteReg(hwdefs.CTRL, 0x0B)

	s.Reset()
	for addr := uint8(0); addr < hwdefs.NumRegs; addr++ {
		if got := s.ReadReg(addr); got != 0 {
			return errors.Errorf("%s = %#02x after reset, want 0", hwdefs.RegName(addr), got)
		}
	}
	return nil
}

func accumulate(s *Session, n int, in uint8) {
	s.WriteReg(hwdefs.CTRL, 1<<hwdefs.CtrlEnable)
	for range n {
		s.WriteReg(hwdefs.CTRL, 0)
		s.ClockCycles(1)
		sample(s, 0, in)
		s.ClockCycles(1)
	}
}

func checkAccumulate(s *Session) error {
	s.Reset()
	accumulate(s, 5, 5)
	return wantAcc(s, 25)
}

func checkSubtract(s *Session) error {
	s.Reset()
	accumulate(s, 5, 5)
	sample(s, 0, 0xFB)
	return wantAcc(s, 20)
}

func checkThreshold(s *Session) error {
	s.Reset()
	accumulate(s, 5, 5)
	sample(s, 0, 0xFB)

	s.WriteReg(hwdefs.THRESH, 15)
	status := s.ReadReg(hwdefs.STATUS)
	if hwdefs.Status(status)&hwdefs.AboveThreshold == 0 {
		return errors.Errorf("STATUS = %#02x, threshold flag not set", status)
	}
	if hwdefs.Status(status)&hwdefs.Overflow != 0 {
		return errors.Errorf("STATUS = %#02x, unexpected overflow flag", status)
	}
	return nil
}

func checkIdle(s *Session) error {
	s.Reset()
	accumulate(s, 5, 5)

	for _, ctrl := range []uint8{0x00, 1 << hwdefs.CtrlEnable, 1<<hwdefs.CtrlEnable | 1<<hwdefs.CtrlSaturate} {
		s.WriteReg(hwdefs.CTRL, ctrl)
		for _, in := range []uint8{0x01, 0x7F, 0x80, 0xFF} {
			s.WriteReg(hwdefs.INPUT, in)
			s.ClockCycles(2)
		}
	}
	return wantAcc(s, 25)
}

func checkSaturation(s *Session) error {
	const sat = 1 << hwdefs.CtrlSaturate

	s.Reset()
	s.WriteReg(hwdefs.CTRL, sat|1<<hwdefs.CtrlEnable)
	for range 300 {
		sample(s, sat, 127)
	}

	status := s.ReadReg(hwdefs.STATUS)
	if hwdefs.Status(status)&hwdefs.Overflow == 0 {
		return errors.Errorf("STATUS = %#02x, overflow flag not set", status)
	}
	return wantAcc(s, 32767)
}

func checkInputRoundTrip(s *Session) error {
	s.Reset()
	for v := 0; v < 256; v++ {
		s.WriteReg(hwdefs.INPUT, uint8(v))
		if got := s.ReadReg(hwdefs.INPUT); got != uint8(v) {
			return errors.Errorf("INPUT: wrote %#02x, read %#02x", v, got)
		}
	}
	return wantAcc(s, 0)
}
