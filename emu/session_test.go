package emu_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"integrator/emu"
	"integrator/hw/hwdefs"
)

var _ = Describe("Session", func() {
	for _, kind := range emu.BusKinds {
		Context("on "+kind, func() {
			var s *emu.Session

			BeforeEach(func() {
				cfg := emu.DefaultConfig()
				cfg.Bus.Kind = kind
				var err error
				s, err = emu.NewSession(cfg)
				Expect(err).NotTo(HaveOccurred())
				s.Reset()
			})

			It("should report its bus", func() {
				Expect(s.BusKind()).To(Equal(kind))
			})

			It("should read all registers as zero after reset", func() {
				for addr := uint8(0); addr < hwdefs.NumRegs; addr++ {
					Expect(s.ReadReg(addr)).To(BeZero(), hwdefs.RegName(addr))
				}
			})

			It("should accumulate strobed samples", func() {
				s.WriteReg(hwdefs.INPUT, 5)
				for range 5 {
					s.WriteReg(hwdefs.CTRL, 0x03)
					s.WriteReg(hwdefs.CTRL, 0x01)
				}
				Expect(s.ReadAcc()).To(Equal(int16(25)))

				s.WriteReg(hwdefs.INPUT, 0xFB)
				s.WriteReg(hwdefs.CTRL, 0x03)
				s.WriteReg(hwdefs.CTRL, 0x01)
				Expect(s.ReadAcc()).To(Equal(int16(20)))

				s.WriteReg(hwdefs.THRESH, 15)
				Expect(s.ReadReg(hwdefs.STATUS)).To(Equal(uint8(hwdefs.AboveThreshold)))
			})

			It("should ignore INPUT without a strobe edge", func() {
				s.WriteReg(hwdefs.CTRL, 0x01)
				for v := 0; v < 256; v += 5 {
					s.WriteReg(hwdefs.INPUT, uint8(v))
					s.ClockCycles(3)
				}
				Expect(s.ReadAcc()).To(BeZero())
				Expect(s.Device.Stats().Samples).To(BeZero())
			})

			It("should drop writes to computed registers", func() {
				s.WriteReg(hwdefs.ACC_LOW, 0x12)
				s.WriteReg(hwdefs.STATUS, 0xFF)
				Expect(s.ReadAcc()).To(BeZero())
				Expect(s.ReadReg(hwdefs.STATUS)).To(BeZero())
				Expect(s.Device.Stats().ReadOnlyWrites).To(Equal(uint64(2)))
			})

			It("should snapshot the device", func() {
				s.WriteReg(hwdefs.THRESH, 42)
				snap := s.Snapshot()
				Expect(snap.Regs[hwdefs.THRESH]).To(Equal(uint8(42)))
				Expect(snap.Cycles).To(Equal(s.Clock.Cycle()))
			})
		})
	}

	It("should create a session for every bus", func() {
		for _, kind := range emu.BusKinds {
			cfg := emu.DefaultConfig()
			cfg.Bus.Kind = kind
			s, err := emu.NewSession(cfg)
			Expect(err).NotTo(HaveOccurred(), kind)
			Expect(s.Clock.Name()).To(Equal(strings.ToUpper(kind) + "Clock"))
			s.Reset()
			Expect(s.Clock.Cycle()).To(Equal(cfg.Clock.ResetCycles))
		}
	})

	It("should not alias SPI addresses beyond the frame range", func() {
		cfg := emu.DefaultConfig()
		cfg.Bus.Kind = emu.BusSPI
		s, err := emu.NewSession(cfg)
		Expect(err).NotTo(HaveOccurred())
		s.Reset()

		s.WriteReg(hwdefs.THRESH, 0x33)
		for addr := 0x80; addr <= 0xFF; addr++ {
			s.WriteReg(uint8(addr), 0x55)
			Expect(s.ReadReg(uint8(addr))).To(BeZero())
		}

		for addr := uint8(0); addr < hwdefs.NumRegs; addr++ {
			if addr != hwdefs.THRESH {
				Expect(s.ReadReg(addr)).To(BeZero(), hwdefs.RegName(addr))
			}
		}
		Expect(s.ReadReg(hwdefs.THRESH)).To(Equal(uint8(0x33)))
		Expect(s.Device.Stats().InvalidAccesses).To(Equal(uint64(2 * 128)))
	})

	It("should trace the device state on every edge", func() {
		var buf bytes.Buffer
		cfg := emu.DefaultConfig()
		cfg.TraceOut = &buf
		s, err := emu.NewSession(cfg)
		Expect(err).NotTo(HaveOccurred())
		s.TraceEdges()

		s.ClockCycles(3)
		Expect(strings.Count(buf.String(), `"op":"edge"`)).To(Equal(3))
		Expect(buf.String()).To(ContainSubstring(`{"cycle":3,"bus":"mmio","op":"edge","acc":0,"status":"-"}`))
	})

	It("should restore a snapshot", func() {
		s, err := emu.NewSession(emu.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		s.Reset()
		s.WriteReg(hwdefs.INPUT, 9)
		s.WriteReg(hwdefs.CTRL, 0x03)
		snap := s.Snapshot()

		other, err := emu.NewSession(emu.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		other.Reset()
		other.Restore(snap)
		Expect(other.ReadAcc()).To(Equal(int16(9)))
		Expect(other.ReadReg(hwdefs.CTRL)).To(Equal(uint8(0x03)))
	})

	It("should charge one cycle per MMIO transaction", func() {
		s, err := emu.NewSession(emu.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		s.WriteReg(hwdefs.INPUT, 1)
		s.ReadReg(hwdefs.INPUT)
		Expect(s.Clock.Cycle()).To(Equal(uint64(2)))
	})

	It("should charge 35 half periods per SPI transaction", func() {
		cfg := emu.DefaultConfig()
		cfg.Bus.Kind = emu.BusSPI
		cfg.Bus.SPIHalfPeriod = 6
		s, err := emu.NewSession(cfg)
		Expect(err).NotTo(HaveOccurred())

		s.WriteReg(hwdefs.INPUT, 1)
		Expect(s.Clock.Cycle()).To(Equal(uint64(35 * 6)))
		Expect(s.ReadReg(hwdefs.INPUT)).To(Equal(uint8(1)))
		Expect(s.Clock.Cycle()).To(Equal(uint64(2 * 35 * 6)))
	})

	It("should reject an invalid configuration", func() {
		cfg := emu.DefaultConfig()
		cfg.Bus.Kind = "i2c"
		_, err := emu.NewSession(cfg)
		Expect(err).To(MatchError(ContainSubstring(`unknown bus "i2c"`)))
	})
})
