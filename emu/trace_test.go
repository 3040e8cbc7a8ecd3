package emu_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"integrator/emu"
	"integrator/hw/hwdefs"
)

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

var _ = Describe("Tracer", func() {
	It("should write one JSON object per transaction", func() {
		var buf bytes.Buffer
		cfg := emu.DefaultConfig()
		cfg.TraceOut = &buf
		s, err := emu.NewSession(cfg)
		Expect(err).NotTo(HaveOccurred())

		s.Reset()
		s.WriteReg(hwdefs.CTRL, 3)
		s.ReadReg(hwdefs.INPUT)
		s.ClockCycles(2)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(Equal([]string{
			`{"cycle":0,"bus":"mmio","op":"reset"}`,
			`{"cycle":5,"bus":"mmio","op":"write","reg":"CTRL","addr":0,"val":3}`,
			`{"cycle":6,"bus":"mmio","op":"read","reg":"INPUT","addr":2,"val":0}`,
			`{"cycle":7,"bus":"mmio","op":"clock","cycles":2}`,
		}))
	})

	It("should stop tracing after a write error", func() {
		w := &failingWriter{}
		t := emu.NewTracer(w)
		t.Reset("mmio", 0)
		t.Write("mmio", 1, 0, 1)
		t.Clock("mmio", 2, 10)
		Expect(w.calls).To(Equal(1))
	})

	It("should accept a nil tracer", func() {
		var t *emu.Tracer
		Expect(func() { t.Read("spi", 0, 0, 0) }).NotTo(Panic())
	})
})
