package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"integrator/emu"
)

type tickCounter struct{ n int }

func (t *tickCounter) Tick() { t.n++ }

type edgeHook struct {
	calls int
	last  uint64
}

func (h *edgeHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != emu.HookPosClockEdge {
		return
	}
	h.calls++
	h.last = ctx.Item.(uint64)
}

var _ = Describe("Clock", func() {
	var (
		clk *emu.Clock
		a   *tickCounter
		b   *tickCounter
	)

	BeforeEach(func() {
		clk = emu.NewClock("Clk", 10)
		a = &tickCounter{}
		b = &tickCounter{}
		clk.Attach(a)
		clk.Attach(b)
	})

	It("should start at cycle 0", func() {
		Expect(clk.Cycle()).To(Equal(uint64(0)))
	})

	It("should tick every attached component once per cycle", func() {
		clk.Cycles(5)
		Expect(a.n).To(Equal(5))
		Expect(b.n).To(Equal(5))
		Expect(clk.Cycle()).To(Equal(uint64(5)))
	})

	It("should accumulate cycles across runs", func() {
		clk.Cycles(3)
		clk.Cycles(1)
		clk.Cycles(0)
		clk.Cycles(7)
		Expect(a.n).To(Equal(11))
		Expect(clk.Cycle()).To(Equal(uint64(11)))
	})

	It("should advance simulated time at a constant rate", func() {
		clk.Cycles(10)
		t1 := clk.Now()
		clk.Cycles(10)
		t2 := clk.Now()
		clk.Cycles(20)
		t3 := clk.Now()

		Expect(t2).To(BeNumerically(">", t1))
		Expect(t3 - t2).To(BeNumerically("~", 2*(t2-t1), (t2-t1)/100))
	})

	It("should invoke hooks on every edge", func() {
		h := &edgeHook{}
		clk.AcceptHook(h)
		clk.Cycles(4)
		Expect(h.calls).To(Equal(4))
		Expect(h.last).To(Equal(uint64(4)))
	})
})
