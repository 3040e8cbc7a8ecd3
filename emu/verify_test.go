package emu_test

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"integrator/emu"
)

var _ = Describe("Verify", func() {
	It("should pass every check on every bus", func() {
		results, err := emu.Verify(context.Background(), emu.DefaultConfig(), emu.BusKinds)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(len(emu.Checks) * len(emu.BusKinds)))

		for _, r := range results {
			Expect(r.Err).NotTo(HaveOccurred(), "%s on %s", r.Check, r.Bus)
			Expect(r.Passed()).To(BeTrue())
			Expect(r.Cycles).To(BeNumerically(">", 0))
		}
	})

	It("should keep results grouped by bus in check order", func() {
		results, err := emu.Verify(context.Background(), emu.DefaultConfig(), []string{emu.BusSPI, emu.BusMMIO})
		Expect(err).NotTo(HaveOccurred())

		n := len(emu.Checks)
		for i, r := range results {
			Expect(r.Check).To(Equal(emu.Checks[i%n].Name))
			if i < n {
				Expect(r.Bus).To(Equal(emu.BusSPI))
			} else {
				Expect(r.Bus).To(Equal(emu.BusMMIO))
			}
		}
	})

	It("should share the trace output between buses", func() {
		var buf bytes.Buffer
		cfg := emu.DefaultConfig()
		cfg.TraceOut = &buf

		_, err := emu.Verify(context.Background(), cfg, emu.BusKinds)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring(`"bus":"mmio"`))
		Expect(buf.String()).To(ContainSubstring(`"bus":"spi"`))
	})

	It("should stop when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := emu.Verify(ctx, emu.DefaultConfig(), emu.BusKinds)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("should reject unknown buses", func() {
		_, err := emu.Verify(context.Background(), emu.DefaultConfig(), []string{"i2c"})
		Expect(err).To(MatchError(ContainSubstring("bus i2c")))
	})
})
