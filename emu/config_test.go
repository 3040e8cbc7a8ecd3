package emu_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"integrator/emu"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	writeFile := func(content string) string {
		path := filepath.Join(dir, "integrator.toml")
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	It("should have valid defaults", func() {
		cfg := emu.DefaultConfig()
		Expect(cfg.Check()).To(Succeed())
		Expect(cfg.Bus.Kind).To(Equal(emu.BusMMIO))
		Expect(cfg.Bus.SPIHalfPeriod).To(Equal(uint64(4)))
	})

	It("should keep defaults for missing settings", func() {
		cfg, err := emu.LoadConfig(writeFile(`
[bus]
kind = "spi"
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Bus.Kind).To(Equal(emu.BusSPI))
		Expect(cfg.Bus.SPIHalfPeriod).To(Equal(uint64(4)))
		Expect(cfg.Clock).To(Equal(emu.DefaultConfig().Clock))
	})

	It("should reject unknown keys", func() {
		_, err := emu.LoadConfig(writeFile(`
[bus]
kind = "mmio"
speed = 3
`))
		Expect(err).To(MatchError(ContainSubstring("unknown key")))
	})

	It("should reject invalid values", func() {
		_, err := emu.LoadConfig(writeFile(`
[bus]
kind = "spi"
spi_half_period = 1
`))
		Expect(err).To(MatchError(ContainSubstring("spi_half_period")))

		_, err = emu.LoadConfig(writeFile(`
[clock]
freq_mhz = 0.0
`))
		Expect(err).To(MatchError(ContainSubstring("freq_mhz")))
	})

	It("should fail on a missing file", func() {
		_, err := emu.LoadConfig(filepath.Join(dir, "nope.toml"))
		Expect(err).To(HaveOccurred())
	})

	It("should load what it saves", func() {
		cfg := emu.DefaultConfig()
		cfg.Clock.FreqMHz = 25
		cfg.Bus.Kind = emu.BusSPI
		cfg.Bus.SPIHalfPeriod = 7
		cfg.Log.Modules = []string{"bus", "integ"}

		path := filepath.Join(dir, "saved.toml")
		Expect(emu.SaveConfig(path, cfg)).To(Succeed())

		loaded, err := emu.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(cfg))
	})
})
