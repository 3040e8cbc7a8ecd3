package emu

import (
	"sync/atomic"

	"github.com/sarchlab/akita/v4/sim"

	"integrator/emu/log"
)

// Clocked is implemented by everything that samples the clock.
type Clocked interface {
	Tick()
}

// HookPosClockEdge is the hook position invoked after every clock edge. The
// hook item is the cycle number (uint64).
var HookPosClockEdge = &sim.HookPos{Name: "ClockEdge"}

// Clock is the single clock domain of a session. It is an akita ticking
// component running on its own serial engine: each tick event is one edge,
// delivered to the attached components in attachment order.
type Clock struct {
	*sim.TickingComponent

	engine    sim.Engine
	attached  []Clocked
	remaining uint64
	cycle     atomic.Uint64
}

// NewClock creates a clock running at freqMHz. name must be a valid akita
// component name, that is CamelCase without separators.
func NewClock(name string, freqMHz float64) *Clock {
	engine := sim.NewSerialEngine()
	c := &Clock{engine: engine}
	c.TickingComponent = sim.NewTickingComponent(name, engine, sim.Freq(freqMHz)*sim.MHz, c)
	return c
}

// Attach adds a component to the clock domain.
func (c *Clock) Attach(d Clocked) {
	c.attached = append(c.attached, d)
}

// Tick implements sim.Ticker.
func (c *Clock) Tick() bool {
	if c.remaining == 0 {
		return false
	}

	for _, d := range c.attached {
		d.Tick()
	}
	c.remaining--
	cycle := c.cycle.Add(1)

	if c.NumHooks() > 0 {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosClockEdge,
			Item:   cycle,
		})
	}
	return c.remaining > 0
}

// Cycles runs the clock for n edges.
func (c *Clock) Cycles(n uint64) {
	if n == 0 {
		return
	}

	c.remaining = n
	c.TickLater()
	if err := c.engine.Run(); err != nil {
		// The ticking component never returns an error.
		panic(err)
	}
	if c.remaining != 0 {
		log.ModClock.ErrorZ("engine stopped early").
			Uint64("remaining", c.remaining).
			End()
		c.remaining = 0
	}
}

// Cycle returns the number of edges since the clock was created.
func (c *Clock) Cycle() uint64 {
	return c.cycle.Load()
}

// Now returns the simulated time, in seconds.
func (c *Clock) Now() float64 {
	return float64(c.engine.CurrentTime())
}

// AddLogContext implements log.LogContextAdder.
func (c *Clock) AddLogContext(z *log.EntryZ) {
	z.Uint64("cycle", c.Cycle())
}
