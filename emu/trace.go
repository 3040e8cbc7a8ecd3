package emu

import (
	"io"
	"sync"

	"github.com/go-faster/jx"

	"integrator/emu/log"
	"integrator/hw/hwdefs"
)

// Tracer writes bus transactions as newline-delimited JSON objects:
//
//	{"cycle":12,"bus":"mmio","op":"write","reg":"CTRL","addr":0,"val":3}
//
// A Tracer can be shared by concurrent sessions. A nil *Tracer discards
// everything.
type Tracer struct {
	mu  sync.Mutex
	w   io.Writer
	e   jx.Encoder
	err error
}

func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

func (t *Tracer) Reset(bus string, cycle uint64) {
	t.emit(bus, cycle, "reset", func(e *jx.Encoder) {})
}

func (t *Tracer) Clock(bus string, cycle, n uint64) {
	t.emit(bus, cycle, "clock", func(e *jx.Encoder) {
		e.FieldStart("cycles")
		e.Int64(int64(n))
	})
}

func (t *Tracer) Write(bus string, cycle uint64, addr, val uint8) {
	t.emit(bus, cycle, "write", regFields(addr, val))
}

func (t *Tracer) Read(bus string, cycle uint64, addr, val uint8) {
	t.emit(bus, cycle, "read", regFields(addr, val))
}

// Edge records the device state after a clock edge.
func (t *Tracer) Edge(bus string, cycle uint64, acc int16, status hwdefs.Status) {
	t.emit(bus, cycle, "edge", func(e *jx.Encoder) {
		e.FieldStart("acc")
		e.Int(int(acc))
		e.FieldStart("status")
		e.Str(status.String())
	})
}

func regFields(addr, val uint8) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.FieldStart("reg")
		e.Str(hwdefs.RegName(addr))
		e.FieldStart("addr")
		e.Int(int(addr))
		e.FieldStart("val")
		e.Int(int(val))
	}
}

func (t *Tracer) emit(bus string, cycle uint64, op string, fields func(e *jx.Encoder)) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}

	t.e.Reset()
	t.e.ObjStart()
	t.e.FieldStart("cycle")
	t.e.Int64(int64(cycle))
	t.e.FieldStart("bus")
	t.e.Str(bus)
	t.e.FieldStart("op")
	t.e.Str(op)
	fields(&t.e)
	t.e.ObjEnd()

	line := append(t.e.Bytes(), '\n')
	if _, t.err = t.w.Write(line); t.err != nil {
		log.ModEmu.ErrorZ("trace write failed, tracing disabled").
			Error("err", t.err).
			End()
	}
}
