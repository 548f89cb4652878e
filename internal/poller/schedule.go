package poller

import (
	"sort"
	"time"

	"github.com/calder-systems/terminal-core/internal/plant"
)

// maxBatchWords caps how many registers one coalesced block read may span.
// Modbus allows up to 125 registers per read; staying well under keeps
// individual transactions short on slow serial links.
const maxBatchWords = 64

// schedule tracks when each enabled register of one device is next due.
// Not safe for concurrent use; owned by a single poller goroutine.
type schedule struct {
	tasks map[uint16]*task // keyed by register address
}

type task struct {
	reg plant.Register
	due time.Time
}

// newSchedule builds the worklist from a device's register map. Disabled
// registers are excluded. Every register is immediately due so the first
// poll cycle populates the cache.
func newSchedule(regs []plant.Register, now time.Time) *schedule {
	s := &schedule{tasks: make(map[uint16]*task, len(regs))}
	for i := range regs {
		if !regs[i].Enabled {
			continue
		}
		s.tasks[regs[i].Address] = &task{reg: regs[i], due: now}
	}
	return s
}

// empty reports whether the schedule has no registers at all.
func (s *schedule) empty() bool {
	return len(s.tasks) == 0
}

// due returns all registers whose next-due-time has elapsed, sorted by
// address so contiguous runs coalesce.
func (s *schedule) due(now time.Time) []plant.Register {
	var out []plant.Register
	for _, t := range s.tasks {
		if !t.due.After(now) {
			out = append(out, t.reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// markRead records a successful read: next due = now + interval.
func (s *schedule) markRead(address uint16, now time.Time) {
	if t, ok := s.tasks[address]; ok {
		t.due = now.Add(t.reg.PollInterval)
	}
}

// batch is one contiguous run of same-class word registers readable with a
// single block read, or a single bit register.
type batch struct {
	class plant.RegisterClass
	regs  []plant.Register
	start uint16
	words uint16
}

// coalesce groups due registers into block-readable batches.
//
// Word registers of the same class whose addresses are contiguous (each
// register starting exactly where the previous one ends) merge into one
// batch up to maxBatchWords. Bit registers always form single-entry batches:
// coil packing is not worth the unpacking complexity at terminal scale.
func coalesce(due []plant.Register) []batch {
	var out []batch

	for _, reg := range due {
		width := uint16(reg.Encoding.WordCount())

		if reg.Class.Bit() {
			out = append(out, batch{class: reg.Class, regs: []plant.Register{reg}, start: reg.Address, words: 1})
			continue
		}

		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.class == reg.Class && !last.class.Bit() &&
				last.start+last.words == reg.Address &&
				last.words+width <= maxBatchWords {
				last.regs = append(last.regs, reg)
				last.words += width
				continue
			}
		}
		out = append(out, batch{class: reg.Class, regs: []plant.Register{reg}, start: reg.Address, words: width})
	}
	return out
}
