package vm

import (
	"fmt"
	"io"
	"sort"
)

// Profiler counts executed instructions per opcode and calls per function
// entry. A function becomes hot once its call count reaches HotThreshold.
// Like the VM it is attached to, a Profiler is not safe for concurrent use.
type Profiler struct {
	HotThreshold uint64 // Default: 100

	// Called once when a function entry becomes hot.
	OnHot func(entry int, calls uint64)

	ops      map[Opcode]uint64
	calls    map[int]uint64
	hotCount int
}

// FunctionProfile is the call count of one function entry.
type FunctionProfile struct {
	Entry int
	Calls uint64
	Hot   bool
}

// ProfilerStats holds aggregate counts.
type ProfilerStats struct {
	Instructions uint64 // executed instructions
	Calls        uint64 // executed CALLs
	Functions    int    // distinct function entries called
	HotFunctions int
}

// NewProfiler creates a profiler with the default threshold.
func NewProfiler() *Profiler {
	p := &Profiler{HotThreshold: 100}
	p.Reset()
	return p
}

func (p *Profiler) recordOp(code Opcode) {
	p.ops[code]++
}

// recordCall counts a call to entry and reports whether it just became hot.
func (p *Profiler) recordCall(entry int) bool {
	p.calls[entry]++
	n := p.calls[entry]
	if n != p.HotThreshold {
		return false
	}
	p.hotCount++
	if p.OnHot != nil {
		p.OnHot(entry, n)
	}
	return true
}

// OpCount returns how often code was executed.
func (p *Profiler) OpCount(code Opcode) uint64 {
	return p.ops[code]
}

// Function returns the profile of the function at entry.
func (p *Profiler) Function(entry int) FunctionProfile {
	n := p.calls[entry]
	return FunctionProfile{Entry: entry, Calls: n, Hot: n >= p.HotThreshold}
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	var stats ProfilerStats
	for _, n := range p.ops {
		stats.Instructions += n
	}
	for _, n := range p.calls {
		stats.Calls += n
	}
	stats.Functions = len(p.calls)
	stats.HotFunctions = p.hotCount
	return stats
}

// TopFunctions returns the n most called functions, most calls first; ties
// are broken by entry.
func (p *Profiler) TopFunctions(n int) []FunctionProfile {
	all := make([]FunctionProfile, 0, len(p.calls))
	for entry := range p.calls {
		all = append(all, p.Function(entry))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Calls != all[j].Calls {
			return all[i].Calls > all[j].Calls
		}
		return all[i].Entry < all[j].Entry
	})
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// Report writes the opcode histogram and the top functions to w.
func (p *Profiler) Report(w io.Writer, top int) error {
	stats := p.Stats()
	if _, err := fmt.Fprintf(w, "%d instructions, %d calls to %d functions (%d hot)\n",
		stats.Instructions, stats.Calls, stats.Functions, stats.HotFunctions); err != nil {
		return err
	}

	codes := make([]Opcode, 0, len(p.ops))
	for c := range p.ops {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		if p.ops[codes[i]] != p.ops[codes[j]] {
			return p.ops[codes[i]] > p.ops[codes[j]]
		}
		return codes[i] < codes[j]
	})
	for _, c := range codes {
		if _, err := fmt.Fprintf(w, "  %-6s %d\n", c, p.ops[c]); err != nil {
			return err
		}
	}
	for _, f := range p.TopFunctions(top) {
		hot := ""
		if f.Hot {
			hot = " hot"
		}
		if _, err := fmt.Fprintf(w, "  fn@%04d %d calls%s\n", f.Entry, f.Calls, hot); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.ops = make(map[Opcode]uint64)
	p.calls = make(map[int]uint64)
	p.hotCount = 0
}
