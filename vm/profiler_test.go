package vm

import (
	"bytes"
	"strings"
	"testing"
)

// threeCalls calls the function at 5 three times, then jumps past it.
var threeCalls = []Op{
	{Code: OpLoadI, Dst: 0, Imm: 1},
	{Code: OpCall, Target: 5, ArgsStart: 0, ArgsLen: 1},
	{Code: OpCall, Target: 5, ArgsStart: 0, ArgsLen: 1},
	{Code: OpCall, Target: 5, ArgsStart: 0, ArgsLen: 1},
	{Code: OpJmp, Target: 7},
	{Code: OpAdd, Dst: 0, Lhs: 0, Rhs: 0},
	{Code: OpRet, Times: 1},
}

func runProfiled(t *testing.T, p *Profiler) *VM {
	t.Helper()
	m := New(&Image{Code: threeCalls}, Options{Output: &bytes.Buffer{}, Profiler: p})
	mustRun(t, m)
	return m
}

func TestProfilerCounts(t *testing.T) {
	p := NewProfiler()
	m := runProfiled(t, p)
	if got := m.Register(0).Int(); got != 8 {
		t.Fatalf("r0 = %d, want 8", got)
	}

	tests := []struct {
		code Opcode
		want uint64
	}{
		{OpLoadI, 1},
		{OpCall, 3},
		{OpAdd, 3},
		{OpRet, 3},
		{OpJmp, 1},
		{OpSys, 0},
	}
	for _, tt := range tests {
		if got := p.OpCount(tt.code); got != tt.want {
			t.Errorf("OpCount(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}

	stats := p.Stats()
	if stats.Instructions != 11 || stats.Calls != 3 || stats.Functions != 1 || stats.HotFunctions != 0 {
		t.Errorf("Stats = %+v", stats)
	}
	if f := p.Function(5); f.Calls != 3 || f.Hot {
		t.Errorf("Function(5) = %+v", f)
	}
}

func TestProfilerHotThreshold(t *testing.T) {
	p := NewProfiler()
	p.HotThreshold = 2
	var hot []int
	p.OnHot = func(entry int, calls uint64) {
		hot = append(hot, entry)
		if calls != 2 {
			t.Errorf("OnHot calls = %d, want 2", calls)
		}
	}
	runProfiled(t, p)

	if len(hot) != 1 || hot[0] != 5 {
		t.Errorf("OnHot entries = %v, want [5]", hot)
	}
	if !p.Function(5).Hot || p.Stats().HotFunctions != 1 {
		t.Errorf("function 5 not hot: %+v", p.Function(5))
	}
}

func TestProfilerTopAndReset(t *testing.T) {
	p := NewProfiler()
	p.recordCall(10)
	p.recordCall(20)
	p.recordCall(20)
	p.recordCall(30)

	top := p.TopFunctions(2)
	if len(top) != 2 || top[0].Entry != 20 || top[1].Entry != 10 {
		t.Errorf("TopFunctions(2) = %+v", top)
	}
	if all := p.TopFunctions(10); len(all) != 3 {
		t.Errorf("TopFunctions(10) returned %d", len(all))
	}

	p.Reset()
	if s := p.Stats(); s.Calls != 0 || s.Functions != 0 {
		t.Errorf("Stats after Reset = %+v", s)
	}
}

func TestProfilerReport(t *testing.T) {
	p := NewProfiler()
	runProfiled(t, p)

	var out bytes.Buffer
	if err := p.Report(&out, 5); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"11 instructions, 3 calls to 1 functions (0 hot)",
		"CALL",
		"fn@0005 3 calls",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("report missing %q:\n%s", want, out.String())
		}
	}
}
