package compiler

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/purplegarden/compiler/hash"
	"github.com/chazu/purplegarden/vm"
)

// Integration tests: compile and execute garden source

func runSource(t *testing.T, src string, opts vm.Options) (*vm.VM, string, error) {
	t.Helper()
	img, err := CompileSource(src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var out bytes.Buffer
	opts.Output = &out
	m := vm.New(img, opts)
	err = m.Run()
	return m, out.String(), err
}

func TestIntegrationPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"arithmetic", `std::println(1 + 2 * 3 (10 - 4) / 4)`, "7 1\n"},
		{"doubles", `std::println(1.5 * 2 7 / 2.0)`, "3 3.5\n"},
		{"strings", `std::println("purple" + " " + "garden" "a" == "a")`, "purple garden true\n"},
		{"comparison", `std::println(1 < 2 2 > 3 "a" < "b")`, "true false true\n"},
		{"let", "let x = 40\nlet y = x + 2\nstd::println(y)", "42\n"},
		{"arrays", "let a = [1 \"two\" [3]]\nstd::println(std::len(a) a)", "3 [1, \"two\", [3]]\n"},
		{"objects", `std::println({ "x": 1 "y": false })`, "{\"x\": 1, \"y\": false}\n"},
		{"str builtin", `std::println(std::str([1 2]) + "!")`, "[1, 2]!\n"},
		{"print", "std::print(\"a\")\nstd::print(\"b\")", "ab"},
		{
			"factorial",
			`
fn fact(n) {
	match {
		n < 2 { 1 }
		{ n * fact(n - 1) }
	}
}
std::println(fact(5) fact(10))`,
			"120 3628800\n",
		},
		{
			"fibonacci",
			`
fn fib(n) {
	match {
		n < 2 { n }
		{ fib(n - 1) + fib(n - 2) }
	}
}
std::println(fib(15))`,
			"610\n",
		},
		{
			"forward call",
			"std::println(twice(21))\nfn twice(x) { x * 2 }",
			"42\n",
		},
		{
			"match picks first truthy case",
			`
fn classify(n) {
	match {
		n == 0 { "zero" }
		n < 0 { "negative" }
		{ "positive" }
	}
}
std::println(classify(0) classify(-3) classify(9))`,
			"zero negative positive\n",
		},
		{
			"match without default",
			`std::println(match { false { 1 } })`,
			"false\n",
		},
		{
			"caller registers survive calls",
			"fn one() { 1 }\nstd::println(10 + one() + 100)",
			"111\n",
		},
		{
			"lookup walks caller frames",
			`
let greeting = "hello"
fn greet(name) { greeting + " " + name }
std::println(greet("garden"))`,
			"hello garden\n",
		},
		{
			"dynamic scope",
			`
fn inner() { outer_var }
fn outer() {
	let outer_var = 7
	inner()
}
std::println(outer())`,
			"7\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := runSource(t, tt.src, vm.Options{})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestIntegrationRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"divide by zero", `std::println(1 / 0)`, vm.ErrDivideByZero},
		{"unresolved", `std::println(nowhere)`, vm.ErrUnresolvedName},
		{"assert", `std::assert(1 == 2)`, vm.ErrAssertion},
		{"type", `1 + "x"`, vm.ErrType},
		{"array arithmetic", `std::len([1] + 1)`, vm.ErrType},
		{"callee binding gone", "fn f() { let local = 1 }\nf()\nlocal", vm.ErrUnresolvedName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runSource(t, tt.src, vm.Options{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIntegrationUnresolvedNameInMessage(t *testing.T) {
	_, _, err := runSource(t, `std::println(nowhere)`, vm.Options{})
	if err == nil || !strings.Contains(err.Error(), `"nowhere"`) {
		t.Errorf("err = %v, want the unresolved name", err)
	}
}

func TestIntegrationGCPreservesReachable(t *testing.T) {
	src := `
fn build(n acc) {
	match {
		n == 0 { acc }
		{ build(n - 1 [n acc]) }
	}
}
let list = build(50 [])
`
	m, _, err := runSource(t, src, vm.Options{GCThreshold: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if m.Stats().Collections == 0 {
		t.Fatal("no collection ran")
	}

	node, ok := m.Lookup(hash.Name("list"))
	if !ok {
		t.Fatal("list not bound")
	}
	for want := int64(1); want <= 50; want++ {
		elems, err := m.Heap().Elements(node)
		if err != nil {
			t.Fatalf("link %d: %v", want, err)
		}
		if len(elems) != 2 || elems[0].Int() != want {
			t.Fatalf("link %d = %v", want, elems)
		}
		node = elems[1]
	}
	if elems, err := m.Heap().Elements(node); err != nil || len(elems) != 0 {
		t.Errorf("tail = %v, %v; want empty array", elems, err)
	}
}

func TestIntegrationGCBuiltin(t *testing.T) {
	src := `
let keep = [1 2]
let drop = [3 4]
let drop = 0
std::println(std::runtime::gc::cycle() std::runtime::gc::live())`
	_, out, err := runSource(t, src, vm.Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "1 1\n" {
		t.Errorf("output = %q, want one object freed and one live", out)
	}
}
