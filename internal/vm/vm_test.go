package vm

import (
	"fmt"
	"strings"
	"testing"

	"noxy-vm/internal/compiler"
	"noxy-vm/internal/lexer"
	"noxy-vm/internal/parser"
	"noxy-vm/internal/value"
)

type vmTestCase struct {
	input    string
	expected interface{}
}

// runVmTests wraps each input expression in a call to a "capture"
// native so the test can inspect the resulting Value directly rather
// than scraping stdout that OP_PRINT writes to.
func runVmTests(t *testing.T, tests []vmTestCase) {
	for _, tt := range tests {
		input := fmt.Sprintf("capture(%s);", tt.input)

		l := lexer.New(input)
		p := parser.New(l)
		program := p.ParseProgram()
		if errs := p.Errors(); len(errs) > 0 {
			t.Fatalf("input %q: parser errors: %v", tt.input, errs)
		}

		c := compiler.New("test")
		fn, err := c.Compile(program)
		if err != nil {
			t.Fatalf("input %q: compiler error: %s", tt.input, err)
		}

		machine := New()
		var captured value.Value
		machine.defineNative("capture", 1, func(args []value.Value) (value.Value, error) {
			captured = args[0]
			return value.Bool(false), nil
		})

		if err := machine.Interpret(fn); err != nil {
			t.Fatalf("input %q: vm error: %s", tt.input, err)
		}

		testExpectedValue(t, tt.input, tt.expected, captured)
	}
}

func testExpectedValue(t *testing.T, input string, expected interface{}, actual value.Value) {
	switch want := expected.(type) {
	case float64:
		if actual.Type != value.VAL_NUMBER {
			t.Errorf("input %q: expected a number, got %s", input, actual.TypeName())
			return
		}
		if actual.Number != want {
			t.Errorf("input %q: got=%g, want=%g", input, actual.Number, want)
		}
	case bool:
		if actual.Type != value.VAL_BOOL {
			t.Errorf("input %q: expected a boolean, got %s", input, actual.TypeName())
			return
		}
		if actual.Bool != want {
			t.Errorf("input %q: got=%t, want=%t", input, actual.Bool, want)
		}
	case string:
		if actual.Type != value.VAL_STRING {
			t.Errorf("input %q: expected a string, got %s", input, actual.TypeName())
			return
		}
		if actual.AsString() != want {
			t.Errorf("input %q: got=%q, want=%q", input, actual.AsString(), want)
		}
	}
}

func TestArithmetic(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"1", 1.0},
		{"1 + 2", 3.0},
		{"1 + 2 * 3", 7.0},
		{"(1 + 2) * 3", 9.0},
		{"10 / 2 - 3", 2.0},
		{"-5 + 10", 5.0},
	})
}

func TestStringConcatenation(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{`"foo" + "bar"`, "foobar"},
	})
}

func TestComparisonAndEquality(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"1 < 2", true},
		{"1 > 2", false},
		{"1 == 1", true},
		{"1 != 2", true},
		{"true == true", true},
		{`"a" == "a"`, true},
		{"1 == true", false}, // structural equality never crosses types
	})
}

func TestLogicalShortCircuit(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"true and false", false},
		{"true and true", true},
		{"false or true", true},
		{"false or false", false},
	})
}

func TestFunctionCallAndReturn(t *testing.T) {
	input := `
fun add(a, b) {
  return a + b;
}
capture(add(2, 40));
`
	runFullProgram(t, input, 42.0)
}

func TestRecursion(t *testing.T) {
	input := `
fun fib(n) {
  if (n < 2) {
    return n;
  }
  return fib(n - 1) + fib(n - 2);
}
capture(fib(10));
`
	runFullProgram(t, input, 55.0)
}

func TestForLoopSum(t *testing.T) {
	input := `
let total = 0;
for (let i = 1; i <= 5; i = i + 1) {
  total = total + i;
}
capture(total);
`
	runFullProgram(t, input, 15.0)
}

func runFullProgram(t *testing.T, input string, expected interface{}) {
	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}

	c := compiler.New("test")
	fn, err := c.Compile(program)
	if err != nil {
		t.Fatalf("compiler error: %s", err)
	}

	machine := New()
	var captured value.Value
	machine.defineNative("capture", 1, func(args []value.Value) (value.Value, error) {
		captured = args[0]
		return value.Bool(false), nil
	})

	if err := machine.Interpret(fn); err != nil {
		t.Fatalf("vm error: %s", err)
	}
	testExpectedValue(t, input, expected, captured)
}

func TestRuntimeErrorReportsLineAndFrameChain(t *testing.T) {
	input := `
fun bad() {
  return 1 + "x";
}
bad();
`
	l := lexer.New(input)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors: %v", errs)
	}

	c := compiler.New("test")
	fn, err := c.Compile(program)
	if err != nil {
		t.Fatalf("compiler error: %s", err)
	}

	machine := New()
	err = machine.Interpret(fn)
	if err == nil {
		t.Fatalf("expected a runtime error, got none")
	}
	msg := err.Error()
	if !strings.Contains(msg, "[line 3]") {
		t.Errorf("expected the error to cite line 3, got: %s", msg)
	}
	if !strings.Contains(msg, "Operands must be two numbers or two strings.") {
		t.Errorf("unexpected message: %s", msg)
	}
	if !strings.Contains(msg, "in bad") || !strings.Contains(msg, "in script") {
		t.Errorf("expected a frame chain naming bad and script, got: %s", msg)
	}
}

func TestClockIsDefinedAndReturnsANumber(t *testing.T) {
	runVmTests(t, []vmTestCase{})
	machine := New()
	v, ok := machine.Globals()["clock"]
	if !ok {
		t.Fatalf("expected clock to be predefined")
	}
	if v.Type != value.VAL_NATIVE {
		t.Fatalf("expected clock to be a native function, got %s", v.TypeName())
	}
	result, err := v.Obj.(*value.ObjNative).Fn(nil)
	if err != nil {
		t.Fatalf("calling clock: %s", err)
	}
	if result.Type != value.VAL_NUMBER {
		t.Fatalf("expected clock to return a number, got %s", result.TypeName())
	}
}
