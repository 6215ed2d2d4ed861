// Package vm interprets the Function the compiler produces: a
// register-free stack machine with per-call frames and a process-local
// environment for globals, exactly per spec.md §4.3.
package vm

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"noxy-vm/internal/chunk"
	"noxy-vm/internal/value"
)

// FramesMax is the hard cap on nested call frames (spec.md §3, §5).
const FramesMax = 64

// CallFrame pairs a running Function with an instruction pointer and
// the stack index its locals (and the callee itself, at slot 0) begin
// at (spec.md §3).
type CallFrame struct {
	Function *value.ObjFunction
	IP       int
	Base     int
}

// VM owns exactly one value stack, one globals map, and one frame
// stack; none of it is shared across VM instances (spec.md §9).
type VM struct {
	frames     [FramesMax]CallFrame
	frameCount int

	stack   []value.Value
	globals map[string]value.Value
}

// New constructs a VM with an empty, isolated globals map and the
// built-in `clock` native pre-defined (spec.md §4.3).
func New() *VM {
	vm := &VM{globals: make(map[string]value.Value)}
	vm.defineNative("clock", 0, func(args []value.Value) (value.Value, error) {
		return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
	})
	return vm
}

func (vm *VM) defineNative(name string, arity int, fn value.NativeFn) {
	vm.globals[name] = value.Native(&value.ObjNative{Name: name, Arity: arity, Fn: fn})
}

// Globals exposes the current global bindings, e.g. so a REPL driver
// can inspect state between lines without needing a fresh VM.
func (vm *VM) Globals() map[string]value.Value { return vm.globals }

// Interpret runs fn as the script function (spec.md §4.3 "Startup"):
// fn is pushed to stack slot 0 and an initial frame with base 0 is
// installed. On a runtime error the value stack and frame stack are
// reset so the VM can be reused for a subsequent REPL line; globals
// are left untouched — discarding them, if desired, is the driver's
// job (spec.md §7).
func (vm *VM) Interpret(fn *value.ObjFunction) error {
	vm.stack = vm.stack[:0]
	vm.frameCount = 0

	vm.push(value.Function(fn))
	vm.frames[0] = CallFrame{Function: fn, IP: 0, Base: 0}
	vm.frameCount = 1

	if err := vm.run(); err != nil {
		vm.stack = vm.stack[:0]
		vm.frameCount = 0
		return err
	}
	return nil
}

func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	last := len(vm.stack) - 1
	v := vm.stack[last]
	vm.stack = vm.stack[:last]
	return v
}

func (vm *VM) popN(n int) { vm.stack = vm.stack[:len(vm.stack)-n] }

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) run() error {
	for {
		frame := &vm.frames[vm.frameCount-1]
		c := frame.Function.Chunk.(*chunk.Chunk)

		op := chunk.OpCode(c.Code[frame.IP])
		frame.IP++

		switch op {
		case chunk.OP_CONSTANT:
			idx := c.Code[frame.IP]
			frame.IP++
			vm.push(c.Constants[idx])

		case chunk.OP_TRUE:
			vm.push(value.Bool(true))
		case chunk.OP_FALSE:
			vm.push(value.Bool(false))

		case chunk.OP_NEGATE:
			v := vm.pop()
			if v.Type != value.VAL_NUMBER {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-v.Number))

		case chunk.OP_NOT:
			v := vm.pop()
			if v.Type != value.VAL_BOOL {
				return vm.runtimeError("Operand must be a boolean.")
			}
			vm.push(value.Bool(!v.Bool))

		case chunk.OP_ADD:
			b := vm.pop()
			a := vm.pop()
			switch {
			case a.Type == value.VAL_NUMBER && b.Type == value.VAL_NUMBER:
				vm.push(value.Number(a.Number + b.Number))
			case a.Type == value.VAL_STRING && b.Type == value.VAL_STRING:
				vm.push(value.String(a.AsString() + b.AsString()))
			default:
				return vm.runtimeError("Operands must be two numbers or two strings.")
			}

		case chunk.OP_SUBTRACT, chunk.OP_MULTIPLY, chunk.OP_DIVIDE:
			b := vm.pop()
			a := vm.pop()
			if a.Type != value.VAL_NUMBER || b.Type != value.VAL_NUMBER {
				return vm.runtimeError("Operands must be numbers.")
			}
			switch op {
			case chunk.OP_SUBTRACT:
				vm.push(value.Number(a.Number - b.Number))
			case chunk.OP_MULTIPLY:
				vm.push(value.Number(a.Number * b.Number))
			case chunk.OP_DIVIDE:
				vm.push(value.Number(a.Number / b.Number)) // IEEE-754: div by zero yields inf/NaN, no trap
			}

		case chunk.OP_EQUAL_EQUAL:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(a.Equal(b)))

		case chunk.OP_BANG_EQUAL:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(!a.Equal(b)))

		case chunk.OP_LESS, chunk.OP_LESS_EQUAL, chunk.OP_GREATER, chunk.OP_GREATER_EQUAL:
			b := vm.pop()
			a := vm.pop()
			if a.Type != value.VAL_NUMBER || b.Type != value.VAL_NUMBER {
				return vm.runtimeError("Operands must be numbers.")
			}
			switch op {
			case chunk.OP_LESS:
				vm.push(value.Bool(a.Number < b.Number))
			case chunk.OP_LESS_EQUAL:
				vm.push(value.Bool(a.Number <= b.Number))
			case chunk.OP_GREATER:
				vm.push(value.Bool(a.Number > b.Number))
			case chunk.OP_GREATER_EQUAL:
				vm.push(value.Bool(a.Number >= b.Number))
			}

		case chunk.OP_PRINT:
			fmt.Println(vm.pop().String())

		case chunk.OP_POP:
			vm.pop()

		case chunk.OP_POPN:
			n := int(c.Code[frame.IP])
			frame.IP++
			vm.popN(n)

		case chunk.OP_DEFINE_GLOBAL:
			idx := c.Code[frame.IP]
			frame.IP++
			name := c.Constants[idx].AsString()
			vm.globals[name] = vm.pop()

		case chunk.OP_GET_GLOBAL:
			idx := c.Code[frame.IP]
			frame.IP++
			name := c.Constants[idx].AsString()
			v, ok := vm.globals[name]
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.push(v)

		case chunk.OP_SET_GLOBAL:
			idx := c.Code[frame.IP]
			frame.IP++
			name := c.Constants[idx].AsString()
			if _, ok := vm.globals[name]; !ok {
				return vm.runtimeError("Undefined variable '%s'.", name)
			}
			vm.globals[name] = vm.peek(0)

		case chunk.OP_GET_LOCAL:
			slot := int(c.Code[frame.IP])
			frame.IP++
			vm.push(vm.stack[frame.Base+slot])

		case chunk.OP_SET_LOCAL:
			slot := int(c.Code[frame.IP])
			frame.IP++
			vm.stack[frame.Base+slot] = vm.peek(0)

		case chunk.OP_JUMP:
			offset := vm.readShort(c, frame)
			frame.IP += offset

		case chunk.OP_JUMP_IF_TRUE:
			offset := vm.readShort(c, frame)
			if vm.peek(0).IsTruthy() {
				frame.IP += offset
			}

		case chunk.OP_JUMP_IF_FALSE:
			offset := vm.readShort(c, frame)
			if !vm.peek(0).IsTruthy() {
				frame.IP += offset
			}

		case chunk.OP_LOOP:
			offset := vm.readShort(c, frame)
			frame.IP -= offset

		case chunk.OP_CALL:
			argCount := int(c.Code[frame.IP])
			frame.IP++
			if err := vm.call(argCount); err != nil {
				return err
			}

		case chunk.OP_RETURN:
			result := vm.pop()
			base := frame.Base
			vm.frameCount--
			if vm.frameCount == 0 {
				return nil
			}
			vm.stack = vm.stack[:base]
			vm.push(result)

		case chunk.OP_EOF:
			return nil

		default:
			return fmt.Errorf("internal error: unknown opcode %d", op)
		}
	}
}

func (vm *VM) readShort(c *chunk.Chunk, frame *CallFrame) int {
	offset := int(c.Code[frame.IP])<<8 | int(c.Code[frame.IP+1])
	frame.IP += 2
	return offset
}

// call dispatches OP_CALL: a Function with matching arity pushes a new
// frame whose base aliases the callee's own stack slot; a NativeFunction
// is invoked in place and replaces itself and its arguments with its
// result (spec.md §4.3).
func (vm *VM) call(argCount int) error {
	callee := vm.peek(argCount)

	switch callee.Type {
	case value.VAL_FUNCTION:
		fn := callee.Obj.(*value.ObjFunction)
		if fn.Arity != argCount {
			return vm.runtimeError("Expected %d arguments but got %d.", fn.Arity, argCount)
		}
		if vm.frameCount >= FramesMax {
			return vm.runtimeError("Stack overflow.")
		}
		base := len(vm.stack) - argCount - 1
		vm.frames[vm.frameCount] = CallFrame{Function: fn, IP: 0, Base: base}
		vm.frameCount++
		return nil

	case value.VAL_NATIVE:
		native := callee.Obj.(*value.ObjNative)
		if native.Arity != argCount {
			return vm.runtimeError("Expected %d arguments but got %d.", native.Arity, argCount)
		}
		args := make([]value.Value, argCount)
		copy(args, vm.stack[len(vm.stack)-argCount:])
		result, err := native.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stack = vm.stack[:len(vm.stack)-argCount-1]
		vm.push(result)
		return nil

	default:
		return vm.runtimeError("Can only call functions.")
	}
}

// runtimeError reports the currently executing frame's source line
// (spec.md §4.3 "Line attribution") and a chain of frame names from
// innermost to outermost.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)

	top := &vm.frames[vm.frameCount-1]
	c := top.Function.Chunk.(*chunk.Chunk)
	line := c.GetLine(top.IP - 1)

	var b strings.Builder
	fmt.Fprintf(&b, "[line %d] RuntimeError: %s", line, msg)
	for i := vm.frameCount - 1; i >= 0; i-- {
		name := vm.frames[i].Function.Name
		if name == "" {
			name = "script"
		}
		fmt.Fprintf(&b, "\n  in %s", name)
	}
	return errors.New(b.String())
}
