package chunk

import (
	"fmt"
	"sort"

	"noxy-vm/internal/value"
)

type OpCode byte

const (
	OP_CONSTANT OpCode = iota
	OP_TRUE
	OP_FALSE
	OP_NEGATE
	OP_NOT
	OP_ADD
	OP_SUBTRACT
	OP_MULTIPLY
	OP_DIVIDE
	OP_EQUAL_EQUAL
	OP_BANG_EQUAL
	OP_LESS
	OP_LESS_EQUAL
	OP_GREATER
	OP_GREATER_EQUAL
	OP_PRINT
	OP_POP
	OP_POPN
	OP_DEFINE_GLOBAL
	OP_GET_GLOBAL
	OP_SET_GLOBAL
	OP_GET_LOCAL
	OP_SET_LOCAL
	OP_JUMP
	OP_JUMP_IF_TRUE
	OP_JUMP_IF_FALSE
	OP_LOOP
	OP_CALL
	OP_RETURN
	OP_EOF
)

var opNames = map[OpCode]string{
	OP_CONSTANT:      "OP_CONSTANT",
	OP_TRUE:          "OP_TRUE",
	OP_FALSE:         "OP_FALSE",
	OP_NEGATE:        "OP_NEGATE",
	OP_NOT:           "OP_NOT",
	OP_ADD:           "OP_ADD",
	OP_SUBTRACT:      "OP_SUBTRACT",
	OP_MULTIPLY:      "OP_MULTIPLY",
	OP_DIVIDE:        "OP_DIVIDE",
	OP_EQUAL_EQUAL:   "OP_EQUAL_EQUAL",
	OP_BANG_EQUAL:    "OP_BANG_EQUAL",
	OP_LESS:          "OP_LESS",
	OP_LESS_EQUAL:    "OP_LESS_EQUAL",
	OP_GREATER:       "OP_GREATER",
	OP_GREATER_EQUAL: "OP_GREATER_EQUAL",
	OP_PRINT:         "OP_PRINT",
	OP_POP:           "OP_POP",
	OP_POPN:          "OP_POPN",
	OP_DEFINE_GLOBAL: "OP_DEFINE_GLOBAL",
	OP_GET_GLOBAL:    "OP_GET_GLOBAL",
	OP_SET_GLOBAL:    "OP_SET_GLOBAL",
	OP_GET_LOCAL:     "OP_GET_LOCAL",
	OP_SET_LOCAL:     "OP_SET_LOCAL",
	OP_JUMP:          "OP_JUMP",
	OP_JUMP_IF_TRUE:  "OP_JUMP_IF_TRUE",
	OP_JUMP_IF_FALSE: "OP_JUMP_IF_FALSE",
	OP_LOOP:          "OP_LOOP",
	OP_CALL:          "OP_CALL",
	OP_RETURN:        "OP_RETURN",
	OP_EOF:           "OP_EOF",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", byte(op))
}

// MaxConstants is the single-byte constant-operand limit spec.md §5
// calls part of the contract; compiler.MaxLocals is its counterpart
// for local slots.
const MaxConstants = 256

// lineRun is one entry of the compressed offset->line table: line
// strictly increases from the previous stored entry, and Offset is
// the first code index whose source line is Line (spec.md §3).
type lineRun struct {
	Offset int
	Line   int
}

// Chunk is a compiled function body: a byte-encoded instruction
// stream, its constant pool, and a compressed line table.
type Chunk struct {
	Code      []byte
	Constants []value.Value
	FileName  string

	lines    []lineRun
	lastLine int
}

func New(fileName string) *Chunk {
	return &Chunk{FileName: fileName, lastLine: 0}
}

// WriteByte appends one byte to the instruction stream, attributing it
// to the given source line, and returns the offset it was written at.
func (c *Chunk) WriteByte(b byte, line int) int {
	offset := len(c.Code)
	if len(c.lines) == 0 || line > c.lastLine {
		c.lines = append(c.lines, lineRun{Offset: offset, Line: line})
		c.lastLine = line
	}
	c.Code = append(c.Code, b)
	return offset
}

// PatchByte overwrites a single previously-written byte, used to fill
// in jump operands once the jump target is known.
func (c *Chunk) PatchByte(offset int, b byte) {
	c.Code[offset] = b
}

// AddConstant appends v to the constant pool and returns its byte
// index, or an error if doing so would overflow the single-byte
// operand (spec.md §3, §5).
func (c *Chunk) AddConstant(v value.Value) (int, error) {
	if len(c.Constants) >= MaxConstants {
		return 0, fmt.Errorf("too many constants in one chunk (max %d)", MaxConstants)
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1, nil
}

// GetLine returns the source line attributed to the instruction at
// offset, per the lookup rule in spec.md §3: the line of the greatest
// stored offset <= offset, or the last entry for offsets past the end.
func (c *Chunk) GetLine(offset int) int {
	if len(c.lines) == 0 {
		return 0
	}
	idx := sort.Search(len(c.lines), func(i int) bool {
		return c.lines[i].Offset > offset
	})
	if idx == 0 {
		return c.lines[0].Line
	}
	return c.lines[idx-1].Line
}

// Disassemble prints a human-readable listing of this chunk only,
// gated behind the CLI's debug flag (spec.md §4.1).
func (c *Chunk) Disassemble(name string) {
	fmt.Printf("== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = c.disassembleInstruction(offset)
	}
}

// DisassembleAll disassembles this chunk and, recursively, every
// function chunk reachable from its constant pool.
func (c *Chunk) DisassembleAll(name string) {
	c.Disassemble(name)
	for _, constant := range c.Constants {
		if constant.Type == value.VAL_FUNCTION {
			fn := constant.Obj.(*value.ObjFunction)
			if fnChunk, ok := fn.Chunk.(*Chunk); ok {
				fmt.Println()
				fnChunk.DisassembleAll(fn.Name)
			}
		}
	}
}

func (c *Chunk) disassembleInstruction(offset int) int {
	fmt.Printf("%04d %4d ", offset, c.GetLine(offset))

	op := OpCode(c.Code[offset])
	switch op {
	case OP_CONSTANT, OP_DEFINE_GLOBAL, OP_GET_GLOBAL, OP_SET_GLOBAL:
		return c.constantInstruction(op.String(), offset)
	case OP_GET_LOCAL, OP_SET_LOCAL, OP_CALL, OP_POPN:
		return c.byteInstruction(op.String(), offset)
	case OP_JUMP, OP_JUMP_IF_TRUE, OP_JUMP_IF_FALSE, OP_LOOP:
		return c.jumpInstruction(op.String(), offset)
	default:
		fmt.Println(op.String())
		return offset + 1
	}
}

func (c *Chunk) constantInstruction(name string, offset int) int {
	idx := c.Code[offset+1]
	fmt.Printf("%-18s %4d '%s'\n", name, idx, c.Constants[idx].String())
	return offset + 2
}

func (c *Chunk) byteInstruction(name string, offset int) int {
	operand := c.Code[offset+1]
	fmt.Printf("%-18s %4d\n", name, operand)
	return offset + 2
}

func (c *Chunk) jumpInstruction(name string, offset int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	fmt.Printf("%-18s %4d\n", name, jump)
	return offset + 3
}
