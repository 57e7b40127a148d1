package ir

import "slices"

// ID is a result identifier, written %N in assembly. Zero is the sentinel.
type ID uint32

const NoID ID = 0

func (id ID) IsValid() bool { return id != NoID }

// Ref is the stable arena handle of an instruction. A Ref stays valid across
// Clone and across mutations of other instructions; a removed instruction
// leaves a tombstone so its Ref is never reused.
type Ref int32

const NoRef Ref = -1

type OperandKind uint8

const (
	OperandID OperandKind = iota
	OperandLiteral
	OperandString
)

// Operand is either a reference to another identifier or a literal word.
type Operand struct {
	Kind OperandKind
	ID   ID
	Text string
}

func IDOperand(id ID) Operand          { return Operand{Kind: OperandID, ID: id} }
func LiteralOperand(s string) Operand  { return Operand{Kind: OperandLiteral, Text: s} }
func StringOperand(s string) Operand   { return Operand{Kind: OperandString, Text: s} }
func (o Operand) IsID() bool           { return o.Kind == OperandID }
func (o Operand) Equal(p Operand) bool { return o == p }

// Instruction has an opcode, an optional result and ordered operands. For
// typed instructions the result type is the first operand.
type Instruction struct {
	Opcode   Opcode
	Result   ID
	Operands []Operand
}

func (inst *Instruction) HasResult() bool { return inst.Result.IsValid() }

// OperandID returns the identifier at operand i, or NoID if the operand is
// missing or not an identifier.
func (inst *Instruction) OperandID(i int) ID {
	if i < 0 || i >= len(inst.Operands) || !inst.Operands[i].IsID() {
		return NoID
	}
	return inst.Operands[i].ID
}

// ForEachID calls fn for every identifier operand.
func (inst *Instruction) ForEachID(fn func(i int, id ID)) {
	for i, op := range inst.Operands {
		if op.IsID() {
			fn(i, op.ID)
		}
	}
}

// TargetOperands returns the operand positions holding block labels this
// instruction transfers control to, or names as structured merge targets.
func (inst *Instruction) TargetOperands() []int {
	switch inst.Opcode {
	case OpBranch:
		return []int{0}
	case OpBranchConditional:
		return []int{1, 2}
	case OpSwitch:
		// selector, default, then (literal, label) pairs
		idx := []int{1}
		for i := 3; i < len(inst.Operands); i += 2 {
			idx = append(idx, i)
		}
		return idx
	case OpSelectionMerge:
		return []int{0}
	case OpLoopMerge:
		return []int{0, 1}
	}
	return nil
}

// PhiParents returns the operand positions of the parent labels of an OpPhi.
func (inst *Instruction) PhiParents() []int {
	if inst.Opcode != OpPhi {
		return nil
	}
	var idx []int
	for i := 2; i < len(inst.Operands); i += 2 {
		idx = append(idx, i)
	}
	return idx
}

// Successors returns the distinct labels a terminator branches to, in
// operand order.
func (inst *Instruction) Successors() []ID {
	if !inst.Opcode.IsTerminator() {
		return nil
	}
	var out []ID
	for _, i := range inst.TargetOperands() {
		id := inst.OperandID(i)
		if id.IsValid() && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (inst *Instruction) Clone() *Instruction {
	return &Instruction{
		Opcode:   inst.Opcode,
		Result:   inst.Result,
		Operands: slices.Clone(inst.Operands),
	}
}

// NewInstruction is a convenience constructor used by tests and the codec.
func NewInstruction(op Opcode, result ID, operands ...Operand) *Instruction {
	return &Instruction{Opcode: op, Result: result, Operands: operands}
}
