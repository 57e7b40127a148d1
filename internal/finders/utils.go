package finders

import (
	"slices"

	"github.com/gnolang/irreduce/internal/ir"
)

// labelID returns the result id of the block labelled at ref.
func labelID(m *ir.Module, ref ir.Ref) ir.ID {
	if inst := m.Instruction(ref); inst != nil {
		return inst.Result
	}
	return ir.NoID
}

// isMetadata reports whether inst only annotates other instructions.
func isMetadata(inst *ir.Instruction) bool {
	return inst.Opcode.IsDebug() || inst.Opcode.IsAnnotation()
}

// dropPhiEdges removes the incoming (value, parent) pairs naming parent
// from every OpPhi of the block labelled target. It is used when an edge
// parent -> target disappears.
func dropPhiEdges(m *ir.Module, target, parent ir.ID) {
	b, ok := m.BlockByID(target)
	if !ok {
		return
	}
	for _, ref := range slices.Clone(b.Body) {
		inst := m.Instruction(ref)
		if inst.Opcode != ir.OpPhi {
			continue
		}
		kept := slices.Clone(inst.Operands[:1])
		for i := 1; i+1 < len(inst.Operands); i += 2 {
			if inst.OperandID(i+1) == parent {
				continue
			}
			kept = append(kept, inst.Operands[i], inst.Operands[i+1])
		}
		if len(kept) != len(inst.Operands) {
			_ = m.RewriteInstruction(ref, ir.OpPhi, kept)
		}
	}
}

// dropPhiUsers drops, from every OpPhi reading value, the incoming pairs
// whose parent is parent.
func dropPhiUsers(m *ir.Module, value, parent ir.ID) {
	for _, user := range m.Uses(value) {
		if m.Instruction(user).Opcode != ir.OpPhi {
			continue
		}
		if ub, ok := m.BlockOf(user); ok {
			dropPhiEdges(m, labelID(m, ub.Label), parent)
		}
	}
}

// phiReadsOnlyFrom reports whether inst is an OpPhi that reads value only
// on edges coming from parent.
func phiReadsOnlyFrom(inst *ir.Instruction, value, parent ir.ID) bool {
	if inst.Opcode != ir.OpPhi {
		return false
	}
	for i := 1; i+1 < len(inst.Operands); i += 2 {
		if inst.OperandID(i) == value && inst.OperandID(i+1) != parent {
			return false
		}
	}
	return true
}

// definedIn returns the results defined by fn, including parameters and
// block labels.
func definedIn(m *ir.Module, fn *ir.Function) []ir.ID {
	var ids []ir.ID
	add := func(ref ir.Ref) {
		if inst := m.Instruction(ref); inst != nil && inst.HasResult() {
			ids = append(ids, inst.Result)
		}
	}
	add(fn.Def)
	for _, p := range fn.Params {
		add(p)
	}
	for _, label := range fn.Blocks {
		add(label)
		b, _ := m.Block(label)
		for _, ref := range b.Body {
			add(ref)
		}
	}
	return ids
}
