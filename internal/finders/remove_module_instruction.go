package finders

import (
	"fmt"

	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

// FindUnreferencedModuleInstructions finds global types, constants, undefs
// and variables whose result is never referenced. Names and decorations
// count as references, so annotated declarations are kept.
//
// Removing a declaration can make the declarations it referenced
// unreferenced in turn; those are found by the next collection pass.
func FindUnreferencedModuleInstructions(m *ir.Module) []tt.Opportunity {
	var result []tt.Opportunity
	for _, ref := range m.Globals() {
		inst := m.Instruction(ref)
		if isRemovableDeclaration(inst) && m.NumUses(inst.Result) == 0 {
			result = append(result, &removeInstructionOpportunity{ref: ref, id: inst.Result, name: m.IDString(inst.Result), op: inst.Opcode})
		}
	}
	return result
}

func isRemovableDeclaration(inst *ir.Instruction) bool {
	if inst == nil || !inst.HasResult() {
		return false
	}
	op := inst.Opcode
	return op.IsType() || op.IsConstant() || op == ir.OpUndef || op == ir.OpVariable
}

// removeInstructionOpportunity removes a single instruction whose result
// has no remaining uses.
type removeInstructionOpportunity struct {
	ref  ir.Ref
	id   ir.ID
	name string
	op   ir.Opcode
}

func (o *removeInstructionOpportunity) PreconditionHolds(m *ir.Module) bool {
	return m.Alive(o.ref) && m.NumUses(o.id) == 0
}

func (o *removeInstructionOpportunity) TryToApply(m *ir.Module) bool {
	if !o.PreconditionHolds(m) {
		return false
	}
	return m.RemoveInstruction(o.ref) == nil
}

func (o *removeInstructionOpportunity) String() string {
	return fmt.Sprintf("remove %s = %s", o.name, o.op)
}
