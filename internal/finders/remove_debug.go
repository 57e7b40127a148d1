package finders

import (
	"fmt"

	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

// FindDebugInstructions finds debug-only instructions (names, source and
// line information) that can be dropped. An OpString still referenced by
// OpLine or OpSource is kept until its users are gone.
func FindDebugInstructions(m *ir.Module) []tt.Opportunity {
	var result []tt.Opportunity
	m.Walk(func(ref ir.Ref, inst *ir.Instruction) {
		if isRemovableDebug(m, inst) {
			result = append(result, &removeDebugOpportunity{ref: ref, op: inst.Opcode})
		}
	})
	return result
}

func isRemovableDebug(m *ir.Module, inst *ir.Instruction) bool {
	if inst == nil || !inst.Opcode.IsDebug() {
		return false
	}
	return !inst.HasResult() || m.NumUses(inst.Result) == 0
}

type removeDebugOpportunity struct {
	ref ir.Ref
	op  ir.Opcode
}

func (o *removeDebugOpportunity) PreconditionHolds(m *ir.Module) bool {
	return isRemovableDebug(m, m.Instruction(o.ref))
}

func (o *removeDebugOpportunity) TryToApply(m *ir.Module) bool {
	if !o.PreconditionHolds(m) {
		return false
	}
	return m.RemoveInstruction(o.ref) == nil
}

func (o *removeDebugOpportunity) String() string {
	return fmt.Sprintf("remove %s at %d", o.op, o.ref)
}
