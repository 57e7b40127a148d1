package finders

import (
	"fmt"

	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

// FindUnreferencedFunctions finds functions that are neither entry points
// nor called. Names and decorations of the function and of anything it
// defines are removed together with it.
func FindUnreferencedFunctions(m *ir.Module) []tt.Opportunity {
	var result []tt.Opportunity
	for _, fn := range m.Functions() {
		if isRemovableFunction(m, fn) {
			result = append(result, &removeFunctionOpportunity{def: fn.Def, name: m.IDString(labelID(m, fn.Def))})
		}
	}
	return result
}

func isRemovableFunction(m *ir.Module, fn *ir.Function) bool {
	for _, id := range definedIn(m, fn) {
		external := !m.UsedOnlyBy(id, func(user ir.Ref, inst *ir.Instruction) bool {
			if isMetadata(inst) {
				return true
			}
			owner, ok := m.FunctionOf(user)
			return ok && owner == fn
		})
		if external {
			return false
		}
	}
	return true
}

type removeFunctionOpportunity struct {
	def  ir.Ref
	name string
}

func (o *removeFunctionOpportunity) PreconditionHolds(m *ir.Module) bool {
	fn, ok := m.Function(o.def)
	return ok && isRemovableFunction(m, fn)
}

func (o *removeFunctionOpportunity) TryToApply(m *ir.Module) bool {
	if !o.PreconditionHolds(m) {
		return false
	}
	fn, _ := m.Function(o.def)
	for _, id := range definedIn(m, fn) {
		for _, user := range m.Uses(id) {
			if inst := m.Instruction(user); inst != nil && isMetadata(inst) && m.IsGlobal(user) {
				if err := m.RemoveInstruction(user); err != nil {
					return false
				}
			}
		}
	}
	return m.RemoveFunction(o.def) == nil
}

func (o *removeFunctionOpportunity) String() string {
	return fmt.Sprintf("remove function %s", o.name)
}
