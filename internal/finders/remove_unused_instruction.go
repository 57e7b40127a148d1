package finders

import (
	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

// FindUnusedInstructions finds function-local instructions that produce a
// result nobody reads and have no side effects.
func FindUnusedInstructions(m *ir.Module) []tt.Opportunity {
	var result []tt.Opportunity
	for _, fn := range m.Functions() {
		for _, label := range fn.Blocks {
			b, _ := m.Block(label)
			for _, ref := range b.Body {
				inst := m.Instruction(ref)
				if !isPureValue(inst) || m.NumUses(inst.Result) != 0 {
					continue
				}
				result = append(result, &removeInstructionOpportunity{ref: ref, id: inst.Result, name: m.IDString(inst.Result), op: inst.Opcode})
			}
		}
	}
	return result
}

func isPureValue(inst *ir.Instruction) bool {
	return inst.HasResult() &&
		!inst.Opcode.IsTerminator() &&
		!inst.Opcode.IsStructural() &&
		!inst.Opcode.HasSideEffects()
}
