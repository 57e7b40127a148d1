package finders

import (
	"fmt"

	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

// FindSimpleConditionalBranches finds conditional branches whose targets
// are already equal and turns them into unconditional branches. Branches
// heading a selection construct are left alone since OpSelectionMerge must
// be followed by a conditional branch or switch.
func FindSimpleConditionalBranches(m *ir.Module) []tt.Opportunity {
	var result []tt.Opportunity
	for _, fn := range m.Functions() {
		for _, label := range fn.Blocks {
			b, _ := m.Block(label)
			if isSimpleConditional(m, b) {
				result = append(result, &simpleConditionalOpportunity{
					branch: m.Terminator(b),
					block:  m.IDString(labelID(m, label)),
				})
			}
		}
	}
	return result
}

func isSimpleConditional(m *ir.Module, b *ir.Block) bool {
	n := len(b.Body)
	if n == 0 {
		return false
	}
	inst := m.Instruction(b.Body[n-1])
	if inst.Opcode != ir.OpBranchConditional || inst.OperandID(1) != inst.OperandID(2) {
		return false
	}
	return n < 2 || m.Instruction(b.Body[n-2]).Opcode != ir.OpSelectionMerge
}

type simpleConditionalOpportunity struct {
	branch ir.Ref
	block  string
}

func (o *simpleConditionalOpportunity) PreconditionHolds(m *ir.Module) bool {
	b, ok := m.BlockOf(o.branch)
	return ok && m.Terminator(b) == o.branch && isSimpleConditional(m, b)
}

func (o *simpleConditionalOpportunity) TryToApply(m *ir.Module) bool {
	if !o.PreconditionHolds(m) {
		return false
	}
	target := m.Instruction(o.branch).OperandID(1)
	return m.RewriteInstruction(o.branch, ir.OpBranch, []ir.Operand{ir.IDOperand(target)}) == nil
}

func (o *simpleConditionalOpportunity) String() string {
	return fmt.Sprintf("block %s: replace conditional branch with branch", o.block)
}
