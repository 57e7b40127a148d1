package finders

import (
	"fmt"

	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

// FindConditionalBranchSimplifications returns, for every OpBranchConditional
// with distinct targets, one opportunity that redirects its false target to
// its true target and one that does the reverse.
//
// Redirecting one target disables the opposite redirection on the same
// branch, so all false-target redirections across the module are emitted
// before any true-target redirection. Keeping the disabling pairs far apart
// means a chunk rarely contains both halves of a pair.
func FindConditionalBranchSimplifications(m *ir.Module) []tt.Opportunity {
	var result []tt.Opportunity
	for _, redirectFalse := range []bool{true, false} {
		for _, fn := range m.Functions() {
			for _, label := range fn.Blocks {
				b, _ := m.Block(label)
				term := m.Terminator(b)
				if !isDistinctConditional(m.Instruction(term)) {
					continue
				}
				result = append(result, &conditionalBranchOpportunity{
					branch:        term,
					name:          m.IDString(labelID(m, label)),
					redirectFalse: redirectFalse,
				})
			}
		}
	}
	return result
}

func isDistinctConditional(inst *ir.Instruction) bool {
	return inst != nil &&
		inst.Opcode == ir.OpBranchConditional &&
		inst.OperandID(1) != inst.OperandID(2)
}

type conditionalBranchOpportunity struct {
	branch ir.Ref
	name   string
	// redirectFalse makes the false target equal to the true target;
	// otherwise the true target is made equal to the false target.
	redirectFalse bool
}

func (o *conditionalBranchOpportunity) PreconditionHolds(m *ir.Module) bool {
	return isDistinctConditional(m.Instruction(o.branch))
}

func (o *conditionalBranchOpportunity) TryToApply(m *ir.Module) bool {
	if !o.PreconditionHolds(m) {
		return false
	}
	// Merges may have moved the branch since collection; the OpPhi parent
	// is whichever block holds it now.
	b, ok := m.BlockOf(o.branch)
	if !ok {
		return false
	}
	inst := m.Instruction(o.branch)
	from, to := 2, 1
	if !o.redirectFalse {
		from, to = 1, 2
	}
	dropped := inst.OperandID(from)
	if err := m.ReplaceOperand(o.branch, from, ir.IDOperand(inst.OperandID(to))); err != nil {
		return false
	}
	dropPhiEdges(m, dropped, labelID(m, b.Label))
	return true
}

func (o *conditionalBranchOpportunity) String() string {
	if o.redirectFalse {
		return fmt.Sprintf("block %s: redirect false target to true target", o.name)
	}
	return fmt.Sprintf("block %s: redirect true target to false target", o.name)
}
