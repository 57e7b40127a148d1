package finders

import (
	"fmt"

	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

// FindMergeableBlocks finds blocks that can be appended to their only
// predecessor: the predecessor ends with an OpBranch to the block and does
// not head a structured construct, the block has no OpPhi, and the label
// is not used except by that branch and by OpPhi parents downstream.
func FindMergeableBlocks(m *ir.Module) []tt.Opportunity {
	var result []tt.Opportunity
	for _, fn := range m.Functions() {
		for _, label := range fn.Blocks {
			if canMergeIntoPredecessor(m, fn, label) {
				result = append(result, &mergeBlocksOpportunity{label: label, name: m.IDString(labelID(m, label))})
			}
		}
	}
	return result
}

func canMergeIntoPredecessor(m *ir.Module, fn *ir.Function, label ir.Ref) bool {
	b, ok := m.Block(label)
	if !ok || fn.Entry() == label {
		return false
	}
	preds := m.Predecessors(fn, b)
	if len(preds) != 1 || preds[0] == label {
		return false
	}
	pred, _ := m.Block(preds[0])
	n := len(pred.Body)
	if m.Instruction(pred.Body[n-1]).Opcode != ir.OpBranch {
		return false
	}
	if n >= 2 && m.Instruction(pred.Body[n-2]).Opcode.IsMerge() {
		return false
	}
	for _, ref := range b.Body {
		if m.Instruction(ref).Opcode == ir.OpPhi {
			return false
		}
	}
	branch := pred.Body[n-1]
	return m.UsedOnlyBy(labelID(m, label), func(user ir.Ref, inst *ir.Instruction) bool {
		return user == branch || inst.Opcode == ir.OpPhi
	})
}

type mergeBlocksOpportunity struct {
	label ir.Ref
	name  string
}

func (o *mergeBlocksOpportunity) PreconditionHolds(m *ir.Module) bool {
	fn, ok := m.FunctionOf(o.label)
	return ok && canMergeIntoPredecessor(m, fn, o.label)
}

func (o *mergeBlocksOpportunity) TryToApply(m *ir.Module) bool {
	if !o.PreconditionHolds(m) {
		return false
	}
	return m.MergeBlockIntoPredecessor(o.label) == nil
}

func (o *mergeBlocksOpportunity) String() string {
	return fmt.Sprintf("merge block %s into its predecessor", o.name)
}
