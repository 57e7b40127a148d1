package finders

import (
	"fmt"

	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

// FindUnreferencedBlocks finds non-entry blocks no branch, merge or name
// refers to. OpPhi entries naming the block as a parent are dropped along
// with it. A block is kept if one of its results is read elsewhere.
func FindUnreferencedBlocks(m *ir.Module) []tt.Opportunity {
	var result []tt.Opportunity
	for _, fn := range m.Functions() {
		for _, label := range fn.Blocks {
			if isRemovableBlock(m, fn, label) {
				id := labelID(m, label)
				result = append(result, &removeBlockOpportunity{label: label, id: id, name: m.IDString(id)})
			}
		}
	}
	return result
}

func isRemovableBlock(m *ir.Module, fn *ir.Function, label ir.Ref) bool {
	if fn.Entry() == label {
		return false
	}
	b, ok := m.Block(label)
	if !ok {
		return false
	}
	id := labelID(m, label)
	onlyPhis := m.UsedOnlyBy(id, func(_ ir.Ref, user *ir.Instruction) bool {
		return user.Opcode == ir.OpPhi
	})
	if !onlyPhis {
		return false
	}
	for _, ref := range b.Body {
		inst := m.Instruction(ref)
		if !inst.HasResult() {
			continue
		}
		local := m.UsedOnlyBy(inst.Result, func(user ir.Ref, ui *ir.Instruction) bool {
			if ub, ok := m.BlockOf(user); ok && ub == b {
				return true
			}
			return phiReadsOnlyFrom(ui, inst.Result, id)
		})
		if !local {
			return false
		}
	}
	return true
}

type removeBlockOpportunity struct {
	label ir.Ref
	id    ir.ID
	name  string
}

func (o *removeBlockOpportunity) PreconditionHolds(m *ir.Module) bool {
	fn, ok := m.FunctionOf(o.label)
	return ok && isRemovableBlock(m, fn, o.label)
}

func (o *removeBlockOpportunity) TryToApply(m *ir.Module) bool {
	if !o.PreconditionHolds(m) {
		return false
	}
	b, _ := m.Block(o.label)
	for _, ref := range b.Body {
		if inst := m.Instruction(ref); inst.HasResult() {
			dropPhiUsers(m, inst.Result, o.id)
		}
	}
	dropPhiUsers(m, o.id, o.id)
	return m.RemoveBlock(o.label) == nil
}

func (o *removeBlockOpportunity) String() string {
	return fmt.Sprintf("remove block %s", o.name)
}
