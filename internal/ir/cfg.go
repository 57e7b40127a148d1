package ir

import "slices"

// Successors returns the distinct labels b's terminator branches to.
func (m *Module) Successors(b *Block) []ID {
	term := m.Instruction(m.Terminator(b))
	if term == nil {
		return nil
	}
	return term.Successors()
}

// Predecessors returns the labels of the blocks in fn whose terminator
// branches to b, in layout order.
func (m *Module) Predecessors(fn *Function, b *Block) []Ref {
	id := m.arena[b.Label].Result
	var preds []Ref
	for _, label := range fn.Blocks {
		if slices.Contains(m.Successors(m.blocks[label]), id) {
			preds = append(preds, label)
		}
	}
	return preds
}

// Measure summarises module size. Every accepted reduction makes it
// strictly smaller, which bounds the number of passes.
type Measure struct {
	Instructions int
	Edges        int
	Operands     int
}

// Less orders measures lexicographically.
func (a Measure) Less(b Measure) bool {
	if a.Instructions != b.Instructions {
		return a.Instructions < b.Instructions
	}
	if a.Edges != b.Edges {
		return a.Edges < b.Edges
	}
	return a.Operands < b.Operands
}

func (m *Module) Measure() Measure {
	ms := Measure{Instructions: m.live}
	m.Walk(func(_ Ref, inst *Instruction) {
		ms.Operands += len(inst.Operands)
		if inst.Opcode.IsTerminator() {
			ms.Edges += len(inst.Successors())
		}
	})
	return ms
}
