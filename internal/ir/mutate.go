package ir

import (
	"errors"
	"fmt"
	"slices"
)

// The primitives below are the only way reductions change a module. None of
// them checks well-formedness: a module may be invalid between an edit and
// the next validation.

var (
	ErrRemoved    = errors.New("instruction was removed")
	ErrStructural = errors.New("structural instruction")
	ErrNotBlock   = errors.New("not a block label")
	ErrNotFunc    = errors.New("not a function")
)

func (m *Module) kill(ref Ref) {
	inst := m.arena[ref]
	if inst == nil {
		return
	}
	m.index.remove(ref, inst)
	m.arena[ref] = nil
	m.places[ref] = place{section: sectionNone, fn: NoRef, block: NoRef}
	m.live--
}

func removeRef(refs []Ref, ref Ref) []Ref {
	if i := slices.Index(refs, ref); i >= 0 {
		return slices.Delete(refs, i, i+1)
	}
	return refs
}

// RemoveInstruction deletes a non-structural instruction from its global
// section or block.
func (m *Module) RemoveInstruction(ref Ref) error {
	inst := m.Instruction(ref)
	if inst == nil {
		return fmt.Errorf("remove %d: %w", ref, ErrRemoved)
	}
	if inst.Opcode.IsStructural() {
		return fmt.Errorf("remove %s: %w", inst.Opcode, ErrStructural)
	}
	p := m.places[ref]
	switch p.section {
	case sectionGlobal:
		m.globals = removeRef(m.globals, ref)
	case sectionBlock:
		b := m.blocks[p.block]
		b.Body = removeRef(b.Body, ref)
	}
	m.kill(ref)
	return nil
}

// ReplaceOperand overwrites operand i of the instruction at ref.
func (m *Module) ReplaceOperand(ref Ref, i int, op Operand) error {
	inst := m.Instruction(ref)
	if inst == nil {
		return fmt.Errorf("replace operand of %d: %w", ref, ErrRemoved)
	}
	if i < 0 || i >= len(inst.Operands) {
		return fmt.Errorf("replace operand %d of %s: index out of range", i, inst.Opcode)
	}
	old := inst.Operands[i]
	if old.IsID() {
		m.index.dropUse(old.ID, ref)
	}
	inst.Operands[i] = op
	if op.IsID() {
		m.index.addUse(op.ID, ref)
	}
	return nil
}

// RewriteInstruction replaces the opcode and operands of the instruction at
// ref in place, keeping its result and position.
func (m *Module) RewriteInstruction(ref Ref, opcode Opcode, operands []Operand) error {
	inst := m.Instruction(ref)
	if inst == nil {
		return fmt.Errorf("rewrite %d: %w", ref, ErrRemoved)
	}
	if inst.Opcode.IsStructural() || opcode.IsStructural() {
		return fmt.Errorf("rewrite %s as %s: %w", inst.Opcode, opcode, ErrStructural)
	}
	m.index.remove(ref, inst)
	inst.Opcode = opcode
	inst.Operands = slices.Clone(operands)
	m.index.add(ref, inst)
	return nil
}

// RemoveFunction deletes a function with all its parameters and blocks.
func (m *Module) RemoveFunction(def Ref) error {
	fn, ok := m.funcs[def]
	if !ok {
		return fmt.Errorf("remove function %d: %w", def, ErrNotFunc)
	}
	for _, label := range fn.Blocks {
		for _, ref := range m.blocks[label].Body {
			m.kill(ref)
		}
		m.kill(label)
		delete(m.blocks, label)
	}
	for _, p := range fn.Params {
		m.kill(p)
	}
	if fn.End != NoRef {
		m.kill(fn.End)
	}
	m.kill(def)
	delete(m.funcs, def)
	if i := slices.Index(m.functions, fn); i >= 0 {
		m.functions = slices.Delete(m.functions, i, i+1)
	}
	return nil
}

// RemoveBlock deletes the block labelled at label together with its body.
func (m *Module) RemoveBlock(label Ref) error {
	b, ok := m.blocks[label]
	if !ok {
		return fmt.Errorf("remove block %d: %w", label, ErrNotBlock)
	}
	fn := m.funcs[m.places[label].fn]
	for _, ref := range b.Body {
		m.kill(ref)
	}
	m.kill(label)
	delete(m.blocks, label)
	fn.Blocks = removeRef(fn.Blocks, label)
	return nil
}

// MergeBlockIntoPredecessor appends the block at label to its unique
// predecessor, which must end with an OpBranch to it. The predecessor's
// branch and the block's label are removed; remaining references to the
// label (OpPhi parents in successors) are redirected to the predecessor.
func (m *Module) MergeBlockIntoPredecessor(label Ref) error {
	b, ok := m.blocks[label]
	if !ok {
		return fmt.Errorf("merge block %d: %w", label, ErrNotBlock)
	}
	fn := m.funcs[m.places[label].fn]
	if fn.Entry() == label {
		return fmt.Errorf("merge block %d: entry block has no predecessor", label)
	}
	id := m.arena[label].Result

	var pred *Block
	for _, user := range m.Uses(id) {
		inst := m.arena[user]
		if !inst.Opcode.IsTerminator() || !slices.Contains(inst.Successors(), id) {
			continue
		}
		ub, _ := m.BlockOf(user)
		if pred != nil && pred != ub {
			return fmt.Errorf("merge block %%%d: more than one predecessor", id)
		}
		pred = ub
	}
	if pred == nil {
		return fmt.Errorf("merge block %%%d: no predecessor", id)
	}
	term := m.Terminator(pred)
	if m.arena[term].Opcode != OpBranch {
		return fmt.Errorf("merge block %%%d: predecessor ends with %s", id, m.arena[term].Opcode)
	}

	m.kill(term)
	pred.Body = pred.Body[:len(pred.Body)-1]
	for _, ref := range b.Body {
		m.places[ref].block = pred.Label
	}
	pred.Body = append(pred.Body, b.Body...)

	predID := m.arena[pred.Label].Result
	for _, user := range m.Uses(id) {
		for i, op := range m.arena[user].Operands {
			if op.IsID() && op.ID == id {
				if err := m.ReplaceOperand(user, i, IDOperand(predID)); err != nil {
					return err
				}
			}
		}
	}

	m.kill(label)
	delete(m.blocks, label)
	fn.Blocks = removeRef(fn.Blocks, label)
	return nil
}
