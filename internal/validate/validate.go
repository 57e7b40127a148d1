// Package validate implements the structural well-formedness check run
// after every tentative reduction. It does not type check; it only
// guarantees the graph invariants reductions may break: dangling or
// duplicated identifiers, block shape, and control flow targets.
package validate

import (
	"fmt"
	"strings"

	"github.com/gnolang/irreduce/internal/ir"
)

// Problem is one violated invariant.
type Problem struct {
	Ref     ir.Ref
	Message string
}

// Error lists every problem found in a module.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	if len(e.Problems) == 1 {
		return "invalid module: " + e.Problems[0].Message
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return fmt.Sprintf("invalid module: %d problems: %s", len(e.Problems), strings.Join(msgs, "; "))
}

type checker struct {
	m        *ir.Module
	problems []Problem
}

func (c *checker) reportf(ref ir.Ref, format string, args ...any) {
	c.problems = append(c.problems, Problem{Ref: ref, Message: fmt.Sprintf(format, args...)})
}

// Validate returns nil if m is structurally well formed, and an *Error
// otherwise.
func Validate(m *ir.Module) error {
	c := &checker{m: m}
	c.checkDefinitions()
	for _, fn := range m.Functions() {
		c.checkFunction(fn)
	}
	c.checkReferences()
	if len(c.problems) == 0 {
		return nil
	}
	return &Error{Problems: c.problems}
}

func (c *checker) checkDefinitions() {
	for _, id := range c.m.Duplicates() {
		ref, _ := c.m.Def(id)
		c.reportf(ref, "%%%d is defined more than once", id)
	}
	for _, id := range c.m.ReferencedIDs() {
		if _, ok := c.m.Def(id); !ok {
			users := c.m.Uses(id)
			c.reportf(users[0], "%%%d is used by %s but never defined", id, c.m.Instruction(users[0]).Opcode)
		}
	}
}

func (c *checker) checkFunction(fn *ir.Function) {
	m := c.m
	def := m.Instruction(fn.Def)
	if fn.End == ir.NoRef {
		c.reportf(fn.Def, "function %%%d has no OpFunctionEnd", def.Result)
	}
	if len(fn.Blocks) == 0 {
		// a declaration; nothing else to check
		return
	}
	labels := make(map[ir.ID]bool, len(fn.Blocks))
	for _, label := range fn.Blocks {
		labels[m.Instruction(label).Result] = true
	}
	for _, label := range fn.Blocks {
		b, _ := m.Block(label)
		id := m.Instruction(label).Result
		if len(b.Body) == 0 {
			c.reportf(label, "block %%%d is empty", id)
			continue
		}
		for i, ref := range b.Body {
			inst := m.Instruction(ref)
			last := i == len(b.Body)-1
			if inst.Opcode.IsTerminator() && !last {
				c.reportf(ref, "block %%%d: %s before the end of the block", id, inst.Opcode)
			}
			if last && !inst.Opcode.IsTerminator() {
				c.reportf(ref, "block %%%d does not end with a terminator", id)
			}
			if inst.Opcode.IsMerge() && i != len(b.Body)-2 {
				c.reportf(ref, "block %%%d: %s must precede the terminator", id, inst.Opcode)
			}
			for _, k := range append(inst.TargetOperands(), inst.PhiParents()...) {
				target := inst.OperandID(k)
				if !labels[target] {
					c.reportf(ref, "block %%%d: %s targets %%%d which is not a block of this function", id, inst.Opcode, target)
				}
			}
		}
	}
	if entry, _ := m.Block(fn.Entry()); entry != nil {
		entryID := m.Instruction(fn.Entry()).Result
		for _, user := range m.Uses(entryID) {
			if inst := m.Instruction(user); inst.Opcode.IsTerminator() {
				c.reportf(user, "entry block %%%d is the target of %s", entryID, inst.Opcode)
			}
		}
	}
}

// checkReferences ensures function-local results are only referenced from
// inside their function, and that calls and entry points name functions.
func (c *checker) checkReferences() {
	m := c.m
	m.Walk(func(ref ir.Ref, inst *ir.Instruction) {
		owner, local := m.FunctionOf(ref)
		inst.ForEachID(func(i int, id ir.ID) {
			def, ok := m.Def(id)
			if !ok {
				return
			}
			if defFn, isLocal := m.FunctionOf(def); isLocal && m.Instruction(def).Opcode != ir.OpFunction {
				crossing := !local || owner != defFn
				if crossing && !inst.Opcode.IsDebug() && !inst.Opcode.IsAnnotation() {
					c.reportf(ref, "%s references %%%d local to another function", inst.Opcode, id)
				}
			}
			switch {
			case inst.Opcode == ir.OpFunctionCall && i == 1,
				inst.Opcode == ir.OpEntryPoint && i == 1:
				if m.Instruction(def).Opcode != ir.OpFunction {
					c.reportf(ref, "%s operand %%%d is not a function", inst.Opcode, id)
				}
			}
		})
	})
}
