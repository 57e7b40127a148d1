package ir

import (
	"fmt"
	"maps"
	"slices"
)

type section uint8

const (
	sectionNone section = iota
	sectionGlobal
	sectionFunction
	sectionBlock
)

// place records which container owns an arena slot.
type place struct {
	section section
	fn      Ref // OpFunction of the owning function
	block   Ref // OpLabel of the owning block
}

// Function is a sequence of blocks delimited by OpFunction and
// OpFunctionEnd. Blocks holds the label Refs in layout order; the first one
// is the entry block.
type Function struct {
	Def    Ref
	Params []Ref
	Blocks []Ref
	End    Ref
}

// Entry returns the label of the entry block, or NoRef for a declaration.
func (f *Function) Entry() Ref {
	if len(f.Blocks) == 0 {
		return NoRef
	}
	return f.Blocks[0]
}

// Block is a label followed by its body. The last body instruction is the
// terminator once the module is well formed.
type Block struct {
	Label Ref
	Body  []Ref
}

// Module is the mutable root of the graph. Instructions live in an arena
// addressed by Ref; containers only hold Refs.
type Module struct {
	arena     []*Instruction
	places    []place
	globals   []Ref
	functions []*Function
	funcs     map[Ref]*Function
	blocks    map[Ref]*Block
	names     map[ID]string
	live      int

	index index
}

func NewModule() *Module {
	return &Module{
		funcs:  make(map[Ref]*Function),
		blocks: make(map[Ref]*Block),
		names:  make(map[ID]string),
		index:  index{stale: true},
	}
}

func (m *Module) alloc(inst *Instruction, p place) Ref {
	ref := Ref(len(m.arena))
	m.arena = append(m.arena, inst)
	m.places = append(m.places, p)
	m.live++
	m.index.add(ref, inst)
	return ref
}

// AppendGlobal adds inst at the end of the global section.
func (m *Module) AppendGlobal(inst *Instruction) Ref {
	ref := m.alloc(inst, place{section: sectionGlobal, fn: NoRef, block: NoRef})
	m.globals = append(m.globals, ref)
	return ref
}

// AppendFunction starts a new function at the end of the module. The caller
// closes it with SetFunctionEnd.
func (m *Module) AppendFunction(def *Instruction) *Function {
	ref := Ref(len(m.arena))
	m.alloc(def, place{section: sectionFunction, fn: ref, block: NoRef})
	fn := &Function{Def: ref, End: NoRef}
	m.functions = append(m.functions, fn)
	m.funcs[ref] = fn
	return fn
}

func (m *Module) AppendParam(fn *Function, inst *Instruction) Ref {
	ref := m.alloc(inst, place{section: sectionFunction, fn: fn.Def, block: NoRef})
	fn.Params = append(fn.Params, ref)
	return ref
}

func (m *Module) SetFunctionEnd(fn *Function, inst *Instruction) Ref {
	ref := m.alloc(inst, place{section: sectionFunction, fn: fn.Def, block: NoRef})
	fn.End = ref
	return ref
}

// AppendBlock opens a block labelled by label at the end of fn.
func (m *Module) AppendBlock(fn *Function, label *Instruction) *Block {
	ref := Ref(len(m.arena))
	m.alloc(label, place{section: sectionBlock, fn: fn.Def, block: ref})
	b := &Block{Label: ref}
	fn.Blocks = append(fn.Blocks, ref)
	m.blocks[ref] = b
	return b
}

func (m *Module) AppendToBlock(b *Block, inst *Instruction) Ref {
	fn := m.places[b.Label].fn
	ref := m.alloc(inst, place{section: sectionBlock, fn: fn, block: b.Label})
	b.Body = append(b.Body, ref)
	return ref
}

// SetName records the symbolic spelling of id used by the assembly codec.
func (m *Module) SetName(id ID, name string) { m.names[id] = name }

// NameOf returns the symbolic spelling of id, or "" if it only has a number.
func (m *Module) NameOf(id ID) string { return m.names[id] }

// IDString spells id as it appears in assembly: %name or %N.
func (m *Module) IDString(id ID) string {
	if name := m.names[id]; name != "" {
		return "%" + name
	}
	return fmt.Sprintf("%%%d", id)
}

// Globals returns the global section in order. The slice must not be
// modified.
func (m *Module) Globals() []Ref { return m.globals }

// Functions returns the functions in order. The result must not be modified.
func (m *Module) Functions() []*Function { return m.functions }

// Instruction returns the instruction at ref, or nil if it was removed.
func (m *Module) Instruction(ref Ref) *Instruction {
	if ref < 0 || int(ref) >= len(m.arena) {
		return nil
	}
	return m.arena[ref]
}

func (m *Module) Alive(ref Ref) bool { return m.Instruction(ref) != nil }

// Function returns the function whose OpFunction is at ref.
func (m *Module) Function(ref Ref) (*Function, bool) {
	fn, ok := m.funcs[ref]
	return fn, ok
}

// Block returns the block whose OpLabel is at ref.
func (m *Module) Block(label Ref) (*Block, bool) {
	b, ok := m.blocks[label]
	return b, ok
}

// BlockByID resolves a label identifier to its block.
func (m *Module) BlockByID(id ID) (*Block, bool) {
	ref, ok := m.Def(id)
	if !ok {
		return nil, false
	}
	return m.Block(ref)
}

// FunctionOf returns the function owning ref, if any.
func (m *Module) FunctionOf(ref Ref) (*Function, bool) {
	if !m.Alive(ref) {
		return nil, false
	}
	p := m.places[ref]
	if p.section != sectionFunction && p.section != sectionBlock {
		return nil, false
	}
	return m.Function(p.fn)
}

// BlockOf returns the block owning ref, if any. A label belongs to its own
// block.
func (m *Module) BlockOf(ref Ref) (*Block, bool) {
	if !m.Alive(ref) || m.places[ref].section != sectionBlock {
		return nil, false
	}
	return m.Block(m.places[ref].block)
}

// IsGlobal reports whether ref lives in the global section.
func (m *Module) IsGlobal(ref Ref) bool {
	return m.Alive(ref) && m.places[ref].section == sectionGlobal
}

// Terminator returns the last instruction of b, or NoRef for an empty block.
func (m *Module) Terminator(b *Block) Ref {
	if len(b.Body) == 0 {
		return NoRef
	}
	return b.Body[len(b.Body)-1]
}

// InstructionCount is the number of live instructions.
func (m *Module) InstructionCount() int { return m.live }

// Walk visits every live instruction in layout order.
func (m *Module) Walk(fn func(ref Ref, inst *Instruction)) {
	for _, ref := range m.globals {
		fn(ref, m.arena[ref])
	}
	for _, f := range m.functions {
		fn(f.Def, m.arena[f.Def])
		for _, p := range f.Params {
			fn(p, m.arena[p])
		}
		for _, label := range f.Blocks {
			fn(label, m.arena[label])
			for _, ref := range m.blocks[label].Body {
				fn(ref, m.arena[ref])
			}
		}
		if f.End != NoRef {
			fn(f.End, m.arena[f.End])
		}
	}
}

// Clone returns a deep copy sharing no mutable state with m. Refs keep
// their meaning in the copy; the copy's index is rebuilt on first use.
func (m *Module) Clone() *Module {
	c := &Module{
		arena:   make([]*Instruction, len(m.arena)),
		places:  slices.Clone(m.places),
		globals: slices.Clone(m.globals),
		funcs:   make(map[Ref]*Function, len(m.funcs)),
		blocks:  make(map[Ref]*Block, len(m.blocks)),
		names:   maps.Clone(m.names),
		live:    m.live,
		index:   index{stale: true},
	}
	for i, inst := range m.arena {
		if inst != nil {
			c.arena[i] = inst.Clone()
		}
	}
	c.functions = make([]*Function, len(m.functions))
	for i, f := range m.functions {
		cf := &Function{
			Def:    f.Def,
			Params: slices.Clone(f.Params),
			Blocks: slices.Clone(f.Blocks),
			End:    f.End,
		}
		c.functions[i] = cf
		c.funcs[f.Def] = cf
	}
	for label, b := range m.blocks {
		c.blocks[label] = &Block{Label: label, Body: slices.Clone(b.Body)}
	}
	return c
}

func (m *Module) String() string {
	return fmt.Sprintf("module(%d instructions, %d functions)", m.live, len(m.functions))
}
