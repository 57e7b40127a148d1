package ir

import (
	"maps"
	"slices"
)

// index is the derived def/use cache. It is maintained incrementally by the
// mutation primitives while fresh and rebuilt from the arena when stale.
type index struct {
	stale bool
	defs  map[ID]Ref
	dups  map[ID]int
	uses  map[ID]map[Ref]int
}

func (x *index) add(ref Ref, inst *Instruction) {
	if x.stale {
		return
	}
	if inst.HasResult() {
		if _, exists := x.defs[inst.Result]; exists {
			x.dups[inst.Result]++
		} else {
			x.defs[inst.Result] = ref
		}
	}
	inst.ForEachID(func(_ int, id ID) { x.addUse(id, ref) })
}

func (x *index) remove(ref Ref, inst *Instruction) {
	if x.stale {
		return
	}
	if inst.HasResult() && x.defs[inst.Result] == ref {
		delete(x.defs, inst.Result)
	}
	inst.ForEachID(func(_ int, id ID) { x.dropUse(id, ref) })
}

func (x *index) addUse(id ID, ref Ref) {
	if x.stale {
		return
	}
	users := x.uses[id]
	if users == nil {
		users = make(map[Ref]int)
		x.uses[id] = users
	}
	users[ref]++
}

func (x *index) dropUse(id ID, ref Ref) {
	if x.stale {
		return
	}
	users := x.uses[id]
	if users == nil {
		return
	}
	if users[ref] <= 1 {
		delete(users, ref)
	} else {
		users[ref]--
	}
	if len(users) == 0 {
		delete(x.uses, id)
	}
}

// EnsureIndex rebuilds a stale index now. After it returns, queries do not
// write to the module, so concurrent readers are safe until the next
// mutation.
func (m *Module) EnsureIndex() { m.ensureIndex() }

func (m *Module) ensureIndex() *index {
	if !m.index.stale {
		return &m.index
	}
	m.index = index{
		defs: make(map[ID]Ref),
		dups: make(map[ID]int),
		uses: make(map[ID]map[Ref]int),
	}
	m.Walk(func(ref Ref, inst *Instruction) { m.index.add(ref, inst) })
	return &m.index
}

// Def returns the instruction defining id.
func (m *Module) Def(id ID) (Ref, bool) {
	ref, ok := m.ensureIndex().defs[id]
	return ref, ok
}

// Duplicates returns identifiers defined more than once.
func (m *Module) Duplicates() []ID {
	ids := slices.Collect(maps.Keys(m.ensureIndex().dups))
	slices.Sort(ids)
	return ids
}

// Uses returns the instructions referencing id, ordered by Ref.
func (m *Module) Uses(id ID) []Ref {
	users := m.ensureIndex().uses[id]
	refs := slices.Collect(maps.Keys(users))
	slices.Sort(refs)
	return refs
}

// NumUses returns the number of distinct instructions referencing id.
func (m *Module) NumUses(id ID) int { return len(m.ensureIndex().uses[id]) }

// UsedOnlyBy reports whether every user of id satisfies keep.
func (m *Module) UsedOnlyBy(id ID, keep func(ref Ref, inst *Instruction) bool) bool {
	for ref := range m.ensureIndex().uses[id] {
		if !keep(ref, m.arena[ref]) {
			return false
		}
	}
	return true
}

// ReferencedIDs returns every identifier used as an operand, sorted.
func (m *Module) ReferencedIDs() []ID {
	ids := slices.Collect(maps.Keys(m.ensureIndex().uses))
	slices.Sort(ids)
	return ids
}
