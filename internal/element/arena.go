package element

import "sync"

// slot holds one live NativeNode plus its refcount and generation. A
// generation counter distinguishes a freed-and-reused slot from the handle
// that used to occupy it, so a stale Element never silently resolves to an
// unrelated node (spec §9: "ref-counted interior mutability for element
// caches" redesigned as an arena of indices plus a native refcount).
type slot struct {
	node NativeNode
	refs int
	gen  uint64
	free bool
}

// Arena owns the native nodes bound to Element handles created through it.
// One Arena is typically scoped to a single workflow execution or a single
// tree walk: Reset releases every live node at once when the scope ends.
type Arena struct {
	mu    sync.Mutex
	slots []slot
	freeL []int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Bind wraps a freshly resolved NativeNode in a new Element handle with
// refcount 1.
func (a *Arena) Bind(node NativeNode) Element {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.freeL); n > 0 {
		idx := a.freeL[n-1]
		a.freeL = a.freeL[:n-1]
		a.slots[idx].node = node
		a.slots[idx].refs = 1
		a.slots[idx].free = false
		a.slots[idx].gen++
		return Element{arena: a, slot: idx, gen: a.slots[idx].gen}
	}

	a.slots = append(a.slots, slot{node: node, refs: 1, gen: 1})
	idx := len(a.slots) - 1
	return Element{arena: a, slot: idx, gen: 1}
}

func (a *Arena) lookup(idx int, gen uint64) (NativeNode, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if idx < 0 || idx >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[idx]
	if s.free || s.gen != gen {
		return nil, false
	}
	return s.node, true
}

func (a *Arena) retain(idx int, gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if idx < 0 || idx >= len(a.slots) {
		return
	}
	s := &a.slots[idx]
	if s.free || s.gen != gen {
		return
	}
	s.refs++
}

func (a *Arena) release(idx int, gen uint64) {
	a.mu.Lock()
	if idx < 0 || idx >= len(a.slots) {
		a.mu.Unlock()
		return
	}
	s := &a.slots[idx]
	if s.free || s.gen != gen {
		a.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		a.mu.Unlock()
		return
	}
	node := s.node
	s.node = nil
	s.free = true
	a.freeL = append(a.freeL, idx)
	a.mu.Unlock()

	node.Release()
}

// Len returns the number of currently live (non-freed) slots, mainly for
// tests and diagnostics.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, s := range a.slots {
		if !s.free {
			n++
		}
	}
	return n
}

// Reset releases every live node in the arena, e.g. at the end of a
// workflow execution or a tree walk scope.
func (a *Arena) Reset() {
	a.mu.Lock()
	var toRelease []NativeNode
	for i := range a.slots {
		s := &a.slots[i]
		if s.free {
			continue
		}
		toRelease = append(toRelease, s.node)
		s.node = nil
		s.free = true
		s.refs = 0
	}
	a.slots = a.slots[:0]
	a.freeL = a.freeL[:0]
	a.mu.Unlock()

	for _, node := range toRelease {
		node.Release()
	}
}
