// Package tree turns a flat list of comments into a forest of threads.
//
// Nodes live in an index-addressed arena while the forest is built, so parent
// links never form reference cycles and arbitrarily deep threads are handled
// with an explicit stack instead of recursion.
package tree

import (
	"slices"

	"github.com/example/discussion/services/discussion/internal/store"
)

// Node is a comment with its ordered replies.
type Node struct {
	store.Comment
	Children []Node `json:"children"`
}

// Leaf wraps a comment with an empty reply list.
func Leaf(c store.Comment) Node {
	return Node{Comment: c, Children: []Node{}}
}

// Assemble builds the forest for flat.
//
// Roots keep the order of flat. Replies at every depth are sorted oldest
// first, ties keeping input order. A comment whose parent is missing from flat
// becomes a root. A duplicated id keeps its first occurrence. Parent cycles are
// broken by promoting the cycle member that appears first in flat.
func Assemble(flat []store.Comment) []Node {
	a := newArena(flat, "")
	return a.materialize(a.roots())
}

// Subtree builds the thread rooted at id, treating id as a root even when its
// parent is present in flat. It reports false when id is not in flat.
func Subtree(flat []store.Comment, id string) (Node, bool) {
	a := newArena(flat, id)
	i, ok := a.index[id]
	if !ok {
		return Node{}, false
	}
	return a.materialize([]int{i})[0], true
}

type arena struct {
	items    []store.Comment
	index    map[string]int
	parent   []int
	children [][]int
}

func newArena(flat []store.Comment, forceRoot string) *arena {
	a := &arena{
		items: make([]store.Comment, 0, len(flat)),
		index: make(map[string]int, len(flat)),
	}
	for _, c := range flat {
		if _, dup := a.index[c.ID]; dup {
			continue
		}
		a.index[c.ID] = len(a.items)
		a.items = append(a.items, c)
	}

	n := len(a.items)
	a.parent = make([]int, n)
	a.children = make([][]int, n)
	for i, c := range a.items {
		a.parent[i] = -1
		if c.ParentID == nil || c.ID == forceRoot {
			continue
		}
		if p, ok := a.index[*c.ParentID]; ok {
			a.parent[i] = p
			a.children[p] = append(a.children[p], i)
		}
	}

	a.breakCycles()

	for i := range a.children {
		slices.SortStableFunc(a.children[i], func(x, y int) int {
			return a.items[x].CreatedAt.Compare(a.items[y].CreatedAt)
		})
	}
	return a
}

// breakCycles promotes one member of every cycle so that each node is
// reachable from a root.
func (a *arena) breakCycles() {
	reached := make([]bool, len(a.items))
	for i := range a.items {
		if a.parent[i] == -1 {
			a.mark(i, reached)
		}
	}
	for i := range a.items {
		if reached[i] {
			continue
		}
		// i is unreachable, so walking up from it must enter a cycle.
		seen := map[int]bool{}
		at := i
		for !seen[at] {
			seen[at] = true
			at = a.parent[at]
		}
		first := at
		for j := a.parent[at]; j != at; j = a.parent[j] {
			if j < first {
				first = j
			}
		}
		a.detach(first)
		a.mark(first, reached)
	}
}

func (a *arena) detach(i int) {
	p := a.parent[i]
	a.parent[i] = -1
	if p == -1 {
		return
	}
	a.children[p] = slices.DeleteFunc(a.children[p], func(c int) bool { return c == i })
}

func (a *arena) mark(root int, reached []bool) {
	stack := []int{root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[i] {
			continue
		}
		reached[i] = true
		stack = append(stack, a.children[i]...)
	}
}

func (a *arena) roots() []int {
	out := []int{}
	for i := range a.items {
		if a.parent[i] == -1 {
			out = append(out, i)
		}
	}
	return out
}

// materialize converts the arena below roots into nested Nodes. Nodes are
// built in reverse pre-order so every child exists before its parent.
func (a *arena) materialize(roots []int) []Node {
	var order []int
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, i)
		stack = append(stack, a.children[i]...)
	}

	built := make([]Node, len(a.items))
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		kids := make([]Node, len(a.children[i]))
		for j, c := range a.children[i] {
			kids[j] = built[c]
		}
		built[i] = Node{Comment: a.items[i], Children: kids}
	}

	out := make([]Node, len(roots))
	for j, r := range roots {
		out[j] = built[r]
	}
	return out
}
