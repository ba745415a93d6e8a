package catalog

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const expanderMemoSize = 512

// Expander computes transitive closures over the permission implication
// hierarchy. Closure is an iterative worklist walk with a visited set, so it
// terminates on any input, including a hierarchy that accidentally contains
// a cycle. Results are memoised per starting permission.
type Expander struct {
	hierarchy map[Permission][]Permission
	memo      *lru.Cache[Permission, []Permission]
}

// NewExpander builds an Expander over the given implication edges.
func NewExpander(hierarchy map[Permission][]Permission) *Expander {
	memo, err := lru.New[Permission, []Permission](expanderMemoSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &Expander{hierarchy: hierarchy, memo: memo}
}

// Expand returns the permission plus everything it implies, directly or
// transitively.
func (e *Expander) Expand(p Permission) []Permission {
	if cached, ok := e.memo.Get(p); ok {
		return cached
	}
	visited := NewSet()
	worklist := []Permission{p}
	for len(worklist) > 0 {
		current := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if visited.Has(current) {
			continue
		}
		visited.Add(current)
		worklist = append(worklist, e.hierarchy[current]...)
	}
	closure := visited.List()
	e.memo.Add(p, closure)
	return closure
}

// ExpandAll returns the closure of the union of the given permissions.
func (e *Expander) ExpandAll(perms []Permission) []Permission {
	result := NewSet()
	for _, p := range perms {
		for _, implied := range e.Expand(p) {
			result.Add(implied)
		}
	}
	return result.List()
}

// ExpandSet is ExpandAll over a Set.
func (e *Expander) ExpandSet(perms Set) Set {
	return NewSet(e.ExpandAll(perms.List())...)
}

// Validate walks the hierarchy and reports the first cycle found. The
// expander itself tolerates cycles; Validate exists so misconfigured
// hierarchies are caught at startup rather than shipped silently.
func (e *Expander) Validate() error {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[Permission]int, len(e.hierarchy))
	var visit func(p Permission, path []Permission) error
	visit = func(p Permission, path []Permission) error {
		switch state[p] {
		case done:
			return nil
		case inProgress:
			return fmt.Errorf("catalog: permission hierarchy cycle through %q (path %v)", p, path)
		}
		state[p] = inProgress
		for _, implied := range e.hierarchy[p] {
			if err := visit(implied, append(path, p)); err != nil {
				return err
			}
		}
		state[p] = done
		return nil
	}
	for p := range e.hierarchy {
		if err := visit(p, nil); err != nil {
			return err
		}
	}
	return nil
}
