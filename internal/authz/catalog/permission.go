package catalog

import (
	"sort"
	"strings"
)

// Permission is an atomic authorization unit following the
// resource.action[.scope] convention, e.g. "ip_assets.edit_own".
type Permission string

// Wildcard grants every permission on the platform.
const Wildcard Permission = "*"

// Namespace returns the resource segment of the permission, i.e. the part
// before the first dot. The global wildcard has an empty namespace.
func (p Permission) Namespace() string {
	s := string(p)
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return s[:idx]
	}
	return ""
}

// IsWildcard reports whether the permission is the global wildcard or a
// namespace wildcard such as "licenses.*".
func (p Permission) IsWildcard() bool {
	return p == Wildcard || strings.HasSuffix(string(p), ".*")
}

// Satisfies reports whether holding p grants the required permission.
// Exact match, the global wildcard and namespace wildcards all satisfy.
func (p Permission) Satisfies(required Permission) bool {
	if p == required || p == Wildcard {
		return true
	}
	if ns, ok := strings.CutSuffix(string(p), ".*"); ok {
		return required.Namespace() == ns
	}
	return false
}

// Set is an unordered collection of permissions.
type Set map[Permission]struct{}

// NewSet builds a Set from the given permissions.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts a permission into the set.
func (s Set) Add(p Permission) {
	s[p] = struct{}{}
}

// Has reports exact membership.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Union merges other into s and returns s.
func (s Set) Union(other Set) Set {
	for p := range other {
		s[p] = struct{}{}
	}
	return s
}

// List returns the members sorted lexicographically.
func (s Set) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
