// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package registry implements the named-entity registry and the flat
// string attribute map every simulation entity carries. It plays the role
// gofem's ele/factory.go allocator maps play for elements, generalised to
// every entity kind in the simulation (spec.md §2, component C2).
package registry

import (
	"sort"
	"strconv"

	"github.com/cpmech/gosl/chk"
)

// Attributes is a flat string→string map with typed accessors, loaded
// directly from a model-file element's tag attributes (spec.md §6).
type Attributes map[string]string

// String returns the raw attribute, or def if absent.
func (a Attributes) String(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}

// Float64 parses the attribute as a float, returning an error naming the
// offending key on failure (spec.md §7 "model error").
func (a Attributes) Float64(key string) (float64, error) {
	v, ok := a[key]
	if !ok {
		return 0, chk.Err("missing required attribute %q", key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, chk.Err("attribute %q=%q is not a valid number: %v", key, v, err)
	}
	return f, nil
}

// Float64Slice parses a space-separated list of floats, e.g. a MOI tensor
// or a Position triple.
func (a Attributes) Float64Slice(key string) ([]float64, error) {
	v, ok := a[key]
	if !ok {
		return nil, chk.Err("missing required attribute %q", key)
	}
	fields := splitFields(v)
	out := make([]float64, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, chk.Err("attribute %q element %q is not a valid number: %v", key, f, err)
		}
		out[i] = x
	}
	return out, nil
}

// Bool parses the attribute as a boolean, defaulting to def if absent.
func (a Attributes) Bool(key string, def bool) bool {
	v, ok := a[key]
	if !ok {
		return def
	}
	switch v {
	case "true", "True", "1", "yes":
		return true
	case "false", "False", "0", "no":
		return false
	}
	return def
}

// Int parses the attribute as an integer, defaulting to def if absent.
func (a Attributes) Int(key string, def int) int {
	v, ok := a[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// StringList splits a space-separated list of ids, e.g. TargetIDList.
func (a Attributes) StringList(key string) []string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	return splitFields(v)
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' || r == ',' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// Named is implemented by every simulation entity: it carries a unique
// string id within its kind (spec.md §3).
type Named interface {
	ID() string
}

// Registry is a name-indexed, insertion-ordered collection of one entity
// kind (bodies, markers, joints, ...). It is the "Simulation owns every
// entity in per-kind name-indexed maps" arena of spec.md §9.
type Registry[T Named] struct {
	byName map[string]T
	order  []string
}

// NewRegistry allocates an empty registry.
func NewRegistry[T Named]() *Registry[T] {
	return &Registry[T]{byName: make(map[string]T)}
}

// Add inserts an entity, failing if its id is already registered.
func (r *Registry[T]) Add(e T) error {
	id := e.ID()
	if id == "" {
		return chk.Err("entity has an empty id")
	}
	if _, dup := r.byName[id]; dup {
		return chk.Err("duplicate id %q", id)
	}
	r.byName[id] = e
	r.order = append(r.order, id)
	return nil
}

// Get looks up an entity by id.
func (r *Registry[T]) Get(id string) (T, bool) {
	v, ok := r.byName[id]
	return v, ok
}

// MustGet looks up an entity by id, returning an error naming both the id
// and the expected kind when absent — used by loaders resolving references.
func (r *Registry[T]) MustGet(id, kind string) (T, error) {
	v, ok := r.byName[id]
	if !ok {
		var zero T
		return zero, chk.Err("unresolved %s reference %q", kind, id)
	}
	return v, nil
}

// All returns every entity in insertion order.
func (r *Registry[T]) All() []T {
	out := make([]T, len(r.order))
	for i, id := range r.order {
		out[i] = r.byName[id]
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry[T]) Len() int { return len(r.order) }

// IDs returns every registered id, sorted, for deterministic error
// reporting (e.g. the loader's "minimal set of unresolvable ids" message).
func (r *Registry[T]) IDs() []string {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}
