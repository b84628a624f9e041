// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package haybale

import (
	"github.com/armon/go-radix"
	"github.com/llir/llvm/ir"
)

// Typed implementation of a radix tree keyed by function name. This is
// just a simple wrapper that lets us avoid having to type assert
// anywhere else, cleaning up other code a bit.

// funcEntry records one definition of a function name: the function
// itself and the module it is defined in.
type funcEntry struct {
	fn  *ir.Func
	mod *Module
}

type funcTrie struct {
	t *radix.Tree
}

func newFuncTrie() funcTrie {
	return funcTrie{
		t: radix.New(),
	}
}

// Get looks up a specific name, returning every definition recorded for
// it (in module insertion order) and whether any was found.
func (t funcTrie) Get(name string) ([]funcEntry, bool) {
	if v, has := t.t.Get(name); has {
		return v.([]funcEntry), has
	}
	return nil, false
}

// Append records an additional definition of name.
func (t funcTrie) Append(name string, e funcEntry) {
	ents, _ := t.Get(name)
	t.t.Insert(name, append(ents, e))
}

// Len returns the number of distinct names in the tree.
func (t funcTrie) Len() int {
	return t.t.Len()
}

// WalkPrefix visits, in lexicographic name order, the entry lists of
// every name beginning with prefix. The walk stops early if fn returns
// true.
func (t funcTrie) WalkPrefix(prefix string, fn func(ents []funcEntry) bool) {
	t.t.WalkPrefix(prefix, func(s string, v interface{}) bool {
		return fn(v.([]funcEntry))
	})
}
