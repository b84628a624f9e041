// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package haybale

import (
	"fmt"
	"iter"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"

	"github.com/Atul9/haybale/internal/fs"
)

// A Module couples a parsed LLVM IR module with the path it was loaded
// from. The path doubles as the module's name; source_filename directives
// are frequently absent from real-world IR, so the load path is the only
// identifier that is reliably present and unique.
type Module struct {
	*ir.Module

	// Name is the path the module was parsed from.
	Name string
}

// A Project is a collection of LLVM IR to be explored, consisting of one
// or more modules. Modules are immutable once added.
type Project struct {
	modules []*Module

	// Function-name index across all modules. Each key holds every
	// definition of that name, in module insertion order.
	fns funcTrie
}

// NewProject returns an empty Project. Modules are added with the Add*
// methods.
func NewProject() *Project {
	return &Project{fns: newFuncTrie()}
}

// FromPath constructs a Project from a path to a single LLVM IR file.
func FromPath(path string) (*Project, error) {
	p := NewProject()
	if err := p.AddPath(path); err != nil {
		return nil, err
	}
	return p, nil
}

// FromPaths constructs a Project from multiple LLVM IR files.
func FromPaths(paths ...string) (*Project, error) {
	p := NewProject()
	for _, path := range paths {
		if err := p.AddPath(path); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// FromDir constructs a Project from a directory containing LLVM IR files.
// All regular files in dir whose extension matches extn (given without a
// leading dot) are parsed and added.
func FromDir(dir, extn string) (*Project, error) {
	return FromDirWithExclude(dir, extn, nil)
}

// FromDirWithExclude is FromDir, except that files for which exclude
// returns true are skipped. exclude receives the full path of each
// candidate file.
func FromDirWithExclude(dir, extn string, exclude func(path string) bool) (*Project, error) {
	p := NewProject()
	if err := p.AddDirWithExclude(dir, extn, exclude); err != nil {
		return nil, err
	}
	return p, nil
}

// AddPath parses the LLVM IR file at path and appends it to the Project.
func (p *Project) AddPath(path string) error {
	ok, err := fs.IsRegular(path)
	if err != nil {
		return errors.Wrapf(err, "statting %s", path)
	}
	if !ok {
		return errors.Errorf("%s is not a regular file", path)
	}
	m, err := asm.ParseFile(path)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	p.appendModule(&Module{Module: m, Name: path})
	return nil
}

// AddDir parses every matching file in dir and appends the results to the
// Project. See FromDir.
func (p *Project) AddDir(dir, extn string) error {
	return p.AddDirWithExclude(dir, extn, nil)
}

// AddDirWithExclude parses every matching, non-excluded file in dir and
// appends the results to the Project. See FromDirWithExclude.
func (p *Project) AddDirWithExclude(dir, extn string, exclude func(path string) bool) error {
	ok, err := fs.IsDir(dir)
	if err != nil {
		return errors.Wrapf(err, "statting %s", dir)
	}
	if !ok {
		return errors.Errorf("%s is not a directory", dir)
	}

	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return errors.Wrapf(err, "reading directory %s", dir)
	}
	// Directory enumeration order is OS-dependent; sort so that repeated
	// construction from the same directory yields the same module order.
	sort.Sort(dirents)

	for _, de := range dirents {
		if isDir, err := de.IsDirOrSymlinkToDir(); err == nil && isDir {
			continue
		}
		// If directory-ness could not be determined, fall through and
		// attempt the parse so the underlying error surfaces.
		name := de.Name()
		ext := filepath.Ext(name)
		if ext == "" || strings.TrimPrefix(ext, ".") != extn {
			continue
		}
		path := filepath.Join(dir, name)
		if exclude != nil && exclude(path) {
			continue
		}
		if err := p.AddPath(path); err != nil {
			return err
		}
	}
	return nil
}

func (p *Project) appendModule(m *Module) {
	p.modules = append(p.modules, m)
	for _, f := range m.Funcs {
		p.fns.Append(f.Name(), funcEntry{fn: f, mod: m})
	}
}

// AllFunctions iterates over every function in the Project, together with
// the module it is defined in. Modules are visited in insertion order.
func (p *Project) AllFunctions() iter.Seq2[*ir.Func, *Module] {
	return func(yield func(*ir.Func, *Module) bool) {
		for _, m := range p.modules {
			for _, f := range m.Funcs {
				if !yield(f, m) {
					return
				}
			}
		}
	}
}

// AllGlobals iterates over every global variable in the Project, together
// with the module it comes from.
func (p *Project) AllGlobals() iter.Seq2[*ir.Global, *Module] {
	return func(yield func(*ir.Global, *Module) bool) {
		for _, m := range p.modules {
			for _, g := range m.Globals {
				if !yield(g, m) {
					return
				}
			}
		}
	}
}

// AllAliases iterates over every global alias in the Project, together
// with the module it comes from.
func (p *Project) AllAliases() iter.Seq2[*ir.Alias, *Module] {
	return func(yield func(*ir.Alias, *Module) bool) {
		for _, m := range p.modules {
			for _, a := range m.Aliases {
				if !yield(a, m) {
					return
				}
			}
		}
	}
}

// A NamedStruct is one occurrence of a named struct type in some module.
// Def is nil when the occurrence is opaque.
type NamedStruct struct {
	Name string
	Def  *types.StructType
}

// AllNamedStructTypes iterates over every named struct type occurrence in
// the Project, together with the module it comes from. Opaque occurrences
// are yielded with a nil Def.
func (p *Project) AllNamedStructTypes() iter.Seq2[NamedStruct, *Module] {
	return func(yield func(NamedStruct, *Module) bool) {
		for _, m := range p.modules {
			for _, td := range m.TypeDefs {
				st, ok := td.(*types.StructType)
				if !ok {
					continue
				}
				ns := NamedStruct{Name: st.TypeName}
				if !st.Opaque {
					ns.Def = st
				}
				if !yield(ns, m) {
					return
				}
			}
		}
	}
}

// ModuleNames iterates over the names of the modules which have been
// parsed and loaded into the Project, in insertion order.
func (p *Project) ModuleNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, m := range p.modules {
			if !yield(m.Name) {
				return
			}
		}
	}
}

// FunctionByName searches the Project for a function with the given name.
// If a matching function is found, both it and the module it was found in
// are returned.
//
// At most one function of a given name may exist across the entire
// Project; two modules each defining the same name is a caller bug, and
// FunctionByName panics with both module names.
func (p *Project) FunctionByName(name string) (*ir.Func, *Module, bool) {
	ents, ok := p.fns.Get(name)
	if !ok {
		return nil, nil, false
	}
	if len(ents) > 1 {
		panic(fmt.Sprintf("multiple functions found with name %q: one in module %q, another in module %q", name, ents[0].mod.Name, ents[1].mod.Name))
	}
	return ents[0].fn, ents[0].mod, true
}

// FunctionsWithPrefix iterates over every (function, module) pair whose
// function name begins with prefix, in lexicographic name order.
func (p *Project) FunctionsWithPrefix(prefix string) iter.Seq2[*ir.Func, *Module] {
	return func(yield func(*ir.Func, *Module) bool) {
		p.fns.WalkPrefix(prefix, func(ents []funcEntry) bool {
			for _, e := range ents {
				if !yield(e.fn, e.mod) {
					return true
				}
			}
			return false
		})
	}
}

// NamedStructTypeByName searches the Project for a named struct type with
// the given name, reconciling occurrences across modules. The returned
// definition is nil iff every occurrence of the name is opaque. The
// second return value is the module the definition came from.
//
// A concrete definition is always preferred over an opaque one. When two
// modules carry concrete definitions that are not structurally equal, a
// definition with an empty element list loses to a non-empty one;
// toolchains occasionally emit an empty struct body as a placeholder in
// some translation units. Genuinely conflicting definitions are a caller
// bug, and NamedStructTypeByName panics naming both modules and both
// definitions.
func (p *Project) NamedStructTypeByName(name string) (*types.StructType, *Module, bool) {
	var (
		curDef *types.StructType
		curMod *Module
		found  bool
	)
	for _, m := range p.modules {
		for _, td := range m.TypeDefs {
			st, ok := td.(*types.StructType)
			if !ok || st.TypeName != name {
				continue
			}
			var def *types.StructType
			if !st.Opaque {
				def = st
			}
			switch {
			case !found:
				// First occurrence of the name: new candidate.
				curDef, curMod, found = def, m, true
			case def == nil:
				// Opaque occurrence while some candidate already
				// exists; ignore it.
			case curDef == nil:
				// Concrete definition replaces an opaque candidate.
				curDef, curMod = def, m
			case structsEqual(curDef, def):
				// True duplicates; keep the candidate.
			case len(curDef.Fields) == 0:
				curDef, curMod = def, m
			case len(def.Fields) == 0:
				// Keep the non-empty candidate.
			default:
				panic(fmt.Sprintf("multiple named struct types found with name %q: the first was from module %q, the other was from module %q\n  first definition: %v\n  second definition: %v", name, curMod.Name, m.Name, curDef.LLString(), st.LLString()))
			}
		}
	}
	return curDef, curMod, found
}

// structsEqual reports whether two concrete struct definitions agree
// structurally: same packing, same element count, equal element types.
// Comparison is deliberately structural rather than nominal; both
// definitions carry the same type name by construction.
func structsEqual(a, b *types.StructType) bool {
	if a.Packed != b.Packed || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if !a.Fields[i].Equal(b.Fields[i]) {
			return false
		}
	}
	return true
}
