// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package haybale

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

var (
	basicPath    = filepath.Join("testdata", "irfiles", "basic.ll")
	loopPath     = filepath.Join("testdata", "irfiles", "loop.ll")
	structsPath  = filepath.Join("testdata", "irfiles", "structs.ll")
	structs2Path = filepath.Join("testdata", "irfiles", "structs2.ll")
	irDir        = filepath.Join("testdata", "irfiles")
)

func TestSingleFileProject(t *testing.T) {
	proj, err := FromPath(basicPath)
	if err != nil {
		t.Fatalf("failed to create project: %s", err)
	}
	f, m, ok := proj.FunctionByName("no_args_zero")
	if !ok {
		t.Fatal("failed to find function no_args_zero")
	}
	if f.Name() != "no_args_zero" {
		t.Errorf("wrong function: got %s", f.Name())
	}
	if m.Name != basicPath {
		t.Errorf("wrong module: got %s, want %s", m.Name, basicPath)
	}
}

func TestDoubleFileProject(t *testing.T) {
	proj, err := FromPaths(basicPath, loopPath)
	if err != nil {
		t.Fatalf("failed to create project: %s", err)
	}
	_, m, ok := proj.FunctionByName("no_args_zero")
	if !ok || m.Name != basicPath {
		t.Errorf("no_args_zero: ok=%v module=%v, want module %s", ok, m, basicPath)
	}
	_, m, ok = proj.FunctionByName("while_loop")
	if !ok || m.Name != loopPath {
		t.Errorf("while_loop: ok=%v module=%v, want module %s", ok, m, loopPath)
	}

	// Enumeration follows module insertion order.
	var names []string
	for f := range proj.AllFunctions() {
		names = append(names, f.Name())
	}
	want := []string{"no_args_zero", "no_args_nozero", "one_arg", "two_args", "branching", "while_loop"}
	if !slices.Equal(names, want) {
		t.Errorf("function enumeration order: got %v, want %v", names, want)
	}
}

func TestDirectoryProject(t *testing.T) {
	proj, err := FromDir(irDir, "ll")
	if err != nil {
		t.Fatalf("failed to create project: %s", err)
	}
	_, m, ok := proj.FunctionByName("no_args_zero")
	if !ok || m.Name != basicPath {
		t.Errorf("no_args_zero: ok=%v module=%v, want module %s", ok, m, basicPath)
	}
	_, m, ok = proj.FunctionByName("while_loop")
	if !ok || m.Name != loopPath {
		t.Errorf("while_loop: ok=%v module=%v, want module %s", ok, m, loopPath)
	}
}

func TestDirectoryProjectWithExclude(t *testing.T) {
	proj, err := FromDirWithExclude(irDir, "ll", func(path string) bool {
		return strings.TrimSuffix(filepath.Base(path), ".ll") == "basic"
	})
	if err != nil {
		t.Fatalf("failed to create project: %s", err)
	}
	if _, _, ok := proj.FunctionByName("while_loop"); !ok {
		t.Error("failed to find function while_loop, which should be present")
	}
	if _, _, ok := proj.FunctionByName("no_args_zero"); ok {
		t.Error("found function no_args_zero, which is from a file that should have been excluded")
	}
}

func TestProjectDeterminism(t *testing.T) {
	load := func() []string {
		proj, err := FromDir(irDir, "ll")
		if err != nil {
			t.Fatalf("failed to create project: %s", err)
		}
		var names []string
		for name := range proj.ModuleNames() {
			names = append(names, name)
		}
		return names
	}
	first := load()
	for i := 0; i < 3; i++ {
		if got := load(); !slices.Equal(got, first) {
			t.Fatalf("module order changed between constructions: %v vs %v", first, got)
		}
	}
}

func TestFunctionsWithPrefix(t *testing.T) {
	proj, err := FromPaths(basicPath, loopPath)
	if err != nil {
		t.Fatalf("failed to create project: %s", err)
	}
	var names []string
	for f := range proj.FunctionsWithPrefix("no_args") {
		names = append(names, f.Name())
	}
	want := []string{"no_args_nozero", "no_args_zero"}
	if !slices.Equal(names, want) {
		t.Errorf("prefix walk: got %v, want %v", names, want)
	}
}

func TestDuplicateFunctionFatal(t *testing.T) {
	m1 := ir.NewModule()
	m1.NewFunc("dup", types.I64)
	m2 := ir.NewModule()
	m2.NewFunc("dup", types.I64)

	proj := NewProject()
	proj.appendModule(&Module{Module: m1, Name: "first.ll"})
	proj.appendModule(&Module{Module: m2, Name: "second.ll"})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic on duplicate function lookup")
		}
		msg := r.(string)
		if !strings.Contains(msg, "first.ll") || !strings.Contains(msg, "second.ll") {
			t.Errorf("panic should name both modules, got: %s", msg)
		}
	}()
	proj.FunctionByName("dup")
}

func TestNamedStructReconciliation(t *testing.T) {
	proj, err := FromPaths(structsPath, structs2Path)
	if err != nil {
		t.Fatalf("failed to create project: %s", err)
	}

	tests := []struct {
		name       string
		wantFields int
		wantMod    string
		wantOpaque bool
		wantFound  bool
	}{
		// Concrete candidate; later opaque occurrence is ignored.
		{name: "struct.Pair", wantFields: 2, wantMod: structsPath, wantFound: true},
		// Concrete definition replaces an opaque candidate.
		{name: "struct.Late", wantFields: 1, wantMod: structs2Path, wantFound: true},
		// Empty placeholder body loses to the non-empty definition.
		{name: "struct.Placeholder", wantFields: 2, wantMod: structs2Path, wantFound: true},
		// Every occurrence opaque: found, but with no definition.
		{name: "struct.Ghost", wantOpaque: true, wantMod: structsPath, wantFound: true},
		{name: "struct.Missing", wantFound: false},
	}
	for _, tt := range tests {
		def, m, ok := proj.NamedStructTypeByName(tt.name)
		if ok != tt.wantFound {
			t.Errorf("%s: found=%v, want %v", tt.name, ok, tt.wantFound)
			continue
		}
		if !ok {
			continue
		}
		if m.Name != tt.wantMod {
			t.Errorf("%s: module %s, want %s", tt.name, m.Name, tt.wantMod)
		}
		if tt.wantOpaque {
			if def != nil {
				t.Errorf("%s: expected an opaque result, got %v", tt.name, def)
			}
			continue
		}
		if def == nil {
			t.Errorf("%s: expected a concrete definition", tt.name)
			continue
		}
		if len(def.Fields) != tt.wantFields {
			t.Errorf("%s: %d fields, want %d", tt.name, len(def.Fields), tt.wantFields)
		}
	}
}

func TestConflictingStructsFatal(t *testing.T) {
	mkmod := func(name string, fields ...types.Type) *Module {
		m := ir.NewModule()
		st := types.NewStruct(fields...)
		st.SetName("struct.Clash")
		m.TypeDefs = append(m.TypeDefs, st)
		return &Module{Module: m, Name: name}
	}

	proj := NewProject()
	proj.appendModule(mkmod("first.ll", types.I32))
	proj.appendModule(mkmod("second.ll", types.I64, types.I64))

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic on conflicting struct definitions")
		}
		msg := r.(string)
		if !strings.Contains(msg, "first.ll") || !strings.Contains(msg, "second.ll") {
			t.Errorf("panic should name both modules, got: %s", msg)
		}
	}()
	proj.NamedStructTypeByName("struct.Clash")
}

func TestAllNamedStructTypes(t *testing.T) {
	proj, err := FromPath(structsPath)
	if err != nil {
		t.Fatalf("failed to create project: %s", err)
	}
	occurrences := make(map[string]bool)
	for ns, m := range proj.AllNamedStructTypes() {
		if m.Name != structsPath {
			t.Errorf("%s: module %s, want %s", ns.Name, m.Name, structsPath)
		}
		occurrences[ns.Name] = ns.Def != nil
	}
	if len(occurrences) != 4 {
		t.Fatalf("expected 4 named struct occurrences, got %v", occurrences)
	}
	if !occurrences["struct.Pair"] {
		t.Error("struct.Pair should have a definition")
	}
	if occurrences["struct.Late"] {
		t.Error("struct.Late should be opaque in this module")
	}
}
