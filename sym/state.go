// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sym implements the symbolic execution state: a solver session
// coupled with an environment mapping IR values to symbolic terms, and
// the backtracking discipline used to explore branches depth-first.
package sym

import (
	"fmt"
	"log"
	"math/big"

	"github.com/aclements/go-z3/z3"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

type valueKind uint8

const (
	kindBV valueKind = iota
	kindBool
)

// symValue is the sum of the two term sorts the environment stores.
// Projection to one sort is partial; a mismatch is a caller bug.
type symValue struct {
	kind valueKind
	bv   z3.BV
	b    z3.Bool
}

func (sv symValue) String() string {
	if sv.kind == kindBV {
		return fmt.Sprintf("BV( %v )", sv.bv)
	}
	return fmt.Sprintf("Bool( %v )", sv.b)
}

// A backtrackPoint is a saved exploration frontier: the block to resume
// at, the block executed just prior (needed to evaluate phis there), and
// the edge constraint to assert if and when the frontier is revisited.
type backtrackPoint struct {
	next       *ir.Block
	prev       *ir.Block
	constraint z3.Bool
}

func (bp backtrackPoint) String() string {
	return fmt.Sprintf("<backtrackPoint to execute block %v with constraint %v>", bp.next.Ident(), bp.constraint)
}

// A State holds everything the engine knows about one path prefix: a
// solver session, the environment binding IR values to symbolic terms,
// and the stack of backtracking points for branches not yet taken.
//
// The State borrows its z3 context, which must outlive the State and
// every term it issued. All methods are to be called from a single
// goroutine; a State is never shared.
type State struct {
	ctx        *z3.Context
	solver     *z3.Solver
	vars       map[value.Value]symValue
	backtracks []backtrackPoint

	// Trace logger. nil silences tracing entirely.
	tl *log.Logger
}

// NewState returns a fresh State backed by ctx. Trace output, if tl is
// non-nil, is written one line per solver or environment interaction.
func NewState(ctx *z3.Context, tl *log.Logger) *State {
	return &State{
		ctx:    ctx,
		solver: z3.NewSolver(ctx),
		vars:   make(map[value.Value]symValue),
		tl:     tl,
	}
}

// Ctx returns the z3 context the State was built on.
func (s *State) Ctx() *z3.Context {
	return s.ctx
}

func (s *State) tracef(format string, args ...interface{}) {
	if s.tl == nil {
		return
	}
	s.tl.Printf(format, args...)
}

// Assert adds cond as a permanent constraint at the current solver
// scope.
func (s *State) Assert(cond z3.Bool) {
	s.tracef("asserting %v", cond)
	s.solver.Assert(cond)
}

// Check reports whether the current constraint set is satisfiable.
func (s *State) Check() (bool, error) {
	s.tracef("solving with constraints:\n%v", s.solver)
	return s.solver.Check()
}

// CheckWithExtra reports whether the current constraint set remains
// satisfiable with each condition in conds additionally asserted. The
// extra conditions are not persisted: they are asserted inside a scratch
// scope which is popped again on every exit path, even when conds is
// empty.
func (s *State) CheckWithExtra(conds []z3.Bool) (bool, error) {
	s.solver.Push()
	defer s.solver.Pop()
	for _, c := range conds {
		s.solver.Assert(c)
	}
	return s.solver.Check()
}

// Model returns a satisfying assignment. It must only be called when the
// immediately preceding Check (or CheckWithExtra) reported satisfiable;
// otherwise behavior is whatever the underlying solver does.
func (s *State) Model() *z3.Model {
	m := s.solver.Model()
	s.tracef("returned model:\n%v", m)
	return m
}

// BindBV associates v with the bitvector term bv.
func (s *State) BindBV(v value.Value, bv z3.BV) {
	s.tracef("binding %v = %v", v.Ident(), bv)
	s.vars[v] = symValue{kind: kindBV, bv: bv}
}

// BindBool associates v with the boolean term b.
func (s *State) BindBool(v value.Value, b z3.Bool) {
	s.tracef("binding %v = %v", v.Ident(), b)
	s.vars[v] = symValue{kind: kindBool, b: b}
}

// BV returns the bitvector term previously bound for v. A missing
// binding, or one of boolean sort, is a caller bug.
func (s *State) BV(v value.Value) z3.BV {
	sv := s.lookup(v)
	if sv.kind != kindBV {
		panic(fmt.Sprintf("value %v is bound to %v, not a bitvector", v.Ident(), sv))
	}
	return sv.bv
}

// Bool returns the boolean term previously bound for v. A missing
// binding, or one of bitvector sort, is a caller bug.
func (s *State) Bool(v value.Value) z3.Bool {
	sv := s.lookup(v)
	if sv.kind != kindBool {
		panic(fmt.Sprintf("value %v is bound to %v, not a boolean", v.Ident(), sv))
	}
	return sv.b
}

func (s *State) lookup(v value.Value) symValue {
	s.tracef("looking up %v", v.Ident())
	sv, ok := s.vars[v]
	if !ok {
		keys := make([]string, 0, len(s.vars))
		for k := range s.vars {
			keys = append(keys, k.Ident())
		}
		panic(fmt.Sprintf("failed to find value %v in environment with keys %v", v.Ident(), keys))
	}
	return sv
}

// boolBinding reports the boolean term bound for v, if v is bound and of
// boolean sort. Unlike Bool it never panics; the interpreter uses it to
// widen i1 results that were stored as booleans.
func (s *State) boolBinding(v value.Value) (z3.Bool, bool) {
	sv, ok := s.vars[v]
	if !ok || sv.kind != kindBool {
		var zero z3.Bool
		return zero, false
	}
	return sv.b, true
}

// OperandBV translates an IR operand into a bitvector term. An integer
// constant becomes a fresh literal of the operand's bit-width holding
// its zero-extended value; any other integer operand must already be
// bound in the environment, having been defined earlier along this path.
// Non-integer operands are unsupported.
func (s *State) OperandBV(v value.Value) z3.BV {
	it, ok := v.Type().(*types.IntType)
	if !ok {
		panic(fmt.Sprintf("OperandBV: unsupported operand %v of type %v", v.Ident(), v.Type()))
	}
	if c, ok := v.(*constant.Int); ok {
		return s.bvLiteral(zeroExtended(c), int(it.BitSize))
	}
	return s.BV(v)
}

// OperandBool translates an i1 IR operand into a boolean term. A
// constant becomes a literal (nonzero means true); any other i1 operand
// must already be bound in the environment. A binding of bitvector sort
// (parameters are bound as one-bit bitvectors) is materialized as a
// comparison against zero. Operands of any other bit-width are
// unsupported.
func (s *State) OperandBool(v value.Value) z3.Bool {
	it, ok := v.Type().(*types.IntType)
	if !ok || it.BitSize != 1 {
		panic(fmt.Sprintf("OperandBool: operand %v of type %v is not an i1", v.Ident(), v.Type()))
	}
	if c, ok := v.(*constant.Int); ok {
		return s.ctx.FromBool(zeroExtended(c).Sign() != 0)
	}
	sv := s.lookup(v)
	if sv.kind == kindBool {
		return sv.b
	}
	return sv.bv.NE(s.ctx.FromInt(0, s.ctx.BVSort(1)).(z3.BV))
}

func (s *State) bvLiteral(u *big.Int, bits int) z3.BV {
	return s.ctx.FromBigInt(u, s.ctx.BVSort(bits)).(z3.BV)
}

// zeroExtended returns c's value reduced modulo 2^w, where w is c's
// bit-width.
func zeroExtended(c *constant.Int) *big.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(c.Typ.BitSize))
	mask.Sub(mask, big.NewInt(1))
	return new(big.Int).And(c.X, mask)
}

// SaveBacktrackPoint records that execution could later resume at next
// (whose phis will be evaluated against predecessor prev) under the
// given edge constraint. A solver scope is pushed immediately, so every
// constraint asserted from here on belongs to the branch being pursued
// now. The constraint itself is not asserted until the point is
// reverted to.
func (s *State) SaveBacktrackPoint(next, prev *ir.Block, constraint z3.Bool) {
	s.tracef("saving backtracking point: would enter block %v with constraint %v", next.Ident(), constraint)
	s.solver.Push()
	s.backtracks = append(s.backtracks, backtrackPoint{next: next, prev: prev, constraint: constraint})
}

// RevertToBacktrackPoint abandons the current branch: it pops the most
// recent backtracking point, discards every constraint asserted since
// the matching save, asserts the saved edge constraint, and returns the
// block to resume at along with its predecessor. It reports false when
// no points remain.
//
// The environment is deliberately not rolled back. Values are in SSA
// form and loops are out of scope, so anything the alternate path reads
// was defined before the branch and still holds its intended term.
func (s *State) RevertToBacktrackPoint() (next, prev *ir.Block, ok bool) {
	if len(s.backtracks) == 0 {
		return nil, nil, false
	}
	bp := s.backtracks[len(s.backtracks)-1]
	s.backtracks = s.backtracks[:len(s.backtracks)-1]
	s.tracef("reverting to backtracking point %v", bp)
	s.solver.Pop()
	s.Assert(bp.constraint)
	return bp.next, bp.prev, true
}
