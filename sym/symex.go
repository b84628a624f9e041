// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sym

import (
	"fmt"
	"log"

	"github.com/aclements/go-z3/z3"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

// ExecFunction binds each parameter of f to a named bitvector constant
// of its width, then interprets from the entry block until a ret is
// reached. It returns the parameter terms and the term the interpreted
// path returns.
//
// Only loop-free functions over integer types are supported; anything
// else indicates a caller bug and panics.
func ExecFunction(st *State, f *ir.Func) (args []z3.BV, ret z3.BV) {
	if len(f.Blocks) == 0 {
		panic(fmt.Sprintf("cannot execute %v: function declaration without a body", f.Ident()))
	}
	args = make([]z3.BV, len(f.Params))
	for i, p := range f.Params {
		it, ok := p.Typ.(*types.IntType)
		if !ok {
			panic(fmt.Sprintf("unsupported parameter %v of type %v in %v", p.Ident(), p.Typ, f.Ident()))
		}
		name := p.Name()
		if name == "" {
			name = p.Ident()
		}
		bv := st.Ctx().Const(name, st.Ctx().BVSort(int(it.BitSize))).(z3.BV)
		st.BindBV(p, bv)
		args[i] = bv
	}
	return args, ExecFromBlock(st, f.Blocks[0], nil)
}

// ExecFromBlock interprets starting at bb, with prev as the predecessor
// block for phi evaluation (nil when bb is the entry block), and runs
// until a ret is reached. At each conditional branch the true edge is
// pursued and a backtracking point is saved for the false edge.
func ExecFromBlock(st *State, bb, prev *ir.Block) z3.BV {
	for {
		for _, inst := range bb.Insts {
			execInst(st, inst, prev)
		}
		switch term := bb.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				panic(fmt.Sprintf("cannot execute a void return in block %v", bb.Ident()))
			}
			return st.OperandBV(term.X)
		case *ir.TermBr:
			bb, prev = term.Target, bb
		case *ir.TermCondBr:
			cond := st.OperandBool(term.Cond)
			taken := term.TargetTrue
			other := term.TargetFalse
			st.SaveBacktrackPoint(other, bb, cond.Not())
			st.Assert(cond)
			bb, prev = taken, bb
		default:
			panic(fmt.Sprintf("unsupported terminator in block %v: %v", bb.Ident(), term.LLString()))
		}
	}
}

func execInst(st *State, inst ir.Instruction, prev *ir.Block) {
	switch in := inst.(type) {
	case *ir.InstAdd:
		st.BindBV(in, st.OperandBV(in.X).Add(st.OperandBV(in.Y)))
	case *ir.InstSub:
		st.BindBV(in, st.OperandBV(in.X).Sub(st.OperandBV(in.Y)))
	case *ir.InstMul:
		st.BindBV(in, st.OperandBV(in.X).Mul(st.OperandBV(in.Y)))
	case *ir.InstUDiv:
		st.BindBV(in, st.OperandBV(in.X).UDiv(st.OperandBV(in.Y)))
	case *ir.InstSDiv:
		st.BindBV(in, st.OperandBV(in.X).SDiv(st.OperandBV(in.Y)))
	case *ir.InstURem:
		st.BindBV(in, st.OperandBV(in.X).URem(st.OperandBV(in.Y)))
	case *ir.InstSRem:
		st.BindBV(in, st.OperandBV(in.X).SRem(st.OperandBV(in.Y)))
	case *ir.InstAnd:
		st.BindBV(in, st.OperandBV(in.X).And(st.OperandBV(in.Y)))
	case *ir.InstOr:
		st.BindBV(in, st.OperandBV(in.X).Or(st.OperandBV(in.Y)))
	case *ir.InstXor:
		st.BindBV(in, st.OperandBV(in.X).Xor(st.OperandBV(in.Y)))
	case *ir.InstShl:
		st.BindBV(in, st.OperandBV(in.X).Lsh(st.OperandBV(in.Y)))
	case *ir.InstLShr:
		st.BindBV(in, st.OperandBV(in.X).URsh(st.OperandBV(in.Y)))
	case *ir.InstAShr:
		st.BindBV(in, st.OperandBV(in.X).SRsh(st.OperandBV(in.Y)))
	case *ir.InstICmp:
		st.BindBool(in, icmp(in.Pred, st.OperandBV(in.X), st.OperandBV(in.Y)))
	case *ir.InstZExt:
		st.BindBV(in, widen(st, in.From, in.To, false))
	case *ir.InstSExt:
		st.BindBV(in, widen(st, in.From, in.To, true))
	case *ir.InstTrunc:
		to := intWidth(in.To)
		st.BindBV(in, st.OperandBV(in.From).Extract(to-1, 0))
	case *ir.InstSelect:
		cond := st.OperandBool(in.Cond)
		st.BindBV(in, cond.IfThenElse(st.OperandBV(in.X), st.OperandBV(in.Y)).(z3.BV))
	case *ir.InstPhi:
		execPhi(st, in, prev)
	default:
		panic(fmt.Sprintf("unsupported instruction: %v", inst.LLString()))
	}
}

func execPhi(st *State, in *ir.InstPhi, prev *ir.Block) {
	if prev == nil {
		panic(fmt.Sprintf("phi %v in a block with no predecessor", in.Ident()))
	}
	for _, inc := range in.Incs {
		if inc.Pred != prev {
			continue
		}
		if it, ok := in.Typ.(*types.IntType); ok && it.BitSize == 1 {
			// i1 incoming values may be held as booleans (icmp
			// results); keep the sort the operand already has.
			if b, ok := st.boolBinding(inc.X); ok {
				st.BindBool(in, b)
				return
			}
			st.BindBool(in, st.OperandBool(inc.X))
			return
		}
		st.BindBV(in, st.OperandBV(inc.X))
		return
	}
	panic(fmt.Sprintf("phi %v has no incoming value for predecessor %v", in.Ident(), prev.Ident()))
}

// widen implements zext and sext. i1 sources bound as booleans are
// first materialized as a value of the destination width.
func widen(st *State, from value.Value, to types.Type, signed bool) z3.BV {
	toW := intWidth(to)
	if b, ok := st.boolBinding(from); ok {
		one := int64(1)
		if signed {
			one = -1
		}
		t := st.Ctx().FromInt(one, st.Ctx().BVSort(toW)).(z3.BV)
		f := st.Ctx().FromInt(0, st.Ctx().BVSort(toW)).(z3.BV)
		return b.IfThenElse(t, f).(z3.BV)
	}
	bv := st.OperandBV(from)
	fromW := intWidth(from.Type())
	if signed {
		return bv.SignExtend(toW - fromW)
	}
	return bv.ZeroExtend(toW - fromW)
}

func intWidth(t types.Type) int {
	it, ok := t.(*types.IntType)
	if !ok {
		panic(fmt.Sprintf("expected an integer type, got %v", t))
	}
	return int(it.BitSize)
}

func icmp(pred enum.IPred, x, y z3.BV) z3.Bool {
	switch pred {
	case enum.IPredEQ:
		return x.Eq(y)
	case enum.IPredNE:
		return x.NE(y)
	case enum.IPredSGT:
		return x.SGT(y)
	case enum.IPredSGE:
		return x.SGE(y)
	case enum.IPredSLT:
		return x.SLT(y)
	case enum.IPredSLE:
		return x.SLE(y)
	case enum.IPredUGT:
		return x.UGT(y)
	case enum.IPredUGE:
		return x.UGE(y)
	case enum.IPredULT:
		return x.ULT(y)
	case enum.IPredULE:
		return x.ULE(y)
	default:
		panic(fmt.Sprintf("unsupported icmp predicate %v", pred))
	}
}

// FindZero searches for a concrete assignment of f's arguments under
// which f returns zero. It explores paths depth-first: interpret to a
// ret, assert the returned term equals zero, and on unsatisfiability
// revert to the most recent backtracking point and resume. It returns
// the argument tuple and true at the first satisfying leaf, or false
// when exploration completes without one. Either outcome is a
// successful analysis, not an error; the error return covers solver
// failures only.
func FindZero(ctx *z3.Context, f *ir.Func, tl *log.Logger) ([]uint64, bool, error) {
	st := NewState(ctx, tl)
	args, ret := ExecFunction(st, f)

	rt, ok := f.Sig.RetType.(*types.IntType)
	if !ok {
		panic(fmt.Sprintf("unsupported return type %v of %v", f.Sig.RetType, f.Ident()))
	}
	zero := ctx.FromInt(0, ctx.BVSort(int(rt.BitSize))).(z3.BV)

	for {
		st.Assert(ret.Eq(zero))
		sat, err := st.Check()
		if err != nil {
			return nil, false, errors.Wrapf(err, "checking satisfiability of %v", f.Ident())
		}
		if sat {
			model := st.Model()
			vals := make([]uint64, len(args))
			for i, a := range args {
				v := model.Eval(a, true).(z3.BV)
				u, _, ok := v.AsUint64()
				if !ok {
					panic(fmt.Sprintf("parameter %d of %v is wider than 64 bits", i, f.Ident()))
				}
				vals[i] = u
			}
			return vals, true, nil
		}
		next, prev, ok := st.RevertToBacktrackPoint()
		if !ok {
			return nil, false, nil
		}
		ret = ExecFromBlock(st, next, prev)
	}
}
