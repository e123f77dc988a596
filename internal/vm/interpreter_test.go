package vm

import (
	"bytes"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/fuzzerk/fuzzerk/internal/datam"
	"github.com/fuzzerk/fuzzerk/internal/fuzz"
	"github.com/fuzzerk/fuzzerk/internal/iobridge"
)

func prog(instrs ...Instruction) *Program {
	return &Program{
		Instructions: instrs,
		Labels:       map[string]int{},
		Funcs:        map[string]FuncDef{},
	}
}

func intLit(n int64) datam.Operand { return datam.Operand{Kind: datam.OpIntLiteral, IntLit: n} }
func intVar(name string) datam.Operand {
	return datam.Operand{Kind: datam.OpIntVar, VarName: name}
}
func anyVar(name string) datam.Operand {
	return datam.Operand{Kind: datam.OpAnyVar, VarName: name}
}

func TestArithmeticOpcodesComputeExpectedResults(t *testing.T) {
	ctx := newTestContext()
	p := prog(
		Instruction{Op: OpLetInt, Dst: "a", Srcs: []datam.Operand{intLit(5)}},
		Instruction{Op: OpLetInt, Dst: "b", Srcs: []datam.Operand{intLit(3)}},
		Instruction{Op: OpAdd, Dst: "c", Srcs: []datam.Operand{intVar("a"), intVar("b")}},
	)
	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, ok := ctx.GetInt("c"); !ok || v != 8 {
		t.Fatalf("c = (%d, %v), want (8, true)", v, ok)
	}
}

func TestDivByZeroIsRuntimeError(t *testing.T) {
	ctx := newTestContext()
	p := prog(
		Instruction{Op: OpLetInt, Dst: "a", Srcs: []datam.Operand{intLit(5)}},
		Instruction{Op: OpLetInt, Dst: "b", Srcs: []datam.Operand{intLit(0)}},
		Instruction{Op: OpDiv, Dst: "c", Srcs: []datam.Operand{intVar("a"), intVar("b")}},
	)
	err := Run(ctx, p, 0)
	if err == nil {
		t.Fatalf("expected a division-by-zero error")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Kind != KindRuntime {
		t.Fatalf("error = %v, want *Error{Kind: KindRuntime}", err)
	}
}

func TestRetWithEmptyCallStackIsOrphanRetError(t *testing.T) {
	ctx := newTestContext()
	p := prog(Instruction{Op: OpRet})
	err := Run(ctx, p, 0)
	if err == nil {
		t.Fatalf("expected ErrOrphanRet")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Err != ErrOrphanRet {
		t.Fatalf("error = %v, want wrapping ErrOrphanRet", err)
	}
}

func TestCallArityMismatchIsError(t *testing.T) {
	ctx := newTestContext()
	p := prog(
		Instruction{Op: OpCall, Target: "f", Args: []string{"onlyone"}},
		Instruction{Op: OpRet},
	)
	p.Funcs["f"] = FuncDef{Entry: 1, Params: []string{"x", "y"}}
	err := Run(ctx, p, 0)
	if err == nil {
		t.Fatalf("expected an arity mismatch error")
	}
	verr, ok := err.(*Error)
	if !ok || !errors.Is(verr.Err, ErrArityMismatch) {
		t.Fatalf("error = %v, want wrapping ErrArityMismatch", err)
	}
}

func TestCheckJumpThreeWayBranching(t *testing.T) {
	// a=1, b=2 -> lt branch taken, jumps to label "lessLbl" at index 4
	// which sets result=-1 and the program ends.
	ctx := newTestContext()
	p := prog(
		Instruction{Op: OpLetInt, Dst: "a", Srcs: []datam.Operand{intLit(1)}},
		Instruction{Op: OpLetInt, Dst: "b", Srcs: []datam.Operand{intLit(2)}},
		Instruction{Op: OpCheckJump, Srcs: []datam.Operand{intVar("a"), intVar("b")}, Targets: [3]string{"lessLbl", "eqLbl", "gtLbl"}},
		Instruction{Op: OpLetInt, Dst: "result", Srcs: []datam.Operand{intLit(0)}},
		Instruction{Op: OpLetInt, Dst: "result", Srcs: []datam.Operand{intLit(-1)}}, // lessLbl
	)
	p.Labels["lessLbl"] = 4
	p.Labels["eqLbl"] = 3
	p.Labels["gtLbl"] = 3

	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, ok := ctx.GetInt("result"); !ok || v != -1 {
		t.Fatalf("result = (%d, %v), want (-1, true)", v, ok)
	}
}

func TestFcGetAdvancesStepExactlyOncePerCall(t *testing.T) {
	ctx := newTestContext()
	chain := fuzz.NewChain(fuzz.LoopFixedStrings{List: []string{"a", "b", "c"}})
	ctx.Chains["fc1"] = chain

	p := prog(
		Instruction{Op: OpFcGet, Target: "fc1", Dst: "out"},
		Instruction{Op: OpFcGet, Target: "fc1", Dst: "out"},
	)
	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Step() != 2 {
		t.Fatalf("Step() = %d, want 2 (one increment per fcget call)", ctx.Step())
	}
	got, ok := ctx.GetBuf("out")
	if !ok || string(got) != "b" {
		t.Fatalf("out = (%q, %v), want (\"b\", true)", got, ok)
	}
}

func TestCallAliasingMutatesCallerVariable(t *testing.T) {
	ctx := newTestContext()
	ctx.SetInt("n", 1)

	// The call is the last instruction, so ret's return address falls
	// out of bounds and Run ends instead of re-entering the body.
	p := prog(
		Instruction{Op: OpJump, Target: "main"},
		Instruction{Op: OpInc, Dst: "x"}, // bump body
		Instruction{Op: OpRet},
		Instruction{Op: OpCall, Target: "bump", Args: []string{"n"}}, // main
	)
	p.Labels["main"] = 3
	p.Funcs["bump"] = FuncDef{Entry: 1, Params: []string{"x"}}

	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, ok := ctx.GetInt("n"); !ok || v != 2 {
		t.Fatalf("n = (%d, %v), want (2, true) — call should alias, not copy", v, ok)
	}
}

func TestBufsMergeConcatenatesInOrder(t *testing.T) {
	ctx := newTestContext()
	ctx.SetBuf("a", []byte("foo"))
	ctx.SetBuf("b", []byte("bar"))

	p := prog(Instruction{Op: OpBufsMerge, Dst: "out", Srcs: []datam.Operand{anyVar("a"), anyVar("b")}})
	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, ok := ctx.GetBuf("out")
	if !ok || !bytes.Equal(got, []byte("foobar")) {
		t.Fatalf("out = (%q, %v), want (\"foobar\", true)", got, ok)
	}
}

func TestBuf8RandomizeZeroCountLeavesBufferUnchanged(t *testing.T) {
	ctx := newTestContext()
	original := []byte{1, 2, 3, 4}
	ctx.SetBuf("buf", original)

	p := prog(Instruction{
		Op:  OpBuf8Randomize,
		Dst: "buf",
		Srcs: []datam.Operand{
			intLit(0),  // count = 0
			intLit(0),  // start
			intLit(3),  // end
			intLit(0),  // lo
			intLit(255), // hi
		},
	})
	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := ctx.GetBuf("buf")
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("buf = %v, want unchanged %v", got, original)
	}
}

func TestIfEqBufTakesBranchOnlyWhenEqual(t *testing.T) {
	ctx := newTestContext()
	ctx.SetBuf("a", []byte{1, 2})
	ctx.SetBuf("b", []byte{1, 2})
	ctx.SetInt("taken", 0)

	p := prog(
		Instruction{Op: OpIfEqBuf, Srcs: []datam.Operand{anyVar("a"), anyVar("b")}, Target: "yes"},
		Instruction{Op: OpJump, Target: "end"},
		Instruction{Op: OpLetInt, Dst: "taken", Srcs: []datam.Operand{intLit(1)}}, // yes
	)
	p.Labels["yes"] = 2
	p.Labels["end"] = 3

	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, ok := ctx.GetInt("taken"); !ok || v != 1 {
		t.Fatalf("taken = (%d, %v), want (1, true)", v, ok)
	}
}

// TestIfOpZeroArgCallDoesNotMisfireAsGotoLookup exercises the `if<op> A,
// B, call FUNC` form with zero actual arguments. Before IsCall, this
// form produced a length-0 Args slice indistinguishable from the goto
// form's nil Args, so takeBranch dispatched it as a label lookup and
// failed with a spurious "lookup miss" error instead of calling fn.
func TestIfOpZeroArgCallDoesNotMisfireAsGotoLookup(t *testing.T) {
	ctx := newTestContext()
	p := prog(
		Instruction{Op: OpLetInt, Dst: "a", Srcs: []datam.Operand{intLit(1)}},
		Instruction{Op: OpLetInt, Dst: "b", Srcs: []datam.Operand{intLit(2)}},
		Instruction{Op: OpJump, Target: "afterFn"},
		Instruction{Op: OpLetInt, Dst: "called", Srcs: []datam.Operand{intLit(1)}}, // fn body
		Instruction{Op: OpRet},
		// afterFn: the call form is the program's last instruction, so its
		// computed return address falls out of bounds and Run ends cleanly.
		Instruction{Op: OpIfLtInt, Srcs: []datam.Operand{intVar("a"), intVar("b")}, Target: "fn", IsCall: true},
	)
	p.Labels["afterFn"] = 5
	p.Funcs["fn"] = FuncDef{Entry: 3, Params: nil}

	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v, ok := ctx.GetInt("called"); !ok || v != 1 {
		t.Fatalf("called = (%d, %v), want (1, true) — zero-arg call form should call fn, not look up a label", v, ok)
	}
}

// The following tests dispatch each of the 5 I/O-bridge opcodes through
// execOne/Run, injecting an iobridge.MockBridge via ctx.SetIOBridge so
// the real console/file/tcp back-ends never enter the test.

func TestIobWriteDispatchesToBridgeWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mock := iobridge.NewMockBridge(ctrl)
	mock.EXPECT().Write([]byte("payload")).Return(len("payload"), nil)

	ctx := newTestContext()
	ctx.SetIOBridge("srv", mock)
	ctx.SetBuf("buf", []byte("payload"))

	p := prog(Instruction{Op: OpIobWrite, Dst: "srv", Srcs: []datam.Operand{anyVar("buf")}})
	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestIobFlushDispatchesToBridgeFlush(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mock := iobridge.NewMockBridge(ctrl)
	mock.EXPECT().Flush().Return(nil)

	ctx := newTestContext()
	ctx.SetIOBridge("srv", mock)

	p := prog(Instruction{Op: OpIobFlush, Dst: "srv"})
	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestIobReadDispatchesToBridgeReadAndStoresResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mock := iobridge.NewMockBridge(ctrl)
	mock.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		return copy(p, []byte("reply")), nil
	})

	ctx := newTestContext()
	ctx.SetIOBridge("srv", mock)

	p := prog(Instruction{Op: OpIobRead, Dst: "srv", Srcs: []datam.Operand{anyVar("into")}})
	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, ok := ctx.GetBuf("into")
	if !ok || !bytes.Equal(got, []byte("reply")) {
		t.Fatalf("into = (%q, %v), want (\"reply\", true)", got, ok)
	}
}

func TestIobCloseDispatchesToBridgeClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mock := iobridge.NewMockBridge(ctrl)
	mock.EXPECT().Close().Return(nil)

	ctx := newTestContext()
	ctx.SetIOBridge("srv", mock)

	p := prog(Instruction{Op: OpIobClose, Dst: "srv"})
	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := ctx.GetIOBridge("srv"); ok {
		t.Fatalf("GetIOBridge(srv) still found after iobclose")
	}
}

func TestIobNewClosesPreviouslyBoundBridge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mock := iobridge.NewMockBridge(ctrl)
	mock.EXPECT().Close().Return(nil)

	ctx := newTestContext()
	ctx.SetIOBridge("srv", mock)

	p := prog(Instruction{Op: OpIobNew, Dst: "srv", Addr: "none"})
	if err := Run(ctx, p, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := ctx.GetIOBridge("srv"); !ok {
		t.Fatalf("GetIOBridge(srv) not found after iobnew")
	}
}

func TestMaxStepsStopsExecutionWithoutError(t *testing.T) {
	ctx := newTestContext()
	p := prog(
		Instruction{Op: OpLetInt, Dst: "a", Srcs: []datam.Operand{intLit(0)}},
		Instruction{Op: OpJump, Target: "top"},
	)
	p.Labels["top"] = 1

	if err := Run(ctx, p, 3); err != nil {
		t.Fatalf("Run with maxSteps should stop cleanly, got error: %v", err)
	}
}
