package vm

import (
	"github.com/fuzzerk/fuzzerk/internal/fuzz"
	"github.com/fuzzerk/fuzzerk/internal/iobridge"
	"github.com/fuzzerk/fuzzerk/internal/variant"
)

// FuncDef is a user-defined function binding: the instruction index its
// body starts at, and its ordered formal parameter names.
type FuncDef struct {
	Entry  int
	Params []string
}

// Context holds all VM state (spec §3, §4.F): the four variable
// namespaces, label/function symbol tables, the call stack, the locals
// aliasing stack, the instruction pointer and the fuzz step counter.
//
// Grounded on the teacher's single owning `context` struct
// (go/interpreter/lfvm/interpreter.go): one mutable object the
// interpreter borrows per step, no globals, no thread-locals.
type Context struct {
	ints map[string]int64
	strs map[string]string
	bufs map[string][]byte
	iobs map[string]iobridge.Bridge

	lbls  map[string]int
	funcs map[string]FuncDef

	callstack []int
	locals    []map[string]string

	iptr          int
	commonUpdate  bool
	stepu         int

	Fuzzers *fuzz.Registry
	Chains  map[string]*fuzz.Chain

	Tracer *Tracer
}

// NewContext returns an empty Context ready to run a Program.
func NewContext(fuzzers *fuzz.Registry, chains map[string]*fuzz.Chain) *Context {
	return &Context{
		ints:    map[string]int64{},
		strs:    map[string]string{},
		bufs:    map[string][]byte{},
		iobs:    map[string]iobridge.Bridge{},
		lbls:    map[string]int{},
		funcs:   map[string]FuncDef{},
		Fuzzers: fuzzers,
		Chains:  chains,
	}
}

// resolveLocal maps a textual variable name to the name it actually
// binds to in the global namespaces, following the topmost locals
// frame. Each frame already stores fully-resolved actual names (call
// setup resolves transitively once, spec §4.F), so this is a single
// lookup, not a walk up the stack.
func (c *Context) resolveLocal(name string) string {
	if len(c.locals) == 0 {
		return name
	}
	frame := c.locals[len(c.locals)-1]
	if actual, ok := frame[name]; ok {
		return actual
	}
	return name
}

// forgetName removes name from every kind namespace, enforcing the
// invariant that a name is globally unique across ints/strs/bufs at any
// moment (spec §3 lifecycle).
func (c *Context) forgetName(name string) {
	delete(c.ints, name)
	delete(c.strs, name)
	delete(c.bufs, name)
}

func (c *Context) SetInt(name string, v int64) {
	name = c.resolveLocal(name)
	c.forgetName(name)
	c.ints[name] = v
}

func (c *Context) SetStr(name string, v string) {
	name = c.resolveLocal(name)
	c.forgetName(name)
	c.strs[name] = v
}

func (c *Context) SetBuf(name string, v []byte) {
	name = c.resolveLocal(name)
	c.forgetName(name)
	cp := make([]byte, len(v))
	copy(cp, v)
	c.bufs[name] = cp
}

func (c *Context) GetInt(name string) (int64, bool) {
	v, ok := c.ints[c.resolveLocal(name)]
	return v, ok
}

func (c *Context) GetStr(name string) (string, bool) {
	v, ok := c.strs[c.resolveLocal(name)]
	return v, ok
}

func (c *Context) GetBuf(name string) ([]byte, bool) {
	v, ok := c.bufs[c.resolveLocal(name)]
	return v, ok
}

// ResolveAny implements the fixed any-var resolution order: int ->
// string -> buffer, first hit wins (spec §4.F).
func (c *Context) ResolveAny(name string) (variant.Variant, bool) {
	resolved := c.resolveLocal(name)
	if v, ok := c.ints[resolved]; ok {
		return variant.Int(v), true
	}
	if v, ok := c.strs[resolved]; ok {
		return variant.Str(v), true
	}
	if v, ok := c.bufs[resolved]; ok {
		return variant.Buf(v), true
	}
	return variant.Variant{}, false
}

func (c *Context) GetIOBridge(id string) (iobridge.Bridge, bool) {
	b, ok := c.iobs[c.resolveLocal(id)]
	return b, ok
}

// SetIOBridge installs b under id, closing and discarding whatever
// bridge was previously bound there (spec §4.F: "close any existing
// bridge at ID, open a new one").
func (c *Context) SetIOBridge(id string, b iobridge.Bridge) {
	resolved := c.resolveLocal(id)
	if old, ok := c.iobs[resolved]; ok && old != nil {
		_ = old.Close()
	}
	c.iobs[resolved] = b
}

func (c *Context) CloseIOBridge(id string) bool {
	resolved := c.resolveLocal(id)
	b, ok := c.iobs[resolved]
	if !ok {
		return false
	}
	if err := b.Close(); err != nil {
		logBridgeError(c, "iobclose", err)
	}
	delete(c.iobs, resolved)
	return true
}

func (c *Context) Label(name string) (int, bool) {
	idx, ok := c.lbls[name]
	return idx, ok
}

func (c *Context) Func(name string) (FuncDef, bool) {
	f, ok := c.funcs[name]
	return f, ok
}

// Step returns the current fuzz step counter.
func (c *Context) Step() int { return c.stepu }

// IPtr returns the current instruction pointer, mainly for tracing and
// tests.
func (c *Context) IPtr() int { return c.iptr }

// CallDepth returns how many frames deep the call stack currently is.
func (c *Context) CallDepth() int { return len(c.callstack) }
