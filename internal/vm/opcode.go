package vm

import "fmt"

// Opcode identifies an instruction. Grounded on the teacher's OpCode
// type (go/interpreter/lfvm/opcode.go): a small integer enum, not a
// class hierarchy, dispatched via a single switch in the interpreter.
type Opcode int

const (
	OpNop Opcode = iota
	OpLetStr
	OpLetInt
	OpInc
	OpDec
	OpAdd
	OpSub
	OpMult
	OpDiv
	OpMod
	OpIobNew
	OpIobWrite
	OpIobFlush
	OpIobRead
	OpIobClose
	OpIfLtInt  // iflt.i
	OpIfGtInt  // ifgt.i
	OpIfLeInt  // ifle.i
	OpIfGeInt  // ifge.i
	OpIfEqBuf  // ifeq.b
	OpIfNeBuf  // ifne.b
	OpCheckJump
	OpJump // jump / goto
	OpCall
	OpRet
	OpSleepMsec
	OpFcGet
	OpBufNew
	OpLetBuf       // letbuf / letbuf.b
	OpLetBufString // letbuf.s
	OpBuf8Randomize
	OpBufsMerge
	OpBufMerged       // bufmerged / bufmerged.b
	OpBufMergedString // bufmerged.s
)

var opcodeNames = map[Opcode]string{
	OpNop:              "nop",
	OpLetStr:           "letstr",
	OpLetInt:           "letint",
	OpInc:              "inc",
	OpDec:              "dec",
	OpAdd:              "add",
	OpSub:              "sub",
	OpMult:             "mult",
	OpDiv:              "div",
	OpMod:              "mod",
	OpIobNew:           "iobnew",
	OpIobWrite:         "iobwrite",
	OpIobFlush:         "iobflush",
	OpIobRead:          "iobread",
	OpIobClose:         "iobclose",
	OpIfLtInt:          "iflt.i",
	OpIfGtInt:          "ifgt.i",
	OpIfLeInt:          "ifle.i",
	OpIfGeInt:          "ifge.i",
	OpIfEqBuf:          "ifeq.b",
	OpIfNeBuf:          "ifne.b",
	OpCheckJump:        "checkjump",
	OpJump:             "jump",
	OpCall:             "call",
	OpRet:              "ret",
	OpSleepMsec:        "sleepmsec",
	OpFcGet:            "fcget",
	OpBufNew:           "bufnew",
	OpLetBuf:           "letbuf",
	OpLetBufString:     "letbuf.s",
	OpBuf8Randomize:    "buf8randomize",
	OpBufsMerge:        "bufsmerge",
	OpBufMerged:        "bufmerged",
	OpBufMergedString:  "bufmerged.s",
}

// opcodeAliases maps alternate spellings accepted by the assembler onto
// the canonical Opcode.
var opcodeAliases = map[string]Opcode{
	"goto":       OpJump,
	"letbuf.b":   OpLetBuf,
	"bufmerged.b": OpBufMerged,
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("opcode(%d)", int(o))
}

var mnemonicToOpcode = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, n := range opcodeNames {
		m[n] = op
	}
	return m
}()

// LookupOpcode resolves a source-text mnemonic (including aliases) to
// its canonical Opcode.
func LookupOpcode(name string) (Opcode, bool) {
	if op, ok := mnemonicToOpcode[name]; ok {
		return op, true
	}
	if op, ok := opcodeAliases[name]; ok {
		return op, true
	}
	return 0, false
}
