package ir

import "strings"

// Opcode is the textual opcode name of an instruction, e.g. "OpBranch".
type Opcode string

const (
	OpNop                  Opcode = "OpNop"
	OpCapability           Opcode = "OpCapability"
	OpExtension            Opcode = "OpExtension"
	OpExtInstImport        Opcode = "OpExtInstImport"
	OpExtInst              Opcode = "OpExtInst"
	OpMemoryModel          Opcode = "OpMemoryModel"
	OpEntryPoint           Opcode = "OpEntryPoint"
	OpExecutionMode        Opcode = "OpExecutionMode"
	OpSource               Opcode = "OpSource"
	OpSourceExtension      Opcode = "OpSourceExtension"
	OpSourceContinued      Opcode = "OpSourceContinued"
	OpString               Opcode = "OpString"
	OpName                 Opcode = "OpName"
	OpMemberName           Opcode = "OpMemberName"
	OpLine                 Opcode = "OpLine"
	OpNoLine               Opcode = "OpNoLine"
	OpModuleProcessed      Opcode = "OpModuleProcessed"
	OpDecorate             Opcode = "OpDecorate"
	OpMemberDecorate       Opcode = "OpMemberDecorate"
	OpDecorationGroup      Opcode = "OpDecorationGroup"
	OpGroupDecorate        Opcode = "OpGroupDecorate"
	OpGroupMemberDecorate  Opcode = "OpGroupMemberDecorate"
	OpDecorateId           Opcode = "OpDecorateId"
	OpDecorateString       Opcode = "OpDecorateString"
	OpMemberDecorateString Opcode = "OpMemberDecorateString"

	OpTypeVoid     Opcode = "OpTypeVoid"
	OpTypeBool     Opcode = "OpTypeBool"
	OpTypeInt      Opcode = "OpTypeInt"
	OpTypeFloat    Opcode = "OpTypeFloat"
	OpTypeVector   Opcode = "OpTypeVector"
	OpTypePointer  Opcode = "OpTypePointer"
	OpTypeFunction Opcode = "OpTypeFunction"
	OpTypeStruct   Opcode = "OpTypeStruct"

	OpConstantTrue  Opcode = "OpConstantTrue"
	OpConstantFalse Opcode = "OpConstantFalse"
	OpConstant      Opcode = "OpConstant"
	OpUndef         Opcode = "OpUndef"
	OpVariable      Opcode = "OpVariable"

	OpFunction          Opcode = "OpFunction"
	OpFunctionParameter Opcode = "OpFunctionParameter"
	OpFunctionEnd       Opcode = "OpFunctionEnd"
	OpFunctionCall      Opcode = "OpFunctionCall"

	OpLabel               Opcode = "OpLabel"
	OpPhi                 Opcode = "OpPhi"
	OpSelectionMerge      Opcode = "OpSelectionMerge"
	OpLoopMerge           Opcode = "OpLoopMerge"
	OpBranch              Opcode = "OpBranch"
	OpBranchConditional   Opcode = "OpBranchConditional"
	OpSwitch              Opcode = "OpSwitch"
	OpReturn              Opcode = "OpReturn"
	OpReturnValue         Opcode = "OpReturnValue"
	OpUnreachable         Opcode = "OpUnreachable"
	OpKill                Opcode = "OpKill"
	OpTerminateInvocation Opcode = "OpTerminateInvocation"

	OpLoad       Opcode = "OpLoad"
	OpStore      Opcode = "OpStore"
	OpCopyMemory Opcode = "OpCopyMemory"
)

var terminators = map[Opcode]bool{
	OpBranch:              true,
	OpBranchConditional:   true,
	OpSwitch:              true,
	OpReturn:              true,
	OpReturnValue:         true,
	OpUnreachable:         true,
	OpKill:                true,
	OpTerminateInvocation: true,
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool { return terminators[op] }

func (op Opcode) IsType() bool { return strings.HasPrefix(string(op), "OpType") }

func (op Opcode) IsConstant() bool {
	return strings.HasPrefix(string(op), "OpConstant") || strings.HasPrefix(string(op), "OpSpecConstant")
}

// IsAnnotation reports whether op belongs to the decoration family.
func (op Opcode) IsAnnotation() bool {
	switch op {
	case OpDecorate, OpMemberDecorate, OpDecorationGroup, OpGroupDecorate,
		OpGroupMemberDecorate, OpDecorateId, OpDecorateString, OpMemberDecorateString:
		return true
	}
	return false
}

// IsDebug reports whether op only carries debug information.
func (op Opcode) IsDebug() bool {
	switch op {
	case OpSource, OpSourceExtension, OpSourceContinued, OpString, OpName,
		OpMemberName, OpLine, OpNoLine, OpModuleProcessed:
		return true
	}
	return false
}

var sideEffects = map[Opcode]bool{
	OpStore:                         true,
	OpCopyMemory:                    true,
	OpFunctionCall:                  true,
	OpExtInst:                       true,
	OpKill:                          true,
	OpTerminateInvocation:           true,
	"OpControlBarrier":              true,
	"OpMemoryBarrier":               true,
	"OpEmitVertex":                  true,
	"OpEndPrimitive":                true,
	"OpEmitStreamVertex":            true,
	"OpEndStreamPrimitive":          true,
	"OpImageWrite":                  true,
	"OpCopyMemorySized":             true,
	"OpBeginInvocationInterlockEXT": true,
	"OpEndInvocationInterlockEXT":   true,
}

// HasSideEffects reports whether removing an instruction with this opcode
// could change observable behaviour even if its result is unused.
func (op Opcode) HasSideEffects() bool {
	return sideEffects[op] || strings.HasPrefix(string(op), "OpAtomic")
}

// IsStructural reports whether op delimits functions or blocks. Structural
// instructions are only removed through RemoveFunction and RemoveBlock.
func (op Opcode) IsStructural() bool {
	switch op {
	case OpFunction, OpFunctionParameter, OpFunctionEnd, OpLabel:
		return true
	}
	return false
}

// IsMerge reports whether op is a structured control flow merge instruction.
func (op Opcode) IsMerge() bool { return op == OpSelectionMerge || op == OpLoopMerge }
