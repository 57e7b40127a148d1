package asm

import (
	"strings"
	"testing"

	"github.com/gnolang/irreduce/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `; a small fragment shader
               OpCapability Shader
          %1 = OpExtInstImport "GLSL.std.450"
               OpMemoryModel Logical GLSL450
               OpEntryPoint Fragment %main "main"
               OpName %main "main \"entry\""
       %void = OpTypeVoid
          %3 = OpTypeFunction %void
       %main = OpFunction %void None %3
          %5 = OpLabel ; entry
               OpReturn
               OpFunctionEnd
`

func TestParse(t *testing.T) {
	t.Parallel()
	m, err := ParseString(sample)
	require.NoError(t, err)

	assert.Len(t, m.Globals(), 7)
	require.Len(t, m.Functions(), 1)
	fn := m.Functions()[0]
	assert.Len(t, fn.Blocks, 1)
	assert.NotEqual(t, ir.NoRef, fn.End)

	// Symbolic ids are numbered after the largest numeric id.
	def := m.Instruction(fn.Def)
	assert.Equal(t, ir.ID(6), def.Result)
	assert.Equal(t, ir.ID(7), def.Operands[0].ID)
	assert.Equal(t, "main", m.NameOf(6))
	assert.Equal(t, "void", m.NameOf(7))

	name := m.Instruction(m.Globals()[4])
	require.Equal(t, ir.OpName, name.Opcode)
	assert.Equal(t, ir.StringOperand(`main "entry"`), name.Operands[1])
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	m, err := ParseString(sample)
	require.NoError(t, err)

	text := Format(m)
	assert.Contains(t, text, "       %main = OpFunction %void None %3\n")
	assert.Contains(t, text, `OpName %main "main \"entry\""`)
	assert.NotContains(t, text, "; entry")

	again, err := ParseString(text)
	require.NoError(t, err)
	assert.Equal(t, text, Format(again))
	assert.Equal(t, Fingerprint(m), Fingerprint(again))
}

func TestFingerprintChangesWithContent(t *testing.T) {
	t.Parallel()
	m, err := ParseString(sample)
	require.NoError(t, err)
	before := Fingerprint(m)

	require.NoError(t, m.RemoveInstruction(m.Globals()[4]))
	assert.NotEqual(t, before, Fingerprint(m))
	assert.Len(t, before, 64)
}

func TestFormatInstruction(t *testing.T) {
	t.Parallel()
	m, err := ParseString(sample)
	require.NoError(t, err)
	fn := m.Functions()[0]
	assert.Equal(t, "%main = OpFunction %void None %3", FormatInstruction(m, m.Instruction(fn.Def)))
	assert.Equal(t, "OpFunctionEnd", FormatInstruction(m, m.Instruction(fn.End)))
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{
			name: "unterminated string",
			src:  `OpName %1 "main`,
			line: 1,
			msg:  "unterminated string",
		},
		{
			name: "missing opcode",
			src:  "%1 =",
			line: 1,
			msg:  "missing opcode",
		},
		{
			name: "not an opcode",
			src:  "OpCapability Shader\nCapability Shader",
			line: 2,
			msg:  "expected opcode",
		},
		{
			name: "nested function",
			src:  "%f = OpFunction %v None %t\n%g = OpFunction %v None %t",
			line: 2,
			msg:  "OpFunction inside a function",
		},
		{
			name: "instruction before label",
			src:  "%f = OpFunction %v None %t\nOpReturn",
			line: 2,
			msg:  "before the first OpLabel",
		},
		{
			name: "label outside function",
			src:  "%l = OpLabel",
			line: 1,
			msg:  "OpLabel outside a function",
		},
		{
			name: "global after function",
			src:  "%f = OpFunction %v None %t\n%l = OpLabel\nOpReturn\nOpFunctionEnd\n%c = OpTypeBool",
			line: 5,
			msg:  "after the first function",
		},
		{
			name: "missing function end",
			src:  "%f = OpFunction %v None %t\n%l = OpLabel\nOpReturn",
			line: 3,
			msg:  "missing OpFunctionEnd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.line, perr.Line)
			assert.Contains(t, perr.Msg, tt.msg)
		})
	}
}
