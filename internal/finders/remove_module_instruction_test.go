package finders

import (
	"testing"

	"github.com/gnolang/irreduce/internal/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveUnreferencedModuleInstructions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		src    string
		passes [][]string
	}{
		{
			name: "names and decorations count as uses",
			src:  decoratedModule,
			passes: [][]string{
				{"remove %7 = OpConstantTrue"},
				{"remove %6 = OpTypeBool"},
				{},
			},
		},
		{
			name: "unreferenced declarations cascade",
			src:  unreferencedModule,
			passes: [][]string{
				{"remove %7 = OpConstantTrue", "remove %12 = OpVariable", "remove %13 = OpConstant"},
				{"remove %6 = OpTypeBool", "remove %11 = OpTypePointer"},
				{"remove %10 = OpTypeInt"},
				{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := parse(t, tt.src)
			for i, want := range tt.passes {
				ops := FindUnreferencedModuleInstructions(m)
				assert.Equal(t, want, describe(ops), "pass %d", i+1)
				for _, op := range ops {
					require.True(t, op.TryToApply(m), op.String())
				}
			}
		})
	}
}

func TestRemoveUnreferencedModuleInstructionsKeepsEntryPoint(t *testing.T) {
	t.Parallel()
	m := parse(t, unreferencedModule)
	applyPasses(t, m, FindUnreferencedModuleInstructions)

	text := asm.Format(m)
	assert.Contains(t, text, "%2 = OpTypeVoid")
	assert.Contains(t, text, "%3 = OpTypeFunction %2")
	assert.Contains(t, text, "OpEntryPoint Fragment %4 \"main\"")
	assert.NotContains(t, text, "OpTypeBool")
	assert.NotContains(t, text, "OpTypeInt")
}

func TestRemoveUnusedInstructionsCascade(t *testing.T) {
	t.Parallel()
	m := parse(t, straightLineModule)

	first := FindUnusedInstructions(m)
	require.Len(t, first, 1)
	assert.Equal(t, "remove %y = OpIMul", first[0].String())
	require.True(t, first[0].TryToApply(m))

	second := FindUnusedInstructions(m)
	require.Len(t, second, 1)
	assert.Equal(t, "remove %x = OpIAdd", second[0].String())
	require.True(t, second[0].TryToApply(m))

	assert.Empty(t, FindUnusedInstructions(m))
}
