package internal

import (
	"github.com/gnolang/irreduce/internal/finders"
	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

/*
* Each reduction kind is wrapped in its own Finder struct
 */

type ConditionalBranchFinder struct{}

func (f *ConditionalBranchFinder) GetOpportunities(m *ir.Module) []tt.Opportunity {
	return finders.FindConditionalBranchSimplifications(m)
}

func (f *ConditionalBranchFinder) Name() string {
	return "conditional-branch-to-simple-conditional-branch"
}

type SimpleConditionalBranchFinder struct{}

func (f *SimpleConditionalBranchFinder) GetOpportunities(m *ir.Module) []tt.Opportunity {
	return finders.FindSimpleConditionalBranches(m)
}

func (f *SimpleConditionalBranchFinder) Name() string {
	return "simple-conditional-branch-to-branch"
}

type RemoveModuleInstructionFinder struct{}

func (f *RemoveModuleInstructionFinder) GetOpportunities(m *ir.Module) []tt.Opportunity {
	return finders.FindUnreferencedModuleInstructions(m)
}

func (f *RemoveModuleInstructionFinder) Name() string {
	return "remove-unreferenced-module-instruction"
}

type RemoveUnusedInstructionFinder struct{}

func (f *RemoveUnusedInstructionFinder) GetOpportunities(m *ir.Module) []tt.Opportunity {
	return finders.FindUnusedInstructions(m)
}

func (f *RemoveUnusedInstructionFinder) Name() string {
	return "remove-unused-instruction"
}

type RemoveBlockFinder struct{}

func (f *RemoveBlockFinder) GetOpportunities(m *ir.Module) []tt.Opportunity {
	return finders.FindUnreferencedBlocks(m)
}

func (f *RemoveBlockFinder) Name() string {
	return "remove-unreferenced-block"
}

type RemoveFunctionFinder struct{}

func (f *RemoveFunctionFinder) GetOpportunities(m *ir.Module) []tt.Opportunity {
	return finders.FindUnreferencedFunctions(m)
}

func (f *RemoveFunctionFinder) Name() string {
	return "remove-function"
}

type MergeBlocksFinder struct{}

func (f *MergeBlocksFinder) GetOpportunities(m *ir.Module) []tt.Opportunity {
	return finders.FindMergeableBlocks(m)
}

func (f *MergeBlocksFinder) Name() string {
	return "merge-blocks"
}

// RemoveDebugFinder strips names and source locations. It is off unless
// enabled in the configuration, since names keep reduced modules readable.
type RemoveDebugFinder struct{}

func (f *RemoveDebugFinder) GetOpportunities(m *ir.Module) []tt.Opportunity {
	return finders.FindDebugInstructions(m)
}

func (f *RemoveDebugFinder) Name() string {
	return "remove-debug-name"
}
