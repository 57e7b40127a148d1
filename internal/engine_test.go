package internal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gnolang/irreduce/internal/asm"
	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
	"github.com/gnolang/irreduce/internal/validate"
)

const decoratedModule = `
               OpCapability Shader
          %1 = OpExtInstImport "GLSL.std.450"
               OpMemoryModel Logical GLSL450
               OpEntryPoint Fragment %4 "main"
               OpExecutionMode %4 OriginUpperLeft
               OpSource ESSL 310
               OpName %4 "main"
               OpName %12 "a"
               OpDecorate %12 RelaxedPrecision
               OpDecorate %13 RelaxedPrecision
          %2 = OpTypeVoid
          %3 = OpTypeFunction %2
          %6 = OpTypeBool
          %7 = OpConstantTrue %6
         %10 = OpTypeInt 32 1
         %11 = OpTypePointer Private %10
         %12 = OpVariable %11 Private
         %13 = OpConstant %10 1
          %4 = OpFunction %2 None %3
          %5 = OpLabel
               OpReturn
               OpFunctionEnd
`

const unreferencedModule = `
               OpCapability Shader
               OpMemoryModel Logical GLSL450
               OpEntryPoint Fragment %4 "main"
          %2 = OpTypeVoid
          %3 = OpTypeFunction %2
          %6 = OpTypeBool
          %7 = OpConstantTrue %6
         %10 = OpTypeInt 32 1
         %11 = OpTypePointer Private %10
         %12 = OpVariable %11 Private
         %13 = OpConstant %10 1
          %4 = OpFunction %2 None %3
          %5 = OpLabel
               OpReturn
               OpFunctionEnd
`

const branchingModule = `
               OpCapability Shader
               OpMemoryModel Logical GLSL450
               OpEntryPoint Fragment %main "main"
               OpName %main "main"
               OpName %helper "helper"
       %void = OpTypeVoid
       %fnty = OpTypeFunction %void
       %bool = OpTypeBool
       %cond = OpConstantTrue %bool
        %int = OpTypeInt 32 1
        %one = OpConstant %int 1
        %two = OpConstant %int 2
       %main = OpFunction %void None %fnty
      %entry = OpLabel
          %x = OpIAdd %int %one %two
               OpBranchConditional %cond %then %else
       %then = OpLabel
               OpBranch %join
       %else = OpLabel
          %y = OpIMul %int %x %two
               OpBranch %join
       %join = OpLabel
          %p = OpPhi %int %x %then %y %else
               OpReturn
               OpFunctionEnd
     %helper = OpFunction %void None %fnty
         %h0 = OpLabel
               OpReturn
               OpFunctionEnd
`

func mustParse(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := asm.ParseString(src)
	require.NoError(t, err)
	require.NoError(t, validate.Validate(m))
	return m
}

// predicateOracle accepts structurally valid modules the predicate finds
// interesting.
type predicateOracle func(m *ir.Module) bool

func (p predicateOracle) IsAcceptable(_ context.Context, m *ir.Module) (tt.Verdict, error) {
	if err := validate.Validate(m); err != nil {
		return tt.Invalid, nil
	}
	if !p(m) {
		return tt.Uninteresting, nil
	}
	return tt.Accepted, nil
}

func anyValid(*ir.Module) bool { return true }

func contains(text string) predicateOracle {
	return func(m *ir.Module) bool { return strings.Contains(asm.Format(m), text) }
}

type mockOracle struct {
	mock.Mock
}

func (o *mockOracle) IsAcceptable(ctx context.Context, m *ir.Module) (tt.Verdict, error) {
	args := o.Called(ctx, m)
	return args.Get(0).(tt.Verdict), args.Error(1)
}

type recordingObserver struct {
	started  []tt.PassEvent
	trials   []tt.TrialEvent
	finished []tt.PassEvent
}

func (r *recordingObserver) PassStarted(ev tt.PassEvent)  { r.started = append(r.started, ev) }
func (r *recordingObserver) Trial(ev tt.TrialEvent)       { r.trials = append(r.trials, ev) }
func (r *recordingObserver) PassFinished(ev tt.PassEvent) { r.finished = append(r.finished, ev) }

func newTestEngine(t *testing.T, oracle tt.Oracle, opts Options, names ...string) *Engine {
	t.Helper()
	finders, err := SelectFinders(nil, names, nil)
	require.NoError(t, err)
	engine, err := NewEngine(oracle, finders, zap.NewNop(), opts)
	require.NoError(t, err)
	return engine
}

func TestSelectFinders(t *testing.T) {
	t.Parallel()
	enabled := true
	disabled := false

	tests := []struct {
		name     string
		config   map[string]tt.ConfigFinder
		only     []string
		skip     []string
		expected []string
		err      error
	}{
		{
			name: "defaults",
			expected: []string{
				"remove-function",
				"remove-unreferenced-block",
				"remove-unused-instruction",
				"remove-unreferenced-module-instruction",
				"conditional-branch-to-simple-conditional-branch",
				"simple-conditional-branch-to-branch",
				"merge-blocks",
			},
		},
		{
			name: "config toggles",
			config: map[string]tt.ConfigFinder{
				"remove-debug-name": {Enabled: &enabled},
				"merge-blocks":      {Enabled: &disabled},
				"remove-function":   {Enabled: &disabled},
			},
			expected: []string{
				"remove-unreferenced-block",
				"remove-unused-instruction",
				"remove-unreferenced-module-instruction",
				"conditional-branch-to-simple-conditional-branch",
				"simple-conditional-branch-to-branch",
				"remove-debug-name",
			},
		},
		{
			name:     "only keeps registry order",
			only:     []string{"merge-blocks", "remove-function"},
			expected: []string{"remove-function", "merge-blocks"},
		},
		{
			name:     "skip wins over only",
			only:     []string{"merge-blocks", "remove-function"},
			skip:     []string{"merge-blocks"},
			expected: []string{"remove-function"},
		},
		{
			name: "unknown flag value",
			only: []string{"remove-everything"},
			err:  ErrUnknownFinder,
		},
		{
			name:   "unknown config key",
			config: map[string]tt.ConfigFinder{"nope": {}},
			err:    ErrUnknownFinder,
		},
		{
			name: "nothing left",
			only: []string{"merge-blocks"},
			skip: []string{"merge-blocks"},
			err:  ErrNoFinders,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			finders, err := SelectFinders(tc.config, tc.only, tc.skip)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			names := make([]string, len(finders))
			for i, f := range finders {
				names[i] = f.Name()
			}
			assert.Equal(t, tc.expected, names)
		})
	}
}

func TestFindersListsEveryRegisteredFinder(t *testing.T) {
	t.Parallel()
	infos := Finders(nil)
	require.Len(t, infos, len(allFinderConstructors))
	for _, info := range infos {
		f := allFinderConstructors[info.Name]()
		assert.Equal(t, info.Name, f.Name())
		assert.Equal(t, info.Name != "remove-debug-name", info.Enabled)
	}
}

func TestNewEngineRequiresFinders(t *testing.T) {
	t.Parallel()
	_, err := NewEngine(predicateOracle(anyValid), nil, nil, Options{})
	assert.ErrorIs(t, err, ErrNoFinders)
}

func TestReduceRemovesDeclarationsAcrossPasses(t *testing.T) {
	t.Parallel()
	for _, parallel := range []bool{false, true} {
		m := mustParse(t, decoratedModule)
		before := asm.Format(m)
		obs := &recordingObserver{}
		engine := newTestEngine(t, predicateOracle(anyValid),
			Options{ParallelCollect: parallel, Observer: obs},
			"remove-unreferenced-module-instruction")

		res, err := engine.Reduce(context.Background(), m)
		require.NoError(t, err)

		require.Len(t, res.Passes, 3)
		assert.Equal(t, 1, res.Passes[0].Opportunities)
		assert.Equal(t, 1, res.Passes[1].Opportunities)
		assert.Equal(t, 0, res.Passes[2].Opportunities)
		assert.True(t, res.Fixpoint)
		assert.False(t, res.Stopped)
		assert.Equal(t, 2, res.Accepted)
		assert.Equal(t, res.Initial.Instructions-2, res.Final.Instructions)

		text := asm.Format(res.Module)
		assert.NotContains(t, text, "OpConstantTrue")
		assert.NotContains(t, text, "OpTypeBool")
		assert.Contains(t, text, "%12 = OpVariable %11 Private")
		assert.Contains(t, text, "%13 = OpConstant %10 1")
		assert.Equal(t, before, asm.Format(m), "input module must not change")

		assert.Len(t, obs.started, 3)
		assert.Len(t, obs.finished, 3)
		assert.Len(t, obs.trials, 2)
	}
}

func TestReduceConditionalBranchScenario(t *testing.T) {
	t.Parallel()
	m := mustParse(t, branchingModule)
	engine := newTestEngine(t, predicateOracle(anyValid), Options{},
		"conditional-branch-to-simple-conditional-branch")

	res, err := engine.Reduce(context.Background(), m)
	require.NoError(t, err)

	require.Len(t, res.Passes, 2)
	assert.Equal(t, 2, res.Passes[0].Opportunities)
	assert.Equal(t, 1, res.Passes[0].Accepted)
	assert.Equal(t, 0, res.Passes[1].Opportunities)
	assert.True(t, res.Fixpoint)

	text := asm.Format(res.Module)
	assert.Contains(t, text, "OpBranchConditional %cond %then %then")
	assert.Equal(t, res.Initial.Instructions, res.Final.Instructions)
	assert.True(t, res.Final.Less(res.Initial))
}

func TestReducePreservesValidityAndShrinks(t *testing.T) {
	t.Parallel()
	m := mustParse(t, branchingModule)
	obs := &recordingObserver{}
	finders, err := SelectFinders(nil, nil, nil)
	require.NoError(t, err)
	engine, err := NewEngine(contains("OpIMul"), finders, zap.NewNop(), Options{Observer: obs})
	require.NoError(t, err)

	res, err := engine.Reduce(context.Background(), m)
	require.NoError(t, err)
	require.NoError(t, validate.Validate(res.Module))
	assert.Contains(t, asm.Format(res.Module), "OpIMul")
	assert.True(t, res.Final.Less(res.Initial))

	last := res.Initial
	for _, ev := range obs.trials {
		if ev.Verdict != tt.Accepted {
			assert.Equal(t, last, ev.Measure, "rejected trials must not change the module")
			continue
		}
		assert.True(t, ev.Measure.Less(last))
		last = ev.Measure
	}
	assert.Equal(t, res.Final, last)
}

func TestReduceHalvesRejectedChunks(t *testing.T) {
	t.Parallel()
	m := mustParse(t, unreferencedModule)
	obs := &recordingObserver{}
	engine := newTestEngine(t, contains("%13 = OpConstant %10 1"), Options{Observer: obs},
		"remove-unreferenced-module-instruction")

	res, err := engine.Reduce(context.Background(), m)
	require.NoError(t, err)

	// pass 1: [%7 %12 %13] rejected, [%7] accepted, [%12 %13] rejected,
	// [%12] accepted, [%13] rejected and dropped.
	require.GreaterOrEqual(t, len(obs.trials), 5)
	var chunks []int
	var verdicts []tt.Verdict
	for _, ev := range obs.trials[:5] {
		chunks = append(chunks, ev.ChunkSize)
		verdicts = append(verdicts, ev.Verdict)
	}
	assert.Equal(t, []int{3, 1, 2, 1, 1}, chunks)
	assert.Equal(t, []tt.Verdict{tt.Uninteresting, tt.Accepted, tt.Uninteresting, tt.Accepted, tt.Uninteresting}, verdicts)
	assert.Equal(t, 5, res.Passes[0].Trials)
	assert.Equal(t, 2, res.Passes[0].Accepted)

	text := asm.Format(res.Module)
	assert.Contains(t, text, "%13 = OpConstant %10 1")
	assert.NotContains(t, text, "OpTypePointer")
	assert.NotContains(t, text, "OpTypeBool")

	// %13 is rejected for good, so the run ends on a pass that commits
	// nothing rather than on an empty pass.
	assert.False(t, res.Fixpoint)
	final := res.Passes[len(res.Passes)-1]
	assert.Equal(t, 1, final.Opportunities)
	assert.Zero(t, final.Accepted)
}

func TestReduceBudgets(t *testing.T) {
	t.Parallel()

	t.Run("max passes", func(t *testing.T) {
		m := mustParse(t, decoratedModule)
		engine := newTestEngine(t, predicateOracle(anyValid), Options{MaxPasses: 1},
			"remove-unreferenced-module-instruction")
		res, err := engine.Reduce(context.Background(), m)
		require.NoError(t, err)
		assert.True(t, res.Stopped)
		assert.Contains(t, res.StopReason, "pass limit")
		assert.Len(t, res.Passes, 1)
		assert.NotContains(t, asm.Format(res.Module), "OpConstantTrue")
		assert.Contains(t, asm.Format(res.Module), "OpTypeBool")
	})

	t.Run("max trials", func(t *testing.T) {
		m := mustParse(t, unreferencedModule)
		engine := newTestEngine(t, contains("%13 = OpConstant"), Options{MaxTrials: 1},
			"remove-unreferenced-module-instruction")
		res, err := engine.Reduce(context.Background(), m)
		require.NoError(t, err)
		assert.True(t, res.Stopped)
		assert.Contains(t, res.StopReason, "trial limit")
		assert.Equal(t, 1, res.Trials)
		assert.Equal(t, asm.Format(m), asm.Format(res.Module))
	})

	t.Run("cancelled", func(t *testing.T) {
		m := mustParse(t, decoratedModule)
		oracle := new(mockOracle)
		engine := newTestEngine(t, oracle, Options{}, "remove-unreferenced-module-instruction")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := engine.Reduce(ctx, m)
		require.NoError(t, err)
		assert.True(t, res.Stopped)
		assert.Equal(t, asm.Format(m), asm.Format(res.Module))
		oracle.AssertNotCalled(t, "IsAcceptable", mock.Anything, mock.Anything)
	})
}

func TestReduceOracleFailures(t *testing.T) {
	t.Parallel()

	t.Run("every trial fails", func(t *testing.T) {
		m := mustParse(t, unreferencedModule)
		oracle := new(mockOracle)
		oracle.On("IsAcceptable", mock.Anything, mock.Anything).Return(tt.OracleFailure, errors.New("test crashed"))
		engine := newTestEngine(t, oracle, Options{}, "remove-unreferenced-module-instruction")

		res, err := engine.Reduce(context.Background(), m)
		require.ErrorIs(t, err, ErrOracleUnreliable)
		require.NotNil(t, res.Module)
		assert.Equal(t, asm.Format(m), asm.Format(res.Module))
		assert.Equal(t, res.Passes[0].OracleCalls, res.Passes[0].OracleFailures)
	})

	t.Run("trials that do not shrink are not counted", func(t *testing.T) {
		m := mustParse(t, decoratedModule)
		oracle := new(mockOracle)
		oracle.On("IsAcceptable", mock.Anything, mock.Anything).Return(tt.OracleFailure, errors.New("test crashed"))
		finder := &fixedFinder{name: "mixed", ops: []tt.Opportunity{noopOpportunity{}, breakingOpportunity{id: 10}}}
		engine, err := NewEngine(oracle, []tt.Finder{finder}, nil, Options{})
		require.NoError(t, err)

		res, err := engine.Reduce(context.Background(), m)
		require.ErrorIs(t, err, ErrOracleUnreliable)
		require.Len(t, res.Passes, 1)
		stats := res.Passes[0]
		assert.Equal(t, 3, stats.Trials)
		assert.Equal(t, 2, stats.OracleCalls)
		assert.Equal(t, 2, stats.OracleFailures)
		oracle.AssertNumberOfCalls(t, "IsAcceptable", 2)
	})

	t.Run("consecutive limit", func(t *testing.T) {
		m := mustParse(t, unreferencedModule)
		oracle := new(mockOracle)
		oracle.On("IsAcceptable", mock.Anything, mock.Anything).Return(tt.OracleFailure, errors.New("timeout"))
		engine := newTestEngine(t, oracle, Options{MaxConsecutiveOracleFailures: 2},
			"remove-unreferenced-module-instruction")

		res, err := engine.Reduce(context.Background(), m)
		require.ErrorIs(t, err, ErrOracleUnreliable)
		assert.Equal(t, 2, res.Trials)
		oracle.AssertNumberOfCalls(t, "IsAcceptable", 2)
	})

	t.Run("occasional failure is tolerated", func(t *testing.T) {
		m := mustParse(t, unreferencedModule)
		oracle := new(mockOracle)
		oracle.On("IsAcceptable", mock.Anything, mock.Anything).Return(tt.OracleFailure, errors.New("flake")).Once()
		oracle.On("IsAcceptable", mock.Anything, mock.Anything).Return(tt.Accepted, nil)
		engine := newTestEngine(t, oracle, Options{}, "remove-unreferenced-module-instruction")

		res, err := engine.Reduce(context.Background(), m)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Passes[0].OracleFailures)
		assert.True(t, res.Fixpoint)
	})
}

// noopOpportunity applies successfully without changing the module.
type noopOpportunity struct{}

func (noopOpportunity) PreconditionHolds(*ir.Module) bool { return true }
func (noopOpportunity) TryToApply(*ir.Module) bool        { return true }
func (noopOpportunity) String() string                    { return "no-op" }

// breakingOpportunity removes a declaration that is still referenced.
type breakingOpportunity struct{ id ir.ID }

func (o breakingOpportunity) PreconditionHolds(m *ir.Module) bool {
	_, ok := m.Def(o.id)
	return ok
}

func (o breakingOpportunity) TryToApply(m *ir.Module) bool {
	ref, ok := m.Def(o.id)
	return ok && m.RemoveInstruction(ref) == nil
}

func (o breakingOpportunity) String() string { return "remove a used declaration" }

type fixedFinder struct {
	name string
	ops  []tt.Opportunity
}

func (f *fixedFinder) GetOpportunities(*ir.Module) []tt.Opportunity { return f.ops }
func (f *fixedFinder) Name() string                                 { return f.name }

func TestReduceSkipsTrialsThatDoNotShrink(t *testing.T) {
	t.Parallel()
	m := mustParse(t, decoratedModule)
	oracle := new(mockOracle)
	finder := &fixedFinder{name: "noop", ops: []tt.Opportunity{noopOpportunity{}, noopOpportunity{}}}
	engine, err := NewEngine(oracle, []tt.Finder{finder}, nil, Options{})
	require.NoError(t, err)

	res, err := engine.Reduce(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Accepted)
	assert.Equal(t, 0, res.OracleCalls)
	assert.Len(t, res.Passes, 1)
	oracle.AssertNotCalled(t, "IsAcceptable", mock.Anything, mock.Anything)
}

func TestReduceWarnsOnInvalidSingleton(t *testing.T) {
	t.Parallel()
	m := mustParse(t, decoratedModule)
	core, logs := observer.New(zapcore.WarnLevel)
	finder := &fixedFinder{name: "breaker", ops: []tt.Opportunity{breakingOpportunity{id: 10}}}
	engine, err := NewEngine(predicateOracle(anyValid), []tt.Finder{finder}, zap.New(core), Options{})
	require.NoError(t, err)

	res, err := engine.Reduce(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Accepted)
	assert.Equal(t, asm.Format(m), asm.Format(res.Module))

	warnings := logs.FilterMessage("opportunity produced an invalid module").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "breaker", warnings[0].ContextMap()["finder"])
}

func TestReduceLogsFinderNames(t *testing.T) {
	t.Parallel()
	m := mustParse(t, decoratedModule)
	core, logs := observer.New(zapcore.InfoLevel)
	finders, err := SelectFinders(nil, []string{"remove-debug-name", "remove-function"}, nil)
	require.NoError(t, err)
	engine, err := NewEngine(predicateOracle(anyValid), finders, zap.New(core), Options{MaxPasses: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"remove-function", "remove-debug-name"}, engine.FinderNames())

	_, err = engine.Reduce(context.Background(), m)
	require.NoError(t, err)

	started := logs.FilterMessage("reduction started").All()
	require.Len(t, started, 1)
	assert.Equal(t, []any{"remove-function", "remove-debug-name"}, started[0].ContextMap()["finders"])
}

func TestCollectIsDeterministic(t *testing.T) {
	t.Parallel()
	m := mustParse(t, branchingModule)
	finders, err := SelectFinders(nil, nil, nil)
	require.NoError(t, err)

	seq, err := NewEngine(predicateOracle(anyValid), finders, nil, Options{})
	require.NoError(t, err)
	par, err := NewEngine(predicateOracle(anyValid), finders, nil, Options{ParallelCollect: true})
	require.NoError(t, err)

	a, perA, err := seq.Collect(context.Background(), m)
	require.NoError(t, err)
	b, perB, err := par.Collect(context.Background(), m.Clone())
	require.NoError(t, err)

	assert.Equal(t, FormatOpportunities(a), FormatOpportunities(b))
	assert.Equal(t, perA, perB)
	assert.Equal(t, 1, perA["remove-function"])
	assert.Contains(t, FormatOpportunities(a), "remove function %helper")
}
