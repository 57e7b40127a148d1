package internal

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

var (
	ErrNoFinders        = errors.New("no finders enabled")
	ErrUnknownFinder    = errors.New("unknown finder")
	ErrOracleUnreliable = errors.New("oracle unreliable")
)

// Define the finderConstructor type
type finderConstructor func() tt.Finder

// Create a map to hold the mappings of finder names to their constructors
var allFinderConstructors = map[string]finderConstructor{
	"remove-function":                                 func() tt.Finder { return &RemoveFunctionFinder{} },
	"remove-unreferenced-block":                       func() tt.Finder { return &RemoveBlockFinder{} },
	"remove-unused-instruction":                       func() tt.Finder { return &RemoveUnusedInstructionFinder{} },
	"remove-unreferenced-module-instruction":          func() tt.Finder { return &RemoveModuleInstructionFinder{} },
	"conditional-branch-to-simple-conditional-branch": func() tt.Finder { return &ConditionalBranchFinder{} },
	"simple-conditional-branch-to-branch":             func() tt.Finder { return &SimpleConditionalBranchFinder{} },
	"merge-blocks":                                    func() tt.Finder { return &MergeBlocksFinder{} },
	"remove-debug-name":                               func() tt.Finder { return &RemoveDebugFinder{} },
}

// finderOrder is the collection order. Finders that delete whole functions
// and blocks come first because they shrink the module the most per trial.
var finderOrder = []string{
	"remove-function",
	"remove-unreferenced-block",
	"remove-unused-instruction",
	"remove-unreferenced-module-instruction",
	"conditional-branch-to-simple-conditional-branch",
	"simple-conditional-branch-to-branch",
	"merge-blocks",
	"remove-debug-name",
}

var disabledByDefault = map[string]bool{
	"remove-debug-name": true,
}

// FinderInfo describes a registered finder.
type FinderInfo struct {
	Name    string
	Enabled bool
}

// Finders lists the registered finders in collection order with their
// state under config.
func Finders(config map[string]tt.ConfigFinder) []FinderInfo {
	infos := make([]FinderInfo, 0, len(finderOrder))
	for _, name := range finderOrder {
		infos = append(infos, FinderInfo{
			Name:    name,
			Enabled: config[name].IsEnabled(!disabledByDefault[name]),
		})
	}
	return infos
}

// SelectFinders instantiates the enabled finders in collection order.
// A non-empty only list replaces the configured selection; names in skip
// are removed last.
func SelectFinders(config map[string]tt.ConfigFinder, only, skip []string) ([]tt.Finder, error) {
	for name := range config {
		if _, ok := allFinderConstructors[name]; !ok {
			return nil, fmt.Errorf("%w %q in configuration", ErrUnknownFinder, name)
		}
	}
	for _, name := range slices.Concat(only, skip) {
		if _, ok := allFinderConstructors[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownFinder, name)
		}
	}

	var selected []tt.Finder
	for _, info := range Finders(config) {
		enabled := info.Enabled
		if len(only) > 0 {
			enabled = slices.Contains(only, info.Name)
		}
		if slices.Contains(skip, info.Name) {
			enabled = false
		}
		if enabled {
			selected = append(selected, allFinderConstructors[info.Name]())
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoFinders
	}
	return selected, nil
}

// Options bound and instrument a reduction.
type Options struct {
	// MaxPasses and MaxTrials stop the reduction early when positive.
	MaxPasses int
	MaxTrials int

	// MaxConsecutiveOracleFailures aborts the run when that many trials in
	// a row end with an oracle error. Zero means no limit.
	MaxConsecutiveOracleFailures int

	// ParallelCollect runs the finders of a pass concurrently.
	ParallelCollect bool

	Observer tt.Observer
}

// PassStats summarises one pass of the driver.
type PassStats struct {
	Pass           int
	Opportunities  int
	PerFinder      map[string]int
	Trials         int
	Accepted       int
	OracleCalls    int
	OracleFailures int
	Before         ir.Measure
	After          ir.Measure
}

// Result is the outcome of Reduce. Module is always the last accepted
// module, even when an error is returned.
type Result struct {
	Module      *ir.Module
	Passes      []PassStats
	Trials      int
	Accepted    int
	OracleCalls int
	Initial     ir.Measure
	Final       ir.Measure
	Fixpoint    bool
	Stopped     bool
	StopReason  string
}

// Engine drives the reduction of a module.
type Engine struct {
	finders []tt.Finder
	oracle  tt.Oracle
	logger  *zap.Logger
	opts    Options
}

// NewEngine creates a reduction engine running finders in the given order.
func NewEngine(oracle tt.Oracle, finders []tt.Finder, logger *zap.Logger, opts Options) (*Engine, error) {
	if len(finders) == 0 {
		return nil, ErrNoFinders
	}
	if oracle == nil {
		return nil, errors.New("no oracle")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		finders: finders,
		oracle:  oracle,
		logger:  logger,
		opts:    opts,
	}, nil
}

// FinderNames returns the names of the engine's finders in order.
func (e *Engine) FinderNames() []string {
	names := make([]string, len(e.finders))
	for i, f := range e.finders {
		names[i] = f.Name()
	}
	return names
}

// Reduce repeatedly collects opportunities and commits the chunks the
// oracle accepts, until a pass finds no opportunity or commits nothing.
// The input module is never modified.
func (e *Engine) Reduce(ctx context.Context, input *ir.Module) (*Result, error) {
	current := input.Clone()
	res := &Result{Initial: current.Measure()}
	defer func() {
		res.Module = current
		res.Final = current.Measure()
	}()
	e.logger.Info("reduction started",
		zap.Strings("finders", e.FinderNames()),
		zap.Int("instructions", res.Initial.Instructions))

	for pass := 1; ; pass++ {
		if reason := e.stopReason(ctx, res, pass); reason != "" {
			res.Stopped, res.StopReason = true, reason
			e.logger.Info("reduction stopped", zap.String("reason", reason), zap.Int("pass", pass))
			return res, nil
		}

		cands, perFinder, err := e.Collect(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				res.Stopped, res.StopReason = true, ctx.Err().Error()
				return res, nil
			}
			return res, err
		}

		stats := PassStats{
			Pass:          pass,
			Opportunities: len(cands),
			PerFinder:     perFinder,
			Before:        current.Measure(),
		}
		e.logger.Info("pass started",
			zap.Int("pass", pass),
			zap.Int("opportunities", len(cands)),
			zap.Int("instructions", stats.Before.Instructions),
		)
		if e.opts.Observer != nil {
			e.opts.Observer.PassStarted(passEvent(stats, stats.Before))
		}

		if len(cands) == 0 {
			res.Fixpoint = true
			stats.After = stats.Before
			e.finishPass(res, stats)
			return res, nil
		}

		var stop string
		current, stop, err = e.runPass(ctx, current, cands, &stats, res)
		stats.After = current.Measure()
		e.finishPass(res, stats)
		if err != nil {
			return res, err
		}
		if stop != "" {
			res.Stopped, res.StopReason = true, stop
			e.logger.Info("reduction stopped", zap.String("reason", stop), zap.Int("pass", pass))
			return res, nil
		}
		if stats.Accepted == 0 {
			return res, nil
		}
	}
}

func (e *Engine) stopReason(ctx context.Context, res *Result, pass int) string {
	switch {
	case ctx.Err() != nil:
		return ctx.Err().Error()
	case e.opts.MaxPasses > 0 && pass > e.opts.MaxPasses:
		return fmt.Sprintf("pass limit %d reached", e.opts.MaxPasses)
	case e.opts.MaxTrials > 0 && res.Trials >= e.opts.MaxTrials:
		return fmt.Sprintf("trial limit %d reached", e.opts.MaxTrials)
	}
	return ""
}

func (e *Engine) finishPass(res *Result, stats PassStats) {
	res.Passes = append(res.Passes, stats)
	e.logger.Info("pass finished",
		zap.Int("pass", stats.Pass),
		zap.Int("trials", stats.Trials),
		zap.Int("accepted", stats.Accepted),
		zap.Int("oracle_calls", stats.OracleCalls),
		zap.Int("instructions", stats.After.Instructions),
	)
	if e.opts.Observer != nil {
		e.opts.Observer.PassFinished(passEvent(stats, stats.After))
	}
}

func passEvent(stats PassStats, measure ir.Measure) tt.PassEvent {
	return tt.PassEvent{
		Pass:          stats.Pass,
		Opportunities: stats.Opportunities,
		PerFinder:     stats.PerFinder,
		Accepted:      stats.Accepted,
		Trials:        stats.Trials,
		Measure:       measure,
	}
}

// Collect queries every finder against m and concatenates the results in
// finder order.
func (e *Engine) Collect(ctx context.Context, m *ir.Module) ([]tt.Candidate, map[string]int, error) {
	results := make([][]tt.Opportunity, len(e.finders))

	if e.opts.ParallelCollect && len(e.finders) > 1 {
		m.EnsureIndex()
		g, gctx := errgroup.WithContext(ctx)
		for i, f := range e.finders {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = f.GetOpportunities(m)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	} else {
		for i, f := range e.finders {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			results[i] = f.GetOpportunities(m)
		}
	}

	var cands []tt.Candidate
	perFinder := make(map[string]int, len(e.finders))
	for i, ops := range results {
		name := e.finders[i].Name()
		perFinder[name] = len(ops)
		for _, op := range ops {
			cands = append(cands, tt.Candidate{Finder: name, Opportunity: op})
		}
	}
	return cands, perFinder, nil
}

// runPass consumes cands in chunks. The chunk starts as the whole list,
// halves after every rejection, and is reset to the whole remaining list
// after an acceptance. A rejected single opportunity is discarded.
func (e *Engine) runPass(
	ctx context.Context,
	current *ir.Module,
	cands []tt.Candidate,
	stats *PassStats,
	res *Result,
) (*ir.Module, string, error) {
	pending := cands
	chunkSize := len(pending)
	eliminated := 0
	consecutiveFailures := 0

	for len(pending) > 0 {
		if reason := e.stopReason(ctx, res, stats.Pass); reason != "" {
			return current, reason, nil
		}

		n := min(chunkSize, len(pending))
		chunk := pending[:n]

		trial := current.Clone()
		applied := 0
		for _, c := range chunk {
			if c.Opportunity.PreconditionHolds(trial) && c.Opportunity.TryToApply(trial) {
				applied++
			}
		}
		if applied == 0 {
			// every opportunity of the chunk is disabled in current
			pending = pending[n:]
			eliminated += n
			continue
		}

		verdict, err := e.evaluate(ctx, current, trial)
		res.Trials++
		stats.Trials++
		if verdict != tt.NotSmaller {
			res.OracleCalls++
			stats.OracleCalls++
		}
		if ctx.Err() != nil {
			return current, ctx.Err().Error(), nil
		}

		if verdict == tt.OracleFailure {
			stats.OracleFailures++
			consecutiveFailures++
			e.logger.Warn("oracle failed",
				zap.Int("pass", stats.Pass),
				zap.Int("chunk", n),
				zap.Error(err),
			)
			limit := e.opts.MaxConsecutiveOracleFailures
			if limit > 0 && consecutiveFailures >= limit {
				return current, "", fmt.Errorf("%w: %d consecutive failures: %w", ErrOracleUnreliable, consecutiveFailures, err)
			}
		} else {
			consecutiveFailures = 0
		}

		switch {
		case verdict == tt.Accepted:
			current = trial
			pending = pending[n:]
			eliminated += n
			chunkSize = len(pending)
			stats.Accepted++
			res.Accepted++
		case n == 1:
			if verdict == tt.Invalid {
				e.logger.Warn("opportunity produced an invalid module",
					zap.String("finder", chunk[0].Finder),
					zap.String("opportunity", chunk[0].Opportunity.String()),
				)
			}
			pending = pending[1:]
			eliminated++
		default:
			chunkSize = n / 2
		}

		e.logger.Debug("trial",
			zap.Int("pass", stats.Pass),
			zap.String("finder", chunk[0].Finder),
			zap.Int("chunk", n),
			zap.Int("applied", applied),
			zap.Stringer("verdict", verdict),
		)
		if e.opts.Observer != nil {
			e.opts.Observer.Trial(tt.TrialEvent{
				Pass:       stats.Pass,
				Finder:     chunk[0].Finder,
				ChunkSize:  n,
				Applied:    applied,
				Verdict:    verdict,
				Eliminated: eliminated,
				Remaining:  len(pending),
				Measure:    current.Measure(),
			})
		}
	}

	if stats.OracleCalls > 0 && stats.OracleFailures == stats.OracleCalls {
		return current, "", fmt.Errorf("%w: all %d oracle calls of pass %d failed", ErrOracleUnreliable, stats.OracleCalls, stats.Pass)
	}
	return current, "", nil
}

// evaluate rejects trials that did not shrink before consulting the oracle.
func (e *Engine) evaluate(ctx context.Context, current, trial *ir.Module) (tt.Verdict, error) {
	if !trial.Measure().Less(current.Measure()) {
		return tt.NotSmaller, nil
	}
	verdict, err := e.oracle.IsAcceptable(ctx, trial)
	if err != nil {
		return tt.OracleFailure, err
	}
	return verdict, nil
}
