// Package reduce wires configuration, the oracle and the reduction engine
// together and processes assembly files.
package reduce

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/irreduce/internal"
	"github.com/gnolang/irreduce/internal/asm"
	"github.com/gnolang/irreduce/internal/ir"
	"github.com/gnolang/irreduce/internal/oracle"
	tt "github.com/gnolang/irreduce/internal/types"
)

var (
	ErrNoTestCommand  = errors.New("no interestingness test command")
	ErrInitialInvalid = errors.New("input module is rejected by the validator")
	ErrNotInteresting = errors.New("input module is not interesting")
)

// ReductionEngine is the part of *internal.Engine used here.
type ReductionEngine interface {
	Reduce(ctx context.Context, m *ir.Module) (*internal.Result, error)
}

// Options select finders and instrument a session.
type Options struct {
	Only     []string
	Skip     []string
	Observer tt.Observer
	Logger   *zap.Logger

	// ClearCache drops every persisted verdict before the session starts.
	ClearCache bool
}

// Session is an engine and its oracle built from one Config.
type Session struct {
	Engine *internal.Engine
	Oracle *oracle.Adapter
	Cache  *internal.Cache
	logger *zap.Logger
}

// New builds a session from config. The caller must Close it to persist
// the verdict cache.
func New(config Config, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.Oracle.Command) == 0 {
		return nil, ErrNoTestCommand
	}

	finders, err := internal.SelectFinders(config.Finders, opts.Only, opts.Skip)
	if err != nil {
		return nil, err
	}

	var validator oracle.Validator = oracle.StructuralValidator{}
	if argv := config.Oracle.ValidatorArgv(); argv != nil {
		validator = &oracle.CommandValidator{Argv: argv, Timeout: config.Oracle.Timeout, Logger: logger}
	}
	test := &oracle.CommandTest{
		Argv:    config.Oracle.Command,
		Timeout: config.Oracle.Timeout,
		Logger:  logger,
	}

	adapterOpts := []oracle.AdapterOption{oracle.WithLogger(logger)}
	var cache *internal.Cache
	if config.CacheDir != "" {
		cache, err = internal.NewCache(config.CacheDir)
		if err != nil {
			return nil, err
		}
		if opts.ClearCache {
			cache.InvalidateAll()
		}
		cache.SetMaxAge(config.CacheMaxAge)
		identity, err := oracleIdentity(validator, test)
		if err != nil {
			return nil, err
		}
		adapterOpts = append(adapterOpts, oracle.WithCache(cache, identity))
	}
	adapter := oracle.NewAdapter(validator, test, adapterOpts...)

	engine, err := internal.NewEngine(adapter, finders, logger, internal.Options{
		MaxPasses:                    config.Limits.MaxPasses,
		MaxTrials:                    config.Limits.MaxTrials,
		MaxConsecutiveOracleFailures: config.Limits.MaxConsecutiveOracleFailures,
		ParallelCollect:              config.Parallel,
		Observer:                     opts.Observer,
	})
	if err != nil {
		return nil, err
	}

	return &Session{Engine: engine, Oracle: adapter, Cache: cache, logger: logger}, nil
}

// oracleIdentity names the oracle for cache keys. It covers the content
// of the test and validator executables and of their file arguments.
func oracleIdentity(v oracle.Validator, test *oracle.CommandTest) (string, error) {
	testPrint, err := internal.CommandFingerprint(test.Argv)
	if err != nil {
		return "", err
	}
	validatorPrint := v.Name()
	if cv, ok := v.(*oracle.CommandValidator); ok {
		validatorPrint, err = internal.CommandFingerprint(cv.Argv)
		if err != nil {
			return "", err
		}
	}
	return validatorPrint + "\x00" + testPrint, nil
}

// Close flushes the verdict cache.
func (s *Session) Close() error {
	if s.Cache == nil {
		return nil
	}
	if err := s.Cache.Flush(); err != nil {
		return fmt.Errorf("error saving verdict cache: %w", err)
	}
	hits, misses := s.Oracle.CacheStats()
	s.logger.Debug("verdict cache", zap.Int64("hits", hits), zap.Int64("misses", misses), zap.Int("entries", s.Cache.Len()))
	return nil
}

// CheckInput makes sure the unreduced module is acceptable; reducing a
// module the oracle already rejects cannot produce anything useful.
func CheckInput(ctx context.Context, o tt.Oracle, m *ir.Module) error {
	verdict, err := o.IsAcceptable(ctx, m)
	if err != nil {
		return err
	}
	switch verdict {
	case tt.Accepted:
		return nil
	case tt.Invalid:
		return ErrInitialInvalid
	default:
		return ErrNotInteresting
	}
}

// ProcessFile reduces the module in path and writes the result to out.
// The last accepted module is written even when the engine stops with an
// error, since every accepted module passed the oracle.
func ProcessFile(
	ctx context.Context,
	logger *zap.Logger,
	engine ReductionEngine,
	o tt.Oracle,
	path, out string,
) (*internal.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m, err := ReadModule(path)
	if err != nil {
		return nil, err
	}
	if err := CheckInput(ctx, o, m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	res, runErr := engine.Reduce(ctx, m)
	if res == nil || res.Module == nil {
		return res, runErr
	}
	if err := WriteModule(out, res.Module); err != nil {
		return res, errors.Join(runErr, err)
	}
	logger.Info("reduced module written",
		zap.String("input", path),
		zap.String("output", out),
		zap.Int("before", res.Initial.Instructions),
		zap.Int("after", res.Final.Instructions),
	)
	return res, runErr
}

// ProcessFiles reduces every input in turn. Directories are searched for
// assembly files. Outputs are written next to their inputs with
// OutputPath names.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine ReductionEngine,
	o tt.Oracle,
	paths []string,
) (map[string]*internal.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*internal.Result, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := ProcessFile(ctx, logger, engine, o, file, OutputPath(file))
		if res != nil {
			results[file] = res
		}
		if err != nil {
			logger.Error("Error processing file", zap.String("file", file), zap.Error(err))
			return results, err
		}
	}
	return results, nil
}

func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && hasDesiredExtension(p) && !isReducedOutput(p) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking directory %s: %w", path, err)
		}
	}
	return files, nil
}

var desiredExtensions = map[string]bool{
	".spvasm": true,
}

const reducedSuffix = ".reduced"

func hasDesiredExtension(path string) bool {
	return desiredExtensions[filepath.Ext(path)]
}

func isReducedOutput(path string) bool {
	return strings.HasSuffix(strings.TrimSuffix(path, filepath.Ext(path)), reducedSuffix)
}

// OutputPath names the reduced file for input: shader.spvasm becomes
// shader.reduced.spvasm.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + reducedSuffix + ext
}

func ReadModule(path string) (*ir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := asm.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", path, err)
	}
	return m, nil
}

// WriteModule writes m to path, or to stdout when path is "-".
func WriteModule(path string, m *ir.Module) error {
	if path == "-" {
		return asm.Write(os.Stdout, m)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := asm.Write(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
