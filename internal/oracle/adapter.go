package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/gnolang/irreduce/internal/asm"
	"github.com/gnolang/irreduce/internal/ir"
	tt "github.com/gnolang/irreduce/internal/types"
)

// Cache stores verdicts by key. Keys combine the oracle identity with the
// module fingerprint, so a cache may be shared between oracles.
type Cache interface {
	Get(key string) (tt.Verdict, bool)
	Put(key string, v tt.Verdict) error
}

// Adapter combines a validator and an interestingness test into a
// tt.Oracle. The test only runs for valid modules.
type Adapter struct {
	validator Validator
	test      Interestingness
	cache     Cache
	identity  string
	logger    *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type AdapterOption func(*Adapter)

// WithCache memoises verdicts under identity, which must change whenever
// the validator or the test would answer differently.
func WithCache(c Cache, identity string) AdapterOption {
	return func(a *Adapter) {
		a.cache = c
		a.identity = identity
	}
}

func WithLogger(l *zap.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = l }
}

func NewAdapter(v Validator, test Interestingness, opts ...AdapterOption) *Adapter {
	if v == nil {
		v = StructuralValidator{}
	}
	a := &Adapter{validator: v, test: test, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ tt.Oracle = (*Adapter)(nil)

func (a *Adapter) IsAcceptable(ctx context.Context, m *ir.Module) (tt.Verdict, error) {
	if a.cache == nil {
		return a.judge(ctx, m)
	}

	key := a.identity + "\x00" + asm.Fingerprint(m)
	if v, ok := a.cache.Get(key); ok {
		a.hits.Add(1)
		return v, nil
	}
	a.misses.Add(1)

	v, err := a.judge(ctx, m)
	if err != nil {
		return v, err
	}
	if perr := a.cache.Put(key, v); perr != nil {
		a.logger.Warn("failed to cache verdict", zap.Error(perr))
	}
	return v, nil
}

func (a *Adapter) judge(ctx context.Context, m *ir.Module) (tt.Verdict, error) {
	if err := a.validator.Validate(ctx, m); err != nil {
		if errors.Is(err, ErrInvalid) {
			a.logger.Debug("trial rejected by validator", zap.Error(err))
			return tt.Invalid, nil
		}
		return tt.OracleFailure, oracleError(err)
	}

	ok, err := a.test.Interesting(ctx, m)
	if err != nil {
		return tt.OracleFailure, oracleError(err)
	}
	if !ok {
		return tt.Uninteresting, nil
	}
	return tt.Accepted, nil
}

// CacheStats returns cache hits and misses since the adapter was created.
func (a *Adapter) CacheStats() (hits, misses int64) {
	return a.hits.Load(), a.misses.Load()
}

func oracleError(err error) error {
	if errors.Is(err, ErrOracle) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrOracle, err)
}
