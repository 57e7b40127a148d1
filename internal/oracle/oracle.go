// Package oracle decides whether a trial module may replace the current
// one: it must pass a validator and still be interesting to the user's
// test. Both checks may run external programs.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/gnolang/irreduce/internal/ir"
	"github.com/gnolang/irreduce/internal/validate"
)

var (
	// ErrInvalid marks a validator rejection.
	ErrInvalid = errors.New("module is invalid")

	// ErrOracle marks a failure to obtain an answer at all: the command
	// could not start, timed out or was killed.
	ErrOracle = errors.New("oracle failure")
)

// Validator checks structural validity. A rejection wraps ErrInvalid; any
// other error is an oracle failure.
type Validator interface {
	Validate(ctx context.Context, m *ir.Module) error
	Name() string
}

// Interestingness reports whether a module still shows the behaviour being
// reduced.
type Interestingness interface {
	Interesting(ctx context.Context, m *ir.Module) (bool, error)
}

// StructuralValidator runs the built-in validator in process.
type StructuralValidator struct{}

func (StructuralValidator) Validate(_ context.Context, m *ir.Module) error {
	if err := validate.Validate(m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (StructuralValidator) Name() string { return "builtin" }

// PredicateFunc adapts a Go function to Interestingness.
type PredicateFunc func(m *ir.Module) bool

func (f PredicateFunc) Interesting(_ context.Context, m *ir.Module) (bool, error) {
	return f(m), nil
}
