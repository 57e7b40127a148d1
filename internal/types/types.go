package types

import (
	"context"
	"fmt"

	"github.com/gnolang/irreduce/internal/ir"
)

// Opportunity is one candidate edit computed against a module snapshot.
// Because the driver applies opportunities to private clones of that
// snapshot, the target module is passed explicitly; Refs held by an
// opportunity are stable across clones.
type Opportunity interface {
	// PreconditionHolds re-derives from the current state of m whether the
	// edit still applies. Earlier edits in the same chunk may have
	// disabled it.
	PreconditionHolds(m *ir.Module) bool

	// TryToApply performs the edit through the mutation primitives. It
	// returns false, leaving m untouched, when the precondition fails.
	TryToApply(m *ir.Module) bool

	String() string
}

// Finder produces the opportunities of one reduction kind. Implementations
// must not mutate the module and must return equivalent sequences when
// queried twice on the same module.
type Finder interface {
	GetOpportunities(m *ir.Module) []Opportunity

	// Name returns the registry name of the finder.
	Name() string
}

// Candidate pairs an opportunity with the finder that produced it.
type Candidate struct {
	Finder      string
	Opportunity Opportunity
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s: %s", c.Finder, c.Opportunity)
}

// Verdict is the oracle's answer for one trial module.
type Verdict int

const (
	Accepted Verdict = iota
	Invalid
	Uninteresting
	OracleFailure
	// NotSmaller marks trials that applied edits without shrinking the
	// module; the oracle is not consulted.
	NotSmaller
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Invalid:
		return "invalid"
	case Uninteresting:
		return "uninteresting"
	case OracleFailure:
		return "oracle-failure"
	case NotSmaller:
		return "not-smaller"
	default:
		return "unknown"
	}
}

func (v Verdict) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// Oracle judges whether a trial module may replace the current one.
// Implementations report problems running the underlying checks as an
// error together with OracleFailure.
type Oracle interface {
	IsAcceptable(ctx context.Context, m *ir.Module) (Verdict, error)
}

// TrialEvent describes one evaluated chunk.
type TrialEvent struct {
	Pass       int
	Finder     string // finder of the first opportunity in the chunk
	ChunkSize  int
	Applied    int
	Verdict    Verdict
	Eliminated int // opportunities consumed or discarded so far in this pass
	Remaining  int
	Measure    ir.Measure
}

// PassEvent summarises one COLLECTING pass.
type PassEvent struct {
	Pass          int
	Opportunities int
	PerFinder     map[string]int
	Accepted      int
	Trials        int
	Measure       ir.Measure
}

// Observer receives progress notifications from the driver.
type Observer interface {
	PassStarted(ev PassEvent)
	Trial(ev TrialEvent)
	PassFinished(ev PassEvent)
}

// ConfigFinder is the per-finder entry of the configuration file.
type ConfigFinder struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled resolves the entry against the finder's default.
func (c ConfigFinder) IsEnabled(def bool) bool {
	if c.Enabled == nil {
		return def
	}
	return *c.Enabled
}
