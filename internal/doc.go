// Package internal provides the reduction engine behind irreduce.
//
// The engine repeatedly shrinks an IR module while an oracle keeps
// accepting it. Each pass asks every enabled finder for opportunities on
// the current module, then tries them in chunks: a chunk is applied to a
// clone, and the clone replaces the current module when it is strictly
// smaller and the oracle accepts it. Rejected chunks are halved until a
// single opportunity is dropped. The run ends when a pass finds nothing to
// do or commits nothing.
//
// Key components:
//
// Engine: drives passes and trials and reports progress to an Observer.
//
// Finder: produces opportunities of one kind; the registry in engine.go
// lists them in collection order (see Finders and SelectFinders).
//
// Cache: persists oracle verdicts keyed by module fingerprint, so repeated
// runs on the same input skip the external test.
//
// Usage:
//
//	finders, err := internal.SelectFinders(nil, nil, nil)
//	if err != nil {
//	    // handle error
//	}
//	engine, err := internal.NewEngine(oracle, finders, logger, internal.Options{})
//	if err != nil {
//	    // handle error
//	}
//	res, err := engine.Reduce(ctx, module)
package internal
