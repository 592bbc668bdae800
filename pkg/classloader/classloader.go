// Copyright 2025 Certen Protocol
//
// Jar class loader: resolves a JarStore/JarStoreInitial request's
// transitive dependency closure from the store, enforces the configured
// size/count limits, and runs each jar through an external Verifier
// before it becomes loadable. Fail-closed: a config struct of limits, a
// collaborator that does the actual bytecode check, and a result that
// collects every failure instead of stopping at the first.

package classloader

import (
	"errors"
	"fmt"

	"github.com/mokanode/corechain/pkg/cache"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

// ErrTooManyDependencies and ErrDependenciesTooLarge enforce the
// configured jar-loading limits.
var (
	ErrTooManyDependencies  = errors.New("classloader: too many transitive dependencies")
	ErrDependenciesTooLarge = errors.New("classloader: cumulative dependency size exceeds limit")
)

// Verifier is the bytecode/structural checker a concrete node wires in;
// this package only orchestrates fetch-verify-cache and delegates the
// actual inspection.
type Verifier interface {
	// Verify inspects jar's bytecode and reports whether it is a loadable
	// class jar, returning a human-readable reason on rejection.
	Verify(jar []byte) (ok bool, reason string)
}

// Config bounds one jar load. VerificationVersion is the node's current
// bytecode-verifier rule set; a jar stored against an older version is
// reverified (and, on failure, cascaded to its dependents) the next
// time its classpath is loaded.
type Config struct {
	MaxDependencies                 int
	MaxCumulativeSizeOfDependencies int
	VerificationVersion             int
}

// Loader fetches jar bytes for a JarStoreInitial/JarStore request's
// dependency closure, verifies each one, and reverifies (cascading
// failure through dependents) any jar whose stored verification version
// has fallen behind the node's current one.
type Loader struct {
	cfg      Config
	verifier Verifier
	cache    *cache.LoaderCache
}

// New creates a Loader. cache may be nil to disable jar caching.
func New(cfg Config, verifier Verifier, loaderCache *cache.LoaderCache) *Loader {
	return &Loader{cfg: cfg, verifier: verifier, cache: loaderCache}
}

// Resolved is one jar's fetched bytes plus its declared dependencies, in
// the order the classpath names them.
type Resolved struct {
	Ref  values.TransactionReference
	Jar  []byte
	Deps []values.TransactionReference
}

// LoadClosure fetches, verifies and (where stale) reverifies every jar
// reachable from roots (inclusive), returning them in dependency order (a
// jar always precedes anything that depends on it) together with the
// store to use from here on - unchanged from s unless a reverification
// replaced a stored response, in which case it is s advanced past that
// commit, so subsequent loads see the replacement. If any root ends up
// failed - freshly reverified, or
// already failed by an earlier load - LoadClosure returns that failure
// as its error, citing the same message the stored response now carries.
func (l *Loader) LoadClosure(s *store.Store, roots []values.TransactionReference) ([]Resolved, *store.Store, error) {
	visited := make(map[values.TransactionReference]bool)
	failed := make(map[values.TransactionReference]string)
	var order []Resolved
	var totalSize int

	tr := store.NewTransformation(s)
	dirty := false

	var visit func(ref values.TransactionReference) error
	visit = func(ref values.TransactionReference) error {
		if visited[ref] {
			return nil
		}
		visited[ref] = true

		jar, deps, err := l.fetch(s, ref)
		if err != nil {
			return fmt.Errorf("loading jar %s: %w", ref, err)
		}

		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		if len(visited) > l.cfg.MaxDependencies {
			return fmt.Errorf("%w: limit %d", ErrTooManyDependencies, l.cfg.MaxDependencies)
		}
		totalSize += len(jar)
		if totalSize > l.cfg.MaxCumulativeSizeOfDependencies {
			return fmt.Errorf("%w: limit %d bytes", ErrDependenciesTooLarge, l.cfg.MaxCumulativeSizeOfDependencies)
		}

		// A dependency that already failed (this load, or an earlier one)
		// fails this jar too, whether or not its own version is stale: it
		// was only ever loadable transitively.
		if index, cascaded := firstFailedDependency(deps, failed); cascaded {
			msg := fmt.Sprintf("reverification failed for dependency %d", index)
			l.failResponse(tr, ref, msg)
			failed[ref] = msg
			dirty = true
			return nil
		}

		version, alreadyFailed, failureMessage, err := l.verificationState(s, ref)
		if err != nil {
			return err
		}
		if alreadyFailed {
			failed[ref] = failureMessage
			return nil
		}

		if ok, reason := l.verifier.Verify(jar); !ok {
			l.failResponse(tr, ref, reason)
			failed[ref] = reason
			dirty = true
			return nil
		}
		if version != l.cfg.VerificationVersion {
			if err := l.bumpVersion(tr, s, ref, l.cfg.VerificationVersion); err != nil {
				return err
			}
			dirty = true
		}

		order = append(order, Resolved{Ref: ref, Jar: jar, Deps: deps})
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, l.commitIfDirty(s, tr, dirty), err
		}
	}

	next := l.commitIfDirty(s, tr, dirty)
	for _, root := range roots {
		if msg, ok := failed[root]; ok {
			return nil, next, fmt.Errorf("jar %s failed verification: %s", root, msg)
		}
	}
	return order, next, nil
}

func (l *Loader) commitIfDirty(s *store.Store, tr *store.Transformation, dirty bool) *store.Store {
	if !dirty {
		return s
	}
	committed, _, err := tr.Commit()
	if err != nil {
		return s
	}
	return committed
}

// firstFailedDependency reports the index within deps of the first entry
// already recorded in failed, per the dependent's own declared dependency
// order - the index the cascaded failure message names.
func firstFailedDependency(deps []values.TransactionReference, failed map[values.TransactionReference]string) (int, bool) {
	for i, dep := range deps {
		if _, ok := failed[dep]; ok {
			return i, true
		}
	}
	return 0, false
}

// verificationState reads ref's stored jar response and reports its
// verification version and, if it already carries a failed outcome, the
// failure message recorded against it.
func (l *Loader) verificationState(s *store.Store, ref values.TransactionReference) (version int, failed bool, failureMessage string, err error) {
	resp, err := s.GetResponse(ref)
	if err != nil {
		return 0, false, "", fmt.Errorf("classloader: reading response %s: %w", ref, err)
	}
	switch r := resp.(type) {
	case response.JarStoreInitialResponse:
		return r.VerificationVersion, false, "", nil
	case response.JarStoreResponse:
		return r.VerificationVersion, r.Out == response.OutcomeFailed, r.FailureMessage, nil
	default:
		return 0, false, "", fmt.Errorf("classloader: reference %s is not a jar response (got %T)", ref, resp)
	}
}

// failResponse replaces ref's stored response with a failed one, so a
// later load short-circuits on the persisted outcome instead of
// re-running verification against the same bytes.
func (l *Loader) failResponse(tr *store.Transformation, ref values.TransactionReference, reason string) {
	l.Invalidate(ref)
	tr.ReplaceResponse(ref, response.JarStoreResponse{
		Out:            response.OutcomeFailed,
		FailureClass:   "io.certen.verification.VerificationException",
		FailureMessage: reason,
	})
}

// bumpVersion rewrites ref's stored response in place with its
// verification version advanced to newVersion, preserving every other
// field of whichever concrete response type it already was.
func (l *Loader) bumpVersion(tr *store.Transformation, s *store.Store, ref values.TransactionReference, newVersion int) error {
	resp, err := s.GetResponse(ref)
	if err != nil {
		return fmt.Errorf("classloader: reading response %s: %w", ref, err)
	}
	l.Invalidate(ref)
	switch r := resp.(type) {
	case response.JarStoreInitialResponse:
		r.VerificationVersion = newVersion
		tr.ReplaceResponse(ref, r)
	case response.JarStoreResponse:
		r.VerificationVersion = newVersion
		tr.ReplaceResponse(ref, r)
	default:
		return fmt.Errorf("classloader: reference %s is not a jar response (got %T)", ref, resp)
	}
	return nil
}

// fetch returns ref's jar bytes (from the loader cache if present,
// otherwise from the store's JarStore/JarStoreInitial response) and its
// declared dependency classpath.
func (l *Loader) fetch(s *store.Store, ref values.TransactionReference) ([]byte, []values.TransactionReference, error) {
	if l.cache != nil {
		if jar, ok := l.cache.Get(ref); ok {
			deps, err := l.dependenciesOf(s, ref)
			return jar, deps, err
		}
	}

	req, err := s.GetRequest(ref)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching request: %w", err)
	}

	var jar []byte
	var deps []values.TransactionReference
	switch r := req.(type) {
	case request.JarStoreInitial:
		jar = r.Jar
	case request.JarStore:
		jar = r.Jar
		deps = r.Dependencies.Jars
	default:
		return nil, nil, fmt.Errorf("classloader: reference %s is not a jar-store request (got %T)", ref, req)
	}

	if l.cache != nil {
		l.cache.Put(ref, jar)
	}
	return jar, deps, nil
}

func (l *Loader) dependenciesOf(s *store.Store, ref values.TransactionReference) ([]values.TransactionReference, error) {
	req, err := s.GetRequest(ref)
	if err != nil {
		return nil, err
	}
	if js, ok := req.(request.JarStore); ok {
		return js.Dependencies.Jars, nil
	}
	return nil, nil
}

// Invalidate evicts ref from the loader cache - called whenever its
// stored response is replaced, so a cached jar body is never paired with
// a stale verification outcome.
func (l *Loader) Invalidate(ref values.TransactionReference) {
	if l.cache != nil {
		l.cache.Invalidate(ref)
	}
}
