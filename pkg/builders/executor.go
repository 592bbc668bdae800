// Copyright 2025 Certen Protocol
//
// Executor is the contract-runtime seam between the engine and contract
// code: builders call through it for the parts of the body stage that
// require resolving and running a constructor or method (signature
// resolution, white-listing, the @FromContract tie-break, the
// entry/payableEntry hooks, and the member body itself); everything
// else (account bookkeeping, gas, jar loading, response assembly) is
// this package's own job. Runtime (runtime.go) is the native
// implementation wired in by default; a bytecode-rewriting bridge or an
// embedded interpreter would extend its class registry rather than
// replace the interface.

package builders

import (
	"github.com/mokanode/corechain/pkg/serialize"
	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

// ExecutionResult is what running a constructor or method body produces:
// the updates it made (to the receiver/new objects and anything else it
// touched except the caller, whose updates the builder owns), any
// events it raised, and - for a non-void method call - its return value.
type ExecutionResult struct {
	Updates          []values.Update
	Events           []values.StorageReference
	Result           values.StorageValue // nil for void calls and constructors
	NewObject        values.StorageReference
	GasUsed          int64 // additional CPU the entry/payableEntry hooks charged
	IsException      bool
	ExceptionClass   string
	ExceptionMessage string
}

// Executor resolves and runs contract code. s is the store view the
// call reads collaborator objects from; caller is the transaction's
// already-deserialized caller, shared with the prelude so the hooks and
// the gas accounting observe one consistent account state.
type Executor interface {
	// Construct resolves constructorSignature against the classes loaded
	// from classpath and runs it with actuals. creator is the reference
	// of the creating transaction; objects built during the call take
	// their progressive ordinals against it.
	Construct(s *store.Store, classpath []values.TransactionReference, creator values.TransactionReference, constructorSignature string, actuals []values.StorageValue, caller *serialize.Object) (*ExecutionResult, error)

	// InvokeInstance runs methodSignature on receiver. view is true for
	// @View entry points, which must reject non-@View methods.
	InvokeInstance(s *store.Store, classpath []values.TransactionReference, methodSignature string, receiver values.StorageReference, actuals []values.StorageValue, caller *serialize.Object, view bool) (*ExecutionResult, error)

	// InvokeStatic runs methodSignature with no receiver; the resolved
	// method must be static.
	InvokeStatic(s *store.Store, classpath []values.TransactionReference, methodSignature string, actuals []values.StorageValue, caller *serialize.Object, view bool) (*ExecutionResult, error)
}

// ErrNotWhitelisted is the sentinel an Executor returns (wrapped) when a
// resolved method/constructor fails the white-listing check - treated as
// an application exception, not an internal failure.
var ErrNotWhitelisted = executorError("builders: call target is not white-listed")

// ErrNotView is returned when an entry point requires @View but the
// resolved method is not annotated @View.
var ErrNotView = executorError("builders: method is not annotated @View")

// ErrNotStatic is returned when a static-method-call request resolves to
// a non-static method.
var ErrNotStatic = executorError("builders: resolved method is not static")

type executorError string

func (e executorError) Error() string { return string(e) }
