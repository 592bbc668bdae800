// Copyright 2025 Certen Protocol
//
// Transaction response model: outcomes produced by the response builders
// (pkg/builders) and persisted by the store (pkg/store).

package response

import (
	"math/big"

	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/values"
)

// Outcome tags the four shapes a response may take.
type Outcome byte

const (
	OutcomeSuccessful Outcome = iota
	OutcomeVoidSuccessful
	OutcomeException
	OutcomeFailed
)

// GasConsumed breaks down where a request's gas went; the accounting
// identity gasLimit = cpu+ram+storage+penalty+refunded must hold for
// every accepted request.
type GasConsumed struct {
	CPU     *big.Int
	RAM     *big.Int
	Storage *big.Int
	Penalty *big.Int
}

// Response is implemented by every response variant. All variants carry
// the updates the request produced and the gas it consumed; only
// Successful/VoidSuccessful/Exception variants carry events.
type Response interface {
	Outcome() Outcome
	Updates() []values.Update
	Events() []values.StorageReference
	Gas() GasConsumed
}

type base struct {
	Upds  []values.Update
	Evts  []values.StorageReference
	GasUs GasConsumed
}

func (b base) Updates() []values.Update         { return b.Upds }
func (b base) Events() []values.StorageReference { return b.Evts }
func (b base) Gas() GasConsumed                  { return b.GasUs }

// newBase builds the shared base fields every WithBase method installs;
// response builders (pkg/builders) never construct base directly since
// it is unexported, only through these per-variant WithBase methods.
func newBase(updates []values.Update, events []values.StorageReference, gas GasConsumed) base {
	return base{Upds: updates, Evts: events, GasUs: gas}
}

// JarStoreInitialResponse answers a JarStoreInitial request.
type JarStoreInitialResponse struct {
	base
	InstrumentedJar     []byte
	Dependencies        request.Classpath
	VerificationVersion int
}

func (r JarStoreInitialResponse) Outcome() Outcome { return OutcomeSuccessful }

// WithBase attaches the updates/events/gas every builder computes in its
// Postlude stage.
func (r JarStoreInitialResponse) WithBase(updates []values.Update, events []values.StorageReference, g GasConsumed) JarStoreInitialResponse {
	r.base = newBase(updates, events, g)
	return r
}

// GameteCreationResponse answers a GameteCreation request.
type GameteCreationResponse struct {
	base
	Gamete values.StorageReference
}

func (r GameteCreationResponse) Outcome() Outcome { return OutcomeSuccessful }

// WithBase attaches the updates/events/gas every builder computes in its
// Postlude stage.
func (r GameteCreationResponse) WithBase(updates []values.Update, events []values.StorageReference, g GasConsumed) GameteCreationResponse {
	r.base = newBase(updates, events, g)
	return r
}

// InitializationResponse answers an Initialization request.
type InitializationResponse struct {
	base
}

func (r InitializationResponse) Outcome() Outcome { return OutcomeSuccessful }

// WithBase attaches the updates/events/gas every builder computes in its
// Postlude stage.
func (r InitializationResponse) WithBase(updates []values.Update, events []values.StorageReference, g GasConsumed) InitializationResponse {
	r.base = newBase(updates, events, g)
	return r
}

// JarStoreResponse answers a (non-initial) JarStore request: successful
// with the instrumented bytes, or failed if verification/instrumentation
// or reverification did not pass.
type JarStoreResponse struct {
	base
	Out                 Outcome
	InstrumentedJar     []byte
	Dependencies        request.Classpath
	VerificationVersion int
	FailureClass        string
	FailureMessage      string
}

func (r JarStoreResponse) Outcome() Outcome { return r.Out }

// WithBase attaches the updates/events/gas every builder computes in its
// Postlude stage.
func (r JarStoreResponse) WithBase(updates []values.Update, events []values.StorageReference, g GasConsumed) JarStoreResponse {
	r.base = newBase(updates, events, g)
	return r
}

// ConstructorCallResponse answers a ConstructorCall request.
type ConstructorCallResponse struct {
	base
	Out            Outcome
	NewObject      values.StorageReference // valid only when Out == OutcomeSuccessful
	ExceptionClass string
	ExceptionMsg   string
	FailureClass   string
	FailureMsg     string
}

func (r ConstructorCallResponse) Outcome() Outcome { return r.Out }

// WithBase attaches the updates/events/gas every builder computes in its
// Postlude stage.
func (r ConstructorCallResponse) WithBase(updates []values.Update, events []values.StorageReference, g GasConsumed) ConstructorCallResponse {
	r.base = newBase(updates, events, g)
	return r
}

// MethodCallResponse answers an InstanceMethodCall or StaticMethodCall
// request. Out selects which of Result/ExceptionClass/FailureClass is
// meaningful.
type MethodCallResponse struct {
	base
	Out            Outcome
	Result         values.StorageValue // nil for OutcomeVoidSuccessful
	ExceptionClass string
	ExceptionMsg   string
	FailureClass   string
	FailureMsg     string
}

func (r MethodCallResponse) Outcome() Outcome { return r.Out }

// WithBase attaches the updates/events/gas every builder computes in its
// Postlude stage.
func (r MethodCallResponse) WithBase(updates []values.Update, events []values.StorageReference, g GasConsumed) MethodCallResponse {
	r.base = newBase(updates, events, g)
	return r
}

// Rejected is not a persisted Response variant but the result returned to
// a caller whose request never reached the store: bad signature, wrong
// chain-id, bad nonce, insufficient funds, malformed bytes. It is kept
// alongside Response because the controller classifies every request
// outcome through this package.
type Rejected struct {
	Reason string
}

func (r Rejected) Error() string { return r.Reason }
