// Copyright 2025 Certen Protocol
//
// Runtime is the native Executor: a registry of class descriptors
// (superclass links plus per-member annotations and native bodies)
// against which constructor/method signatures are resolved, with the
// white-listing check, the exact-match-vs-@FromContract tie-break, the
// @View/static checks, and the entry/payableEntry hooks all enforced
// here. The system classes (Contract, ExternallyOwnedAccount, Gamete,
// Validators) are registered with native bodies; an embedded
// interpreter or bytecode-rewriting bridge extends the registry with
// the classes of installed jars. A call that resolves to no registered
// class or member fails visibly instead of guessing.

package builders

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/mokanode/corechain/pkg/serialize"
	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

const (
	contractClassName   = "io.certen.lang.Contract"
	validatorsClassName = "io.certen.lang.Validators"

	// CPU the instrumentation hooks charge on top of the member body.
	entryGasCost        = 10
	payableEntryGasCost = 15
)

// member is one callable of a class: its annotations and native body.
// The body receives the in-flight call and returns the member's result
// value (nil for void members and constructors).
type member struct {
	static       bool
	view         bool
	payable      bool
	fromContract bool
	whiteListed  bool
	body         func(c *runtimeCall) (values.StorageValue, error)
}

// classInfo describes one class: its fully-qualified name, its
// superclass (by simple name, "" for the root), and its members keyed
// by "name(T1,T2)" for methods and "T1,T2" for constructors.
type classInfo struct {
	name         string
	superclass   string
	constructors map[string]*member
	methods      map[string]*member
}

// Runtime implements Executor over a class registry.
type Runtime struct {
	classes map[string]*classInfo
}

// NewRuntime returns a Runtime with the system classes registered.
func NewRuntime() *Runtime {
	rt := &Runtime{classes: make(map[string]*classInfo)}
	rt.registerSystemClasses()
	return rt
}

func (rt *Runtime) register(simpleName string, c *classInfo) {
	if c.constructors == nil {
		c.constructors = make(map[string]*member)
	}
	if c.methods == nil {
		c.methods = make(map[string]*member)
	}
	rt.classes[simpleName] = c
}

func (rt *Runtime) registerSystemClasses() {
	rt.register("Contract", &classInfo{
		name: contractClassName,
		methods: map[string]*member{
			"balance()": {view: true, whiteListed: true, body: func(c *runtimeCall) (values.StorageValue, error) {
				return values.BigIntegerValue{V: newAccountView(c.receiver).GreenBalance()}, nil
			}},
		},
	})

	rt.register("ExternallyOwnedAccount", &classInfo{
		name:       eoaClassName,
		superclass: "Contract",
		// The declared constructor is @FromContract @Payable; its
		// instrumented parameter list carries the trailing
		// (Contract, Dummy) pair, so a request naming the source-level
		// signature resolves through the fallback.
		constructors: map[string]*member{
			"BigInteger,String,Contract,Dummy": {payable: true, fromContract: true, whiteListed: true, body: func(c *runtimeCall) (values.StorageValue, error) {
				self := newAccountView(c.self)
				self.obj.Fields[fieldPublicKey] = stringActual(c.actuals, 1)
				self.obj.Fields[fieldNonce] = values.BigIntegerValue{V: big.NewInt(0)}
				if _, ok := c.self.Fields[fieldRedBalance]; !ok {
					self.SetRedBalance(big.NewInt(0))
				}
				return nil, nil
			}},
		},
		methods: map[string]*member{
			"receive(BigInteger)": {payable: true, fromContract: true, whiteListed: true, body: func(c *runtimeCall) (values.StorageValue, error) {
				return nil, nil // the payableEntry hook is the whole body
			}},
			"nonce()": {view: true, whiteListed: true, body: func(c *runtimeCall) (values.StorageValue, error) {
				return values.BigIntegerValue{V: newAccountView(c.receiver).Nonce()}, nil
			}},
		},
	})

	rt.register("Gamete", &classInfo{
		name:       gameteClassName,
		superclass: "ExternallyOwnedAccount",
	})

	rt.register("Validators", &classInfo{
		name:       validatorsClassName,
		superclass: "Contract",
		methods: map[string]*member{
			"reward(BigInteger,BigInteger,String,String,BigInteger,int)": {fromContract: true, whiteListed: true, body: func(c *runtimeCall) (values.StorageValue, error) {
				coins := bigActual(c.actuals, 0)
				if coins.Sign() > 0 {
					view := newAccountView(c.receiver)
					view.SetGreenBalance(new(big.Int).Add(view.GreenBalance(), coins))
					// The reward call runs outside a builder, with the
					// manifest as its own caller; no builder will emit
					// the callee's updates, so record unconditionally.
					c.record(c.receiver)
				}
				return nil, nil
			}},
		},
	})
}

// runtimeCall is one in-flight constructor or method execution.
type runtimeCall struct {
	store    *store.Store
	jar      values.TransactionReference
	creator  values.TransactionReference
	caller   *serialize.Object
	receiver *serialize.Object
	self     *serialize.Object // object under construction
	actuals  []values.StorageValue
	gasUsed  int64

	created []*serialize.Object
	touched []*serialize.Object
	events  []values.StorageReference
}

// record marks obj as mutated so its updates reach the response;
// created objects are already emitted in full and are never recorded
// twice.
func (c *runtimeCall) record(obj *serialize.Object) {
	for _, seen := range c.created {
		if seen == obj {
			return
		}
	}
	for _, seen := range c.touched {
		if seen == obj {
			return
		}
	}
	c.touched = append(c.touched, obj)
}

// touch is record minus the caller: on a builder-driven request the
// caller's balance/nonce updates are the builder's job, merged in after
// the refund, and emitting a stale copy here would override them during
// history replay.
func (c *runtimeCall) touch(obj *serialize.Object) {
	if obj == c.caller {
		return
	}
	c.record(obj)
}

// object resolves ref against this call's already-loaded objects first,
// so the caller's (and any previously-touched object's) in-memory state
// stays the single view of that account for the whole request.
func (c *runtimeCall) object(ref values.StorageReference) (*serialize.Object, error) {
	if c.caller != nil && c.caller.Ref == ref {
		return c.caller, nil
	}
	for _, obj := range c.touched {
		if obj.Ref == ref {
			return obj, nil
		}
	}
	for _, obj := range c.created {
		if obj.Ref == ref {
			return obj, nil
		}
	}
	return serialize.Deserialize(c.store, ref)
}

// newObject allocates the next object created by this transaction, with
// progressive ordinals contiguous from zero.
func (c *runtimeCall) newObject(className string) *serialize.Object {
	obj := &serialize.Object{
		Ref:       values.StorageReference{Creator: c.creator, Progressive: uint64(len(c.created))},
		ClassName: className,
		Jar:       c.jar,
		Fields:    make(map[values.FieldSignature]values.StorageValue),
	}
	c.created = append(c.created, obj)
	return obj
}

// enter is the instrumentation hook inserted ahead of every
// @FromContract member: it binds the callee to its calling contract and
// charges the hook's CPU cost.
func (c *runtimeCall) enter() error {
	if c.caller == nil {
		return fmt.Errorf("runtime: entry into a contract-only member with no caller")
	}
	c.gasUsed += entryGasCost
	return nil
}

// enterPayable is the payable variant: as enter, plus it moves amount
// from the caller's green balance to the callee's.
func (c *runtimeCall) enterPayable(callee *serialize.Object, amount *big.Int) (*ExecutionResult, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	c.gasUsed += payableEntryGasCost - entryGasCost
	if amount.Sign() < 0 {
		return c.exception("io.certen.lang.RequirementViolationException", "payable amount cannot be negative"), nil
	}
	from := newAccountView(c.caller)
	if from.GreenBalance().Cmp(amount) < 0 {
		return c.exception("io.certen.lang.InsufficientFundsError", fmt.Sprintf("cannot transfer %s units of coin", amount)), nil
	}
	from.SetGreenBalance(new(big.Int).Sub(from.GreenBalance(), amount))
	to := newAccountView(callee)
	to.SetGreenBalance(new(big.Int).Add(to.GreenBalance(), amount))
	c.touch(callee)
	return nil, nil
}

// exception wraps a declared contract exception into the result shape
// the builders classify as an application exception.
func (c *runtimeCall) exception(class, message string) *ExecutionResult {
	return &ExecutionResult{
		Updates:          c.updates(),
		Events:           c.events,
		GasUsed:          c.gasUsed,
		IsException:      true,
		ExceptionClass:   class,
		ExceptionMessage: message,
	}
}

// updates flattens the call's created and touched objects into the
// update set of the response, created objects first (class tag, then
// every field in deterministic order), then touched collaborators.
func (c *runtimeCall) updates() []values.Update {
	var out []values.Update
	for _, obj := range c.created {
		out = append(out, values.ClassTag{Ref: obj.Ref, ClassName: obj.ClassName, Jar: obj.Jar})
		for _, sig := range obj.FieldOrder(nil) {
			out = append(out, values.UpdateOfField{Ref: obj.Ref, Field: sig, Value: obj.Fields[sig], EagerField: sig.Type.IsBasic()})
		}
	}
	for _, obj := range c.touched {
		for _, sig := range obj.FieldOrder(nil) {
			out = append(out, values.UpdateOfField{Ref: obj.Ref, Field: sig, Value: obj.Fields[sig], EagerField: sig.Type.IsBasic()})
		}
	}
	return out
}

func (c *runtimeCall) finish(result values.StorageValue) *ExecutionResult {
	res := &ExecutionResult{
		Updates: c.updates(),
		Events:  c.events,
		Result:  result,
		GasUsed: c.gasUsed,
	}
	if len(c.created) > 0 {
		res.NewObject = c.created[0].Ref
	}
	return res
}

// splitSignature parses "Class.member(T1,T2)" (methods) or
// "Class(T1,T2)" (constructors) into its class simple name, member
// name ("" for constructors) and parameter list.
func splitSignature(signature string) (class, name, params string, err error) {
	open := strings.IndexByte(signature, '(')
	if open < 0 || !strings.HasSuffix(signature, ")") {
		return "", "", "", fmt.Errorf("runtime: malformed signature %q", signature)
	}
	head := signature[:open]
	params = signature[open+1 : len(signature)-1]
	if dot := strings.LastIndexByte(head, '.'); dot >= 0 {
		return head[:dot], head[dot+1:], params, nil
	}
	return head, "", params, nil
}

// resolveMethod walks class and its superclasses for the member named
// by key, enforcing that a named class exists in the registry.
func (rt *Runtime) resolveMethod(class, key string) (*member, error) {
	for simple := class; simple != ""; {
		info, ok := rt.classes[simple]
		if !ok {
			return nil, fmt.Errorf("runtime: unknown class %s", simple)
		}
		if m, ok := info.methods[key]; ok {
			return m, nil
		}
		simple = info.superclass
	}
	return nil, fmt.Errorf("runtime: no method %s in %s or its superclasses", key, class)
}

// resolveConstructor applies the tie-break rule: an exactly-matching
// constructor wins; only when none exists is the lookup retried with
// the trailing (Contract, Dummy) pair the instrumenter appends to
// @FromContract constructors.
func (rt *Runtime) resolveConstructor(class, params string) (*member, error) {
	info, ok := rt.classes[class]
	if !ok {
		return nil, fmt.Errorf("runtime: unknown class %s", class)
	}
	if m, ok := info.constructors[params]; ok {
		return m, nil
	}
	fallback := params + ",Contract,Dummy"
	if params == "" {
		fallback = "Contract,Dummy"
	}
	if m, ok := info.constructors[fallback]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("runtime: no constructor %s(%s)", class, params)
}

// run executes m against c, applying the hooks and the annotation
// checks shared by every member kind. callee is the object the hooks
// act on (the receiver, or the object under construction).
func (c *runtimeCall) run(m *member, callee *serialize.Object, view bool) (*ExecutionResult, error) {
	if !m.whiteListed {
		return nil, fmt.Errorf("%w", ErrNotWhitelisted)
	}
	if view && !m.view {
		return nil, fmt.Errorf("%w", ErrNotView)
	}
	if m.fromContract {
		if m.payable {
			amount := bigActual(c.actuals, 0)
			if res, err := c.enterPayable(callee, amount); err != nil || res != nil {
				return res, err
			}
		} else if err := c.enter(); err != nil {
			return nil, err
		}
	}
	result, err := m.body(c)
	if err != nil {
		return nil, err
	}
	return c.finish(result), nil
}

func (rt *Runtime) newCall(s *store.Store, classpath []values.TransactionReference, creator values.TransactionReference, actuals []values.StorageValue, caller *serialize.Object) *runtimeCall {
	c := &runtimeCall{store: s, creator: creator, caller: caller, actuals: actuals}
	if len(classpath) > 0 {
		c.jar = classpath[0]
	}
	return c
}

// Construct implements Executor.
func (rt *Runtime) Construct(s *store.Store, classpath []values.TransactionReference, creator values.TransactionReference, constructorSignature string, actuals []values.StorageValue, caller *serialize.Object) (*ExecutionResult, error) {
	class, name, params, err := splitSignature(constructorSignature)
	if err != nil {
		return nil, err
	}
	if name != "" {
		return nil, fmt.Errorf("runtime: %q is not a constructor signature", constructorSignature)
	}
	m, err := rt.resolveConstructor(class, params)
	if err != nil {
		return nil, err
	}

	c := rt.newCall(s, classpath, creator, actuals, caller)
	info := rt.classes[class]
	c.self = c.newObject(info.name)
	return c.run(m, c.self, false)
}

// InvokeInstance implements Executor.
func (rt *Runtime) InvokeInstance(s *store.Store, classpath []values.TransactionReference, methodSignature string, receiver values.StorageReference, actuals []values.StorageValue, caller *serialize.Object, view bool) (*ExecutionResult, error) {
	class, name, params, err := splitSignature(methodSignature)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("runtime: %q is not a method signature", methodSignature)
	}
	m, err := rt.resolveMethod(class, name+"("+params+")")
	if err != nil {
		return nil, err
	}
	if m.static {
		return nil, fmt.Errorf("runtime: %s resolves to a static method on an instance call", methodSignature)
	}

	c := rt.newCall(s, classpath, values.TransactionReference{}, actuals, caller)
	c.receiver, err = c.object(receiver)
	if err != nil {
		return nil, fmt.Errorf("runtime: loading receiver %s: %w", receiver, err)
	}
	return c.run(m, c.receiver, view)
}

// InvokeStatic implements Executor.
func (rt *Runtime) InvokeStatic(s *store.Store, classpath []values.TransactionReference, methodSignature string, actuals []values.StorageValue, caller *serialize.Object, view bool) (*ExecutionResult, error) {
	class, name, params, err := splitSignature(methodSignature)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("runtime: %q is not a method signature", methodSignature)
	}
	m, err := rt.resolveMethod(class, name+"("+params+")")
	if err != nil {
		return nil, err
	}
	if !m.static {
		return nil, fmt.Errorf("%w", ErrNotStatic)
	}

	c := rt.newCall(s, classpath, values.TransactionReference{}, actuals, caller)
	return c.run(m, nil, view)
}

func bigActual(actuals []values.StorageValue, i int) *big.Int {
	if i < len(actuals) {
		if v, ok := actuals[i].(values.BigIntegerValue); ok && v.V != nil {
			return v.V
		}
	}
	return big.NewInt(0)
}

func stringActual(actuals []values.StorageValue, i int) values.StringValue {
	if i < len(actuals) {
		if v, ok := actuals[i].(values.StringValue); ok {
			return v
		}
	}
	return values.StringValue("")
}

var _ Executor = (*Runtime)(nil)
