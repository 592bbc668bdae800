// Copyright 2025 Certen Protocol
//
// Transaction controller: wraps the response builders (pkg/builders)
// with reward accumulation, cache invalidation, and store push. One
// function walks a block's transactions, dispatches each to a per-kind
// handler, and folds the result back into shared state; the per-kind
// handlers are pkg/builders.Build and the shared state is a
// pkg/store.Store that advances one request at a time.
//
// Store commits happen per request rather than once per block: trie Put
// is copy-on-write and persists nodes to the kv layer immediately
// (pkg/trie), so nothing is lost by advancing the working store after
// every request - it only means a later request in the same block
// already observes an earlier one's nonce bump and balance change,
// which delivery-order semantics require. The externally-visible head
// only moves forward at pkg/abci's Commit, once a whole block's
// requests have run.
package controller

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/mokanode/corechain/pkg/builders"
	"github.com/mokanode/corechain/pkg/cache"
	"github.com/mokanode/corechain/pkg/classloader"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/serialize"
	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

// Reward accumulates the per-block totals the reward transaction needs
// at commit time: gas consumed, coins paid (with and without
// inflation), and the number of requests delivered.
type Reward struct {
	GasConsumed           *big.Int
	Coins                 *big.Int
	CoinsWithoutInflation *big.Int
	NumberOfRequests      int
}

// NewReward returns a zeroed Reward accumulator, one per block.
func NewReward() *Reward {
	return &Reward{GasConsumed: big.NewInt(0), Coins: big.NewInt(0), CoinsWithoutInflation: big.NewInt(0)}
}

func (r *Reward) add(g response.GasConsumed, gasPrice *big.Int) {
	// Initial requests carry no gas accounting, so their fields are nil.
	cpuRamStorage := new(big.Int)
	for _, n := range []*big.Int{g.CPU, g.RAM, g.Storage} {
		if n != nil {
			cpuRamStorage.Add(cpuRamStorage, n)
		}
	}
	r.GasConsumed.Add(r.GasConsumed, cpuRamStorage)
	cost := new(big.Int).Mul(cpuRamStorage, gasPrice)
	r.Coins.Add(r.Coins, cost)
	r.CoinsWithoutInflation.Add(r.CoinsWithoutInflation, cost)
	r.NumberOfRequests++
}

// Params are the per-node parameters that rarely change within a node's
// lifetime (gas price aside - that is re-read from cache on every
// request so a GasPriceUpdateEvent takes effect immediately). They are
// threaded into every builders.Context this controller builds.
type Params struct {
	ChainID            string
	SignatureAlgorithm string

	BaseCPUCost             int64
	PerByteCPUCost          int64
	PerJarCPUCost           int64
	PerJarRAMCost           int64
	PerDependencyLookupCost int64
	StorageCostPerByte      int64

	VerificationVersion int
}

// Controller orchestrates request delivery: pick a builder, run it, push
// its outcome into a per-request transformation, and decide whether any
// emitted event invalidates a cached consensus parameter.
type Controller struct {
	Params   Params
	Loader   *classloader.Loader
	SigCache *cache.SignatureCache
	Config   *cache.ConfigCache
	Executor builders.Executor
}

// New builds a Controller from its collaborators.
func New(params Params, loader *classloader.Loader, sigCache *cache.SignatureCache, configCache *cache.ConfigCache, executor builders.Executor) *Controller {
	return &Controller{Params: params, Loader: loader, SigCache: sigCache, Config: configCache, Executor: executor}
}

// trustedEventCreators maps the class names of the consensus-update
// events to the cached parameter each one concerns. invalidateCaches
// matches on the event's class name only; the object that created the
// event is not checked.
var trustedEventCreators = map[string]cache.ConfigKind{
	"io.certen.lang.GasPriceUpdateEvent":   cache.ConfigGasPrice,
	"io.certen.lang.InflationUpdateEvent":  cache.ConfigInflation,
	"io.certen.lang.ConsensusUpdateEvent":  cache.ConfigValidators,
	"io.certen.lang.ValidatorsUpdateEvent": cache.ConfigValidators,
}

func (c *Controller) gasPrice() *big.Int {
	if c.Config != nil {
		if v, ok := c.Config.Get(cache.ConfigGasPrice); ok {
			if price, ok := v.(*big.Int); ok {
				return price
			}
		}
	}
	return big.NewInt(1)
}

func (c *Controller) buildContext(s *store.Store) *builders.Context {
	return &builders.Context{
		Store:                   s,
		Loader:                  c.Loader,
		SigCache:                c.SigCache,
		Executor:                c.Executor,
		GasPrice:                c.gasPrice(),
		ChainID:                 c.Params.ChainID,
		BaseCPUCost:             c.Params.BaseCPUCost,
		PerByteCPUCost:          c.Params.PerByteCPUCost,
		PerJarCPUCost:           c.Params.PerJarCPUCost,
		PerJarRAMCost:           c.Params.PerJarRAMCost,
		PerDependencyLookupCost: c.Params.PerDependencyLookupCost,
		StorageCostPerByte:      c.Params.StorageCostPerByte,
		SignatureAlgorithm:      c.Params.SignatureAlgorithm,
		VerificationVersion:     c.Params.VerificationVersion,
	}
}

// Deliver runs req against cur, the block's current working store.
// On success it returns the store advanced past req's effects, the
// reference assigned to req, and the persisted response. A Rejected
// request is returned as the error and is never pushed into the tries;
// the returned store differs from cur only when resolving req's
// classpath replaced an older jar's response (see below).
func (c *Controller) Deliver(cur *store.Store, rwd *Reward, req request.Request) (*store.Store, values.TransactionReference, response.Response, error) {
	ref := request.Hash(req)
	ctx := c.buildContext(cur)

	resp, err := builders.Build(ctx, req)
	if err != nil {
		var rejected response.Rejected
		if errors.As(err, &rejected) {
			// ctx.Store may have advanced past cur even though req itself was
			// rejected: a classpath reverification cascade can replace an
			// older jar's stored response as a side effect of resolving
			// req's own classpath, and that replacement must still reach
			// whatever request is delivered next in this block.
			return ctx.Store, ref, nil, rejected
		}
		return cur, ref, nil, fmt.Errorf("controller: building response for %s: %w", ref, err)
	}

	if req.IsView() {
		// View calls never touch the store: their updates are discarded
		// and no reference/response pair is persisted.
		return ctx.Store, ref, resp, nil
	}

	tr := store.NewTransformation(ctx.Store)
	tr.PushRequestResponse(ref, req, resp)
	for _, upd := range resp.Updates() {
		if err := tr.ExpandHistory(upd.Object(), ref); err != nil {
			return cur, ref, nil, fmt.Errorf("controller: expanding history: %w", err)
		}
	}
	if manifestRef, ok := manifestOf(req); ok {
		tr.SetManifest(manifestRef)
	}

	next, _, err := tr.Commit()
	if err != nil {
		return cur, ref, nil, fmt.Errorf("controller: committing %s: %w", ref, err)
	}

	rwd.add(resp.Gas(), ctx.GasPrice)
	c.invalidateCaches(next, resp.Events())

	return next, ref, resp, nil
}

// Check runs the cheap validation half of delivery (signature, nonce,
// minimal gas) against head without building a full response or
// touching the store - the ABCI bridge's CheckTx uses this to reject
// obviously-bad transactions before they are ever delivered.
// Unsigned (initial) requests have nothing to check and always pass.
func (c *Controller) Check(head *store.Store, req request.Request) error {
	signer, ok := signerOf(req)
	if !ok {
		return nil
	}
	reqBytes, err := request.Encode(req)
	if err != nil {
		return fmt.Errorf("controller: encoding request: %w", err)
	}
	ctx := c.buildContext(head)
	_, err = builders.Prelude(ctx, signer, req.SignedBytes(), len(reqBytes), req.IsView())
	return err
}

// signerOf extracts the embedded Signer from the four signed request
// kinds; the three initial kinds (JarStoreInitial, GameteCreation,
// Initialization) carry none.
func signerOf(req request.Request) (request.Signer, bool) {
	switch r := req.(type) {
	case request.JarStore:
		return r.Signer, true
	case request.ConstructorCall:
		return r.Signer, true
	case request.InstanceMethodCall:
		return r.Signer, true
	case request.StaticMethodCall:
		return r.Signer, true
	default:
		return request.Signer{}, false
	}
}

// manifestOf reports req's manifest reference when req is the
// Initialization request that seals it.
func manifestOf(req request.Request) (values.StorageReference, bool) {
	if init, ok := req.(request.Initialization); ok {
		return init.Manifest, true
	}
	return values.StorageReference{}, false
}

// invalidateCaches checks the class of every event resp raised against
// trustedEventCreators and, on any match, drops every cached consensus
// parameter (not only the matching one), so the very next request in the
// same block no longer sees the old values.
func (c *Controller) invalidateCaches(s *store.Store, events []values.StorageReference) {
	if c.Config == nil {
		return
	}
	for _, ev := range events {
		obj, err := serialize.Deserialize(s, ev)
		if err != nil {
			continue
		}
		if _, trusted := trustedEventCreators[obj.ClassName]; trusted {
			c.Config.InvalidateAll()
		}
	}
}

// nonceFieldName is the well-known field name bumped on every
// non-view request; RewardTransaction uses it to detect the quiescent
// case where the only update the reward call produced is the
// manifest's own nonce bump.
const nonceFieldName = "nonce"

// RewardTransaction synthesizes the system call validators.reward(...)
// at commit time: caller is the manifest, there is no gas budget, and
// its updates are elided entirely when the only thing it touched was
// the manifest's nonce (a quiescent block with nothing to reward).
func (c *Controller) RewardTransaction(cur *store.Store, rwd *Reward, behaving, misbehaving []string) (*store.Store, error) {
	manifestRef, initialized, err := cur.GetManifest()
	if err != nil {
		return cur, fmt.Errorf("reward transaction: reading manifest: %w", err)
	}
	if !initialized || c.Executor == nil {
		return cur, nil
	}

	manifest, err := serialize.Deserialize(cur, manifestRef)
	if err != nil {
		return cur, fmt.Errorf("reward transaction: loading manifest: %w", err)
	}

	actuals := []values.StorageValue{
		values.BigIntegerValue{V: rwd.Coins},
		values.BigIntegerValue{V: rwd.CoinsWithoutInflation},
		values.StringValue(joinAddresses(behaving)),
		values.StringValue(joinAddresses(misbehaving)),
		values.BigIntegerValue{V: rwd.GasConsumed},
		values.LongValue(int64(rwd.NumberOfRequests)),
	}

	result, err := c.Executor.InvokeInstance(cur, nil, "Validators.reward(BigInteger,BigInteger,String,String,BigInteger,int)", manifestRef, actuals, manifest, false)
	if err != nil {
		return cur, fmt.Errorf("reward transaction: %w", err)
	}
	if result.IsException {
		return cur, fmt.Errorf("reward transaction raised %s: %s", result.ExceptionClass, result.ExceptionMessage)
	}
	if isQuiescent(result.Updates, manifestRef) {
		return cur, nil
	}

	// The reward call is recorded as a synthetic InstanceMethodCall so it
	// hashes and replays like any other request; its actuals make every
	// block's reward reference unique.
	rewardReq := request.InstanceMethodCall{
		Signer: request.Signer{
			Caller:  manifestRef,
			ChainID: c.Params.ChainID,
		},
		MethodSignature: "Validators.reward(BigInteger,BigInteger,String,String,BigInteger,int)",
		Receiver:        manifestRef,
		Actuals:         actuals,
	}
	ref := request.Hash(rewardReq)
	resp := response.MethodCallResponse{Out: response.OutcomeVoidSuccessful}.WithBase(result.Updates, result.Events, response.GasConsumed{})

	tr := store.NewTransformation(cur)
	tr.PushRequestResponse(ref, rewardReq, resp)
	for _, upd := range result.Updates {
		if err := tr.ExpandHistory(upd.Object(), ref); err != nil {
			return cur, fmt.Errorf("reward transaction: expanding history: %w", err)
		}
	}
	next, _, err := tr.Commit()
	if err != nil {
		return cur, fmt.Errorf("reward transaction: committing: %w", err)
	}
	c.invalidateCaches(next, result.Events)
	return next, nil
}

// isQuiescent reports whether updates contains nothing at all, or
// nothing but manifestRef's own nonce field - either way the block had
// nothing to reward and the transaction is elided.
func isQuiescent(updates []values.Update, manifestRef values.StorageReference) bool {
	if len(updates) == 0 {
		return true
	}
	if len(updates) != 1 {
		return false
	}
	f, ok := updates[0].(values.UpdateOfField)
	return ok && f.Ref == manifestRef && f.Field.Name == nonceFieldName
}

func joinAddresses(addrs []string) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ","
		}
		out += a
	}
	return out
}
