// Copyright 2025 Certen Protocol
//
// ABCI bridge: sequences beginBlock/deliverTx/endBlock/commit onto the
// store transformation pkg/controller drives, mapping the engine's
// block lifecycle onto CometBFT's callback shape - one mutex held for a
// block's duration, a running height/app-hash pair, and the
// FinalizeBlock-folds-begin/deliver/end convention current CometBFT
// ABCI++ requires.
package abci

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cryptoproto "github.com/cometbft/cometbft/proto/tendermint/crypto"

	"github.com/mokanode/corechain/pkg/controller"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

// Version is reported from Info(); overridable at build time via
// -ldflags.
var Version = "v0.1.0-dev"

// EventNotification is one response's worth of emitted events, scheduled
// for publication at the end of Commit, once head has advanced -
// notifications never reach subscribers before the block containing them
// has committed. They are handed to OnCommit before Commit returns.
type EventNotification struct {
	Response values.TransactionReference
	Events   []values.StorageReference
}

// ValidatorDiffer reads the validator set currently recorded in the
// manifest, so endBlock can diff it against the snapshot captured at
// beginBlock. Concrete nodes wire this in once the
// validators sub-object's schema is fixed; a nil Differ means no
// validator-set changes are ever proposed, which is a safe default for
// a single, statically-configured validator.
type ValidatorDiffer interface {
	CurrentValidators(s *store.Store) (map[string]int64, error)
}

// Application implements abcitypes.Application for the transaction
// execution engine. Each callback takes a single mutex for its own
// duration; FinalizeBlock and Commit lock separately, so the mutex is not
// held between them. CheckTx, Query and Head take the same lock; pkg/node
// reads committed state through Head and then works on the returned
// immutable store without the lock.
type Application struct {
	mu sync.Mutex

	logger *log.Logger
	ctrl   *controller.Controller
	differ ValidatorDiffer

	head    *store.Store // last committed state
	working *store.Store // state as of the in-flight block so far

	height int64
	reward *controller.Reward

	behaving, misbehaving   []string
	validatorSnapshot       map[string]int64
	pendingValidatorUpdates []abcitypes.ValidatorUpdate

	scheduled []EventNotification

	// OnCommit is invoked synchronously at the end of Commit with the
	// new height, state-id and the block's scheduled event
	// notifications, in delivery order. pkg/node sets this to fan
	// notifications out to its subscribers.
	OnCommit func(height int64, id store.StateID, notifications []EventNotification)
}

// New builds an Application over head, the node's last committed store.
func New(head *store.Store, ctrl *controller.Controller, differ ValidatorDiffer, logger *log.Logger) *Application {
	if logger == nil {
		logger = log.New(log.Writer(), "[abci] ", log.LstdFlags)
	}
	height, err := head.Height()
	h := int64(0)
	if err == nil {
		h = int64(height)
	}
	return &Application{head: head, working: head, ctrl: ctrl, differ: differ, logger: logger, height: h}
}

// Head returns the last committed store - a read-only snapshot safe to
// use concurrently with in-flight block processing; view calls take a
// fresh snapshot at entry.
func (a *Application) Head() *store.Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.head
}

func (a *Application) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.head.GetStateID()
	return &abcitypes.ResponseInfo{
		Data:             "corechain transaction execution engine",
		Version:          Version,
		AppVersion:       1,
		LastBlockHeight:  a.height,
		LastBlockAppHash: id[:],
	}, nil
}

// CheckTx runs cheap validation (signature, nonce, minimal gas) against
// the head store, never the in-flight block.
func (a *Application) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	parsed, err := request.Decode(req.Tx)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 2, Log: "malformed request: " + err.Error()}, nil
	}
	if err := a.ctrl.Check(a.head, parsed); err != nil {
		var rejected response.Rejected
		if errors.As(err, &rejected) {
			return &abcitypes.ResponseCheckTx{Code: 1, Log: rejected.Reason}, nil
		}
		return &abcitypes.ResponseCheckTx{Code: 2, Log: err.Error()}, nil
	}
	return &abcitypes.ResponseCheckTx{Code: 0, GasWanted: 1}, nil
}

// InitChain is a no-op returning an empty validator set;
// the node's validator set is established by the gamete/manifest
// construction requests delivered in the first block, not by genesis.
func (a *Application) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	a.logger.Printf("InitChain: chain-id=%s", req.ChainId)
	return &abcitypes.ResponseInitChain{}, nil
}

// PrepareProposal passes the mempool's transactions through unchanged;
// this engine does not reorder or inject synthetic transactions into a
// proposal (the reward transaction runs only at Commit).
func (a *Application) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

// ProcessProposal accepts any proposal whose transactions all decode;
// deliverTx is where real rejection happens, consistently for proposer
// and non-proposer alike.
func (a *Application) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	for _, tx := range req.Txs {
		if _, err := request.Decode(tx); err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

// ExtendVote/VerifyVoteExtension: this engine does not use vote
// extensions.
func (a *Application) ExtendVote(ctx context.Context, req *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (a *Application) VerifyVoteExtension(ctx context.Context, req *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

// FinalizeBlock folds beginBlock/deliverTx/endBlock into the single
// callback current CometBFT ABCI++ requires, running the three named
// phases in sequence as internal methods.
func (a *Application) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.beginBlock(req)

	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, tx := range req.Txs {
		results[i] = a.deliverOne(tx)
	}

	updates, err := a.endBlock()
	if err != nil {
		a.logger.Printf("endBlock: %v", err)
	}

	return &abcitypes.ResponseFinalizeBlock{
		TxResults:        results,
		ValidatorUpdates: updates,
	}, nil
}

// beginBlock opens this block's store transformation by pointing
// working at head, resets the reward accumulator, captures the
// behaving/misbehaving address sets CometBFT reports, and snapshots the
// current validator set.
func (a *Application) beginBlock(req *abcitypes.RequestFinalizeBlock) {
	a.working = a.head
	a.reward = controller.NewReward()
	a.scheduled = nil
	a.behaving, a.misbehaving = addressSets(req)

	if a.differ != nil {
		if snap, err := a.differ.CurrentValidators(a.working); err == nil {
			a.validatorSnapshot = snap
		} else {
			a.logger.Printf("beginBlock: reading validator snapshot: %v", err)
			a.validatorSnapshot = nil
		}
	}
}

// addressSets derives the behaving/misbehaving address sets from the
// block's vote info and evidence.
func addressSets(req *abcitypes.RequestFinalizeBlock) (behaving, misbehaving []string) {
	for _, v := range req.DecidedLastCommit.Votes {
		addr := fmt.Sprintf("%x", v.Validator.Address)
		if v.BlockIdFlag == 2 { // BlockIDFlagCommit
			behaving = append(behaving, addr)
		} else {
			misbehaving = append(misbehaving, addr)
		}
	}
	for _, ev := range req.Misbehavior {
		misbehaving = append(misbehaving, fmt.Sprintf("%x", ev.Validator.Address))
	}
	return behaving, misbehaving
}

// deliverOne runs one transaction through the controller and advances
// the in-flight working store.
func (a *Application) deliverOne(tx []byte) *abcitypes.ExecTxResult {
	req, err := request.Decode(tx)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: 2, Log: "malformed request: " + err.Error()}
	}

	next, ref, resp, err := a.ctrl.Deliver(a.working, a.reward, req)
	a.working = next
	if err != nil {
		var rejected response.Rejected
		if errors.As(err, &rejected) {
			return &abcitypes.ExecTxResult{Code: 1, Log: rejected.Reason}
		}
		return &abcitypes.ExecTxResult{Code: 2, Log: err.Error()}
	}

	if req.IsView() {
		return &abcitypes.ExecTxResult{Code: 0}
	}

	a.scheduled = append(a.scheduled, EventNotification{Response: ref, Events: resp.Events()})
	return &abcitypes.ExecTxResult{Code: 0, Events: toABCIEvents(ref, resp)}
}

func toABCIEvents(ref values.TransactionReference, resp response.Response) []abcitypes.Event {
	return []abcitypes.Event{{
		Type: "delivered_request",
		Attributes: []abcitypes.EventAttribute{
			{Key: "reference", Value: ref.String()},
			{Key: "outcome", Value: outcomeName(resp.Outcome())},
		},
	}}
}

func outcomeName(o response.Outcome) string {
	switch o {
	case response.OutcomeSuccessful:
		return "successful"
	case response.OutcomeVoidSuccessful:
		return "void_successful"
	case response.OutcomeException:
		return "exception"
	case response.OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// endBlock diffs the validator snapshot captured at beginBlock against
// the validators currently recorded in the manifest, emitting
// remove/add/update ValidatorUpdates - refusing the diff if the result
// would leave an empty validator set.
func (a *Application) endBlock() ([]abcitypes.ValidatorUpdate, error) {
	if a.differ == nil {
		return a.drainPendingValidatorUpdates(), nil
	}
	current, err := a.differ.CurrentValidators(a.working)
	if err != nil {
		return nil, fmt.Errorf("endBlock: reading current validators: %w", err)
	}
	if len(current) == 0 {
		return nil, errors.New("endBlock: refusing diff that would leave an empty validator set")
	}

	var updates []abcitypes.ValidatorUpdate
	for pubKeyHex, power := range current {
		if old, existed := a.validatorSnapshot[pubKeyHex]; !existed || old != power {
			pk, err := decodeEd25519Hex(pubKeyHex)
			if err != nil {
				continue
			}
			updates = append(updates, validatorUpdate(pk, power))
		}
	}
	for pubKeyHex := range a.validatorSnapshot {
		if _, still := current[pubKeyHex]; !still {
			pk, err := decodeEd25519Hex(pubKeyHex)
			if err != nil {
				continue
			}
			updates = append(updates, validatorUpdate(pk, 0))
		}
	}
	return updates, nil
}

// validatorUpdate builds a ValidatorUpdate for an ed25519 key, the only
// key type this engine's validators use.
func validatorUpdate(pubKey []byte, power int64) abcitypes.ValidatorUpdate {
	return abcitypes.ValidatorUpdate{
		PubKey: cryptoproto.PublicKey{
			Sum: &cryptoproto.PublicKey_Ed25519{
				Ed25519: cmted25519.PubKey(pubKey),
			},
		},
		Power: power,
	}
}

// QueueValidatorUpdate lets a deployment without a ValidatorDiffer still
// push an explicit validator change into the next FinalizeBlock's
// response - used by tests and by the faucet/bootstrap path before the
// manifest's validators object exists to diff against.
func (a *Application) QueueValidatorUpdate(pubKey []byte, power int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingValidatorUpdates = append(a.pendingValidatorUpdates, validatorUpdate(pubKey, power))
}

func (a *Application) drainPendingValidatorUpdates() []abcitypes.ValidatorUpdate {
	updates := a.pendingValidatorUpdates
	a.pendingValidatorUpdates = nil
	return updates
}

// Commit runs the reward transaction, computes the new state-id,
// advances head, and publishes the block's scheduled event
// notifications. Notifications are passed to OnCommit, in delivery
// order, after head has advanced and the lock is released but before
// Commit returns.
func (a *Application) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	a.mu.Lock()

	next, err := a.ctrl.RewardTransaction(a.working, a.reward, a.behaving, a.misbehaving)
	if err != nil {
		a.logger.Printf("reward transaction failed, block committed without it: %v", err)
		next = a.working
	}
	a.head = next
	a.height++
	notifications := a.scheduled
	a.scheduled = nil

	a.mu.Unlock()

	if a.OnCommit != nil {
		id := a.head.GetStateID()
		a.OnCommit(a.height, id, notifications)
	}
	return &abcitypes.ResponseCommit{}, nil
}

// Query answers a handful of read-only paths against head. The engine's
// primary read surface is pkg/node, not ABCI Query; this exists mainly
// so a bare CometBFT RPC client can still confirm liveness and fetch the
// current state-id.
func (a *Application) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch req.Path {
	case "/state_id":
		id := a.head.GetStateID()
		return &abcitypes.ResponseQuery{Code: 0, Value: id[:]}, nil
	case "/request":
		r, err := a.head.GetRequest(refFromHex(req.Data))
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		raw, _ := request.Encode(r)
		return &abcitypes.ResponseQuery{Code: 0, Value: raw}, nil
	case "/response":
		resp, err := a.head.GetResponse(refFromHex(req.Data))
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		raw, _ := json.Marshal(struct {
			Outcome string `json:"outcome"`
		}{outcomeName(resp.Outcome())})
		return &abcitypes.ResponseQuery{Code: 0, Value: raw}, nil
	default:
		return &abcitypes.ResponseQuery{Code: 1, Log: "unknown query path: " + req.Path}, nil
	}
}

// State sync snapshots are not supported by this engine; the KV layer's
// own GC (pkg/trie) and a full re-sync from genesis are the supported
// catch-up paths.
func (a *Application) ListSnapshots(ctx context.Context, req *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (a *Application) OfferSnapshot(ctx context.Context, req *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_ABORT}, nil
}

func (a *Application) LoadSnapshotChunk(ctx context.Context, req *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (a *Application) ApplySnapshotChunk(ctx context.Context, req *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}

func refFromHex(data []byte) values.TransactionReference {
	var ref values.TransactionReference
	_ = ref.UnmarshalText(data)
	return ref
}

func decodeEd25519Hex(s string) ([]byte, error) {
	b := make([]byte, 32)
	n, err := fmt.Sscanf(s, "%x", &b)
	if err != nil || n != 1 {
		return nil, fmt.Errorf("abci: bad validator public key %q", s)
	}
	return b, nil
}

var _ abcitypes.Application = (*Application)(nil)
