// Copyright 2025 Certen Protocol
//
// Node façade: the public surface a client talks to - post a request,
// poll for its outcome, or subscribe to events - sitting in front of
// pkg/abci.Application. The "handler" behind each entry point is
// CometBFT's mempool rather than an inbound HTTP request.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cmtclient "github.com/cometbft/cometbft/rpc/client"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/mokanode/corechain/pkg/abci"
	"github.com/mokanode/corechain/pkg/request"
	"github.com/mokanode/corechain/pkg/response"
	"github.com/mokanode/corechain/pkg/store"
	"github.com/mokanode/corechain/pkg/values"
)

// Broadcaster is the slice of a CometBFT RPC client this package needs:
// submitting a transaction to the mempool. Narrowed to one method so
// tests can fake it without standing up a real consensus node.
type Broadcaster interface {
	BroadcastTxSync(ctx context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTx, error)
}

var _ Broadcaster = cmtclient.Client(nil)

// Notification is delivered to subscribers once the block containing a
// request's response has committed, in delivery order within the block.
type Notification struct {
	Height   int64
	Response values.TransactionReference
	Events   []values.StorageReference
}

// Predicate decides whether a subscriber wants to see a given
// notification; Subscribe(nil) matches everything.
type Predicate func(Notification) bool

// Params bound how long AddRequest waits for a response.
type Params struct {
	MaxPollingAttempts int
	PollingDelay       time.Duration
}

// Node is the public entry point wrapping an ABCI application and a
// CometBFT client used only to submit transactions into consensus; state
// reads go straight to the application's last committed store.
type Node struct {
	app    *abci.Application
	client Broadcaster
	params Params

	mu          sync.Mutex
	subscribers map[int]subscriber
	nextSub     int
}

type subscriber struct {
	predicate Predicate
	ch        chan Notification
}

// New wires a Node around app and client, registering itself as the
// application's commit hook so every committed block's event
// notifications reach subscribers in delivery order.
func New(app *abci.Application, client Broadcaster, params Params) *Node {
	n := &Node{app: app, client: client, params: params, subscribers: make(map[int]subscriber)}
	app.OnCommit = n.publish
	return n
}

func (n *Node) publish(height int64, _ store.StateID, events []abci.EventNotification) {
	n.mu.Lock()
	subs := make([]subscriber, 0, len(n.subscribers))
	for _, s := range n.subscribers {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, ev := range events {
		note := Notification{Height: height, Response: ev.Response, Events: ev.Events}
		for _, s := range subs {
			if s.predicate == nil || s.predicate(note) {
				select {
				case s.ch <- note:
				default:
					// a slow subscriber never blocks block commit; it just
					// misses a notification.
				}
			}
		}
	}
}

// Subscribe registers predicate (nil matches every notification) and
// returns a channel of matches plus an unsubscribe function.
func (n *Node) Subscribe(predicate Predicate) (<-chan Notification, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextSub
	n.nextSub++
	ch := make(chan Notification, 64)
	n.subscribers[id] = subscriber{predicate: predicate, ch: ch}

	unsubscribe := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if s, ok := n.subscribers[id]; ok {
			delete(n.subscribers, id)
			close(s.ch)
		}
	}
	return ch, unsubscribe
}

// Polled is the handle PostRequest returns: a reference the caller can
// later resolve via AddRequest or by watching Subscribe.
type Polled struct {
	Reference values.TransactionReference
}

// PostRequest submits req to the mempool and returns immediately with
// its reference, without waiting for delivery.
func (n *Node) PostRequest(ctx context.Context, req request.Request) (*Polled, error) {
	ref := request.Hash(req)
	raw, err := request.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("node: encoding request: %w", err)
	}
	result, err := n.client.BroadcastTxSync(ctx, cmttypes.Tx(raw))
	if err != nil {
		return nil, fmt.Errorf("node: broadcasting request: %w", err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("node: request rejected: %s", result.Log)
	}
	return &Polled{Reference: ref}, nil
}

// ErrTimeout is returned by AddRequest when a response never appears
// within MaxPollingAttempts tries.
var ErrTimeout = errors.New("node: polling timed out waiting for response")

// AddRequest posts req and polls the head store until its response is
// available or MaxPollingAttempts is exhausted, honoring PollingDelay
// between attempts.
func (n *Node) AddRequest(ctx context.Context, req request.Request) (response.Response, error) {
	polled, err := n.PostRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	attempts := n.params.MaxPollingAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if resp, err := n.app.Head().GetResponse(polled.Reference); err == nil {
			return resp, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(n.params.PollingDelay):
		}
	}
	return nil, ErrTimeout
}

// Request looks up a previously delivered request by reference against
// the last committed store.
func (n *Node) Request(ref values.TransactionReference) (request.Request, error) {
	return n.app.Head().GetRequest(ref)
}

// Response looks up a previously delivered response by reference against
// the last committed store.
func (n *Node) Response(ref values.TransactionReference) (response.Response, error) {
	return n.app.Head().GetResponse(ref)
}

// Manifest returns the node's manifest reference, if initialized.
func (n *Node) Manifest() (values.StorageReference, bool, error) {
	return n.app.Head().GetManifest()
}
