// Package reactor runs the single task of §4.6: consuming asynchronous
// Lightning-node events and dispatching them to the orchestrator's
// settlement reconciliation.
package reactor

import (
	"context"

	"go.uber.org/zap"

	"github.com/puncture-ln/punctured/internal/lnnode"
	"github.com/puncture-ln/punctured/pkg/logger"
)

// Handler is the subset of orchestrator.Orchestrator the reactor drives.
// Accepted as an interface so tests can substitute a recording fake.
type Handler interface {
	HandleReceived(ev lnnode.PaymentReceived)
	HandleSuccessful(ev lnnode.PaymentSuccessful)
	HandleFailed(ev lnnode.PaymentFailed)
}

// Reactor consumes node.Events() until the node closes the channel or ctx
// is canceled, whichever comes first (§5 "the reactor loop exits" during
// shutdown).
type Reactor struct {
	node    lnnode.Node
	handler Handler
}

// New constructs a Reactor.
func New(node lnnode.Node, handler Handler) *Reactor {
	return &Reactor{node: node, handler: handler}
}

// Run blocks, dispatching node events, until ctx is canceled or the node's
// event channel closes.
func (r *Reactor) Run(ctx context.Context) {
	events := r.node.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.dispatch(ev)
		}
	}
}

func (r *Reactor) dispatch(ev lnnode.Event) {
	switch {
	case ev.Received != nil:
		r.handler.HandleReceived(*ev.Received)
	case ev.Successful != nil:
		r.handler.HandleSuccessful(*ev.Successful)
	case ev.Failed != nil:
		r.handler.HandleFailed(*ev.Failed)
	default:
		logger.Warn("reactor: dropping node event with no recognized variant", zap.Any("event", ev))
	}
}
