package reactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puncture-ln/punctured/internal/lnnode"
)

type recordingHandler struct {
	mu         sync.Mutex
	received   []lnnode.PaymentReceived
	successful []lnnode.PaymentSuccessful
	failed     []lnnode.PaymentFailed
}

func (h *recordingHandler) HandleReceived(ev lnnode.PaymentReceived) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, ev)
}

func (h *recordingHandler) HandleSuccessful(ev lnnode.PaymentSuccessful) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.successful = append(h.successful, ev)
}

func (h *recordingHandler) HandleFailed(ev lnnode.PaymentFailed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, ev)
}

func TestReactorDispatchesEvents(t *testing.T) {
	node := lnnode.NewFake()
	handler := &recordingHandler{}
	r := New(node, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	node.Emit(lnnode.Event{Received: &lnnode.PaymentReceived{PaymentID: "p1", AmountMsat: 1000}})
	node.Emit(lnnode.Event{Successful: &lnnode.PaymentSuccessful{PaymentID: "p2"}})
	node.Emit(lnnode.Event{Failed: &lnnode.PaymentFailed{PaymentID: "p3"}})

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.received) == 1 && len(handler.successful) == 1 && len(handler.failed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "p1", handler.received[0].PaymentID)
	assert.Equal(t, "p2", handler.successful[0].PaymentID)
	assert.Equal(t, "p3", handler.failed[0].PaymentID)
}
