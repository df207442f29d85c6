package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/puncture-ln/punctured/internal/eventbus"
	"github.com/puncture-ln/punctured/internal/ledger"
	"github.com/puncture-ln/punctured/internal/orchestrator"
	"github.com/puncture-ln/punctured/pkg/logger"
)

// replayLimit bounds the historical payments replayed to a freshly
// attached session before live events are forwarded (§4.5).
const replayLimit = 50

// EventSubscriber is the narrow slice of eventbus.Bus the session layer
// depends on, accepted as an interface so tests can substitute a fake.
type EventSubscriber interface {
	Subscribe(ctx context.Context, userPK string) (*eventbus.Subscription, error)
}

// Server accepts Sessions from a Transport, enforces the per-user
// connection cap, demultiplexes request substreams to the method
// whitelist, and attaches an event-forwarding stream per connection
// (§4.5).
type Server struct {
	transport    Transport
	orchestrator *orchestrator.Orchestrator
	store        *ledger.Store
	bus          EventSubscriber
	maxPerUser   int64

	mu    sync.Mutex
	conns map[string]int64
}

// NewServer constructs a Server. maxConnectionsPerUser <= 0 disables the cap.
func NewServer(transport Transport, orch *orchestrator.Orchestrator, store *ledger.Store, bus EventSubscriber, maxConnectionsPerUser int64) *Server {
	return &Server{
		transport:    transport,
		orchestrator: orch,
		store:        store,
		bus:          bus,
		maxPerUser:   maxConnectionsPerUser,
		conns:        make(map[string]int64),
	}
}

// Run accepts sessions until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	for {
		sess, err := s.transport.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("session: accept failed", zap.Error(err))
			continue
		}
		go s.handleSession(ctx, sess)
	}
}

func (s *Server) acquireSlot(userPK string) bool {
	if s.maxPerUser <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[userPK] >= s.maxPerUser {
		return false
	}
	s.conns[userPK]++
	return true
}

func (s *Server) releaseSlot(userPK string) {
	if s.maxPerUser <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[userPK] > 0 {
		s.conns[userPK]--
		if s.conns[userPK] == 0 {
			delete(s.conns, userPK)
		}
	}
}

func (s *Server) handleSession(ctx context.Context, sess Session) {
	userPK := sess.RemotePublicKeyHex()

	if !s.acquireSlot(userPK) {
		logger.Warn("session: connection cap exceeded", zap.String("user_pk", userPK))
		sess.Close()
		return
	}
	defer s.releaseSlot(userPK)
	defer sess.Close()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.forwardEvents(sessionCtx, sess, userPK)
	}()
	go func() {
		defer wg.Done()
		s.serveRequests(sessionCtx, sess, userPK)
		cancel()
	}()
	wg.Wait()
}

// serveRequests loops accepting request substreams and dispatching them
// by method name (§4.5, §6.1). Every method but "register" requires
// userPK to already be a registered account.
func (s *Server) serveRequests(ctx context.Context, sess Session, userPK string) {
	for {
		stream, err := sess.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.handleRequest(ctx, stream, userPK)
	}
}

func (s *Server) handleRequest(ctx context.Context, stream Stream, userPK string) {
	defer stream.Close()

	frame, err := io.ReadAll(io.LimitReader(stream, MaxRequestFrame+1))
	if err != nil {
		s.writeErr(stream, "MalformedRequest")
		return
	}
	if len(frame) > MaxRequestFrame {
		s.writeErr(stream, "MalformedRequest")
		return
	}

	env, err := decodeRequest(frame)
	if err != nil {
		s.writeErr(stream, "MalformedRequest")
		return
	}

	m, ok := methods[env.Method]
	if !ok {
		s.writeErr(stream, "UnknownMethod")
		return
	}

	if m.requiresAuth {
		exists, err := s.store.UserExists(userPK)
		if err != nil {
			logger.Error("session: check registration", zap.Error(err))
			s.writeErr(stream, "InternalError")
			return
		}
		if !exists {
			s.writeErr(stream, "Unauthenticated")
			return
		}
	}

	result, err := m.handle(ctx, s, userPK, env.Request)
	if err != nil {
		s.writeErr(stream, errString(err))
		return
	}

	payload, err := encodeOk(result)
	if err != nil {
		logger.Error("session: encode response", zap.Error(err))
		s.writeErr(stream, "InternalError")
		return
	}
	stream.Write(payload)
}

func (s *Server) writeErr(stream Stream, msg string) {
	stream.Write(encodeErr(msg))
}

// errString unwraps a sentinel error to the bare identifier the wire
// protocol sends, falling back to the full message for anything
// unrecognized (e.g. a wrapped MalformedRequest cause).
func errString(err error) string {
	if errors.Is(err, errMalformedRequest) {
		return "MalformedRequest"
	}
	if errors.Is(err, orchestrator.ErrUserNotRegistered) {
		return "Unauthenticated"
	}
	return err.Error()
}

// forwardEvents subscribes to userPK's topic, replays a synthetic Balance
// snapshot and recent payment history as non-live events, then forwards
// live events until ctx is canceled or the subscriber lags past capacity
// (§4.3, §4.5).
func (s *Server) forwardEvents(ctx context.Context, sess Session, userPK string) {
	stream, err := sess.OpenStream(ctx)
	if err != nil {
		return
	}
	defer stream.Close()

	sub, err := s.bus.Subscribe(ctx, userPK)
	if err != nil {
		logger.Error("session: subscribe", zap.String("user_pk", userPK), zap.Error(err))
		return
	}
	defer sub.Close()

	balance, err := s.store.UserBalance(userPK)
	if err != nil {
		logger.Error("session: read balance for replay", zap.Error(err))
		return
	}
	if !s.sendEvent(stream, eventbus.NewBalance(balance)) {
		return
	}

	recent, err := s.store.ListRecentPayments(userPK, replayLimit)
	if err != nil {
		logger.Error("session: list recent payments for replay", zap.Error(err))
		return
	}
	for _, p := range recent {
		ev := eventbus.Event{Kind: eventbus.KindPayment, IsLive: false, Payment: &eventbus.PaymentEvent{
			ID:          p.ID,
			PaymentType: paymentTypeOf(p.Kind),
			AmountMsat:  p.AmountMsat,
			FeeMsat:     p.FeeMsat,
			Description: p.Description,
			Status:      string(p.Status),
			LnAddress:   p.LnAddress,
			CreatedAt:   p.CreatedAt,
		}}
		if !s.sendEvent(stream, ev) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Lagged:
			if err != nil {
				logger.Warn("session: subscriber lagged, closing", zap.String("user_pk", userPK))
				return
			}
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if !s.sendEvent(stream, ev) {
				return
			}
		}
	}
}

func paymentTypeOf(kind string) eventbus.PaymentType {
	if kind == "send" {
		return eventbus.PaymentTypeSend
	}
	return eventbus.PaymentTypeReceive
}

func (s *Server) sendEvent(stream Stream, ev eventbus.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("session: encode event", zap.Error(err))
		return false
	}
	if _, err := stream.Write(payload); err != nil {
		return false
	}
	return true
}
