package lnnode

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/puncture-ln/punctured/pkg/logger"
	"go.uber.org/zap"
)

// LNDConfig describes how to reach the embedded LND node, mirroring the
// teacher's internal/lnd.Config.
type LNDConfig struct {
	GRPCHost              string
	GRPCPort              string
	TLSCertPath           string
	MacaroonPath          string
	PaymentTimeoutSeconds int
	MaxPaymentFeeSats     int64
}

// macaroonCredential attaches the hex-encoded macaroon as gRPC metadata on
// every RPC call (grounded on the teacher's internal/lnd.Client).
type macaroonCredential struct {
	macaroon string
}

func (m macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": m.macaroon}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool { return true }

// LND adapts an LND node's gRPC surface to the Node interface.
//
// ErrBolt12Unsupported documents a known gap: the LND release this daemon
// is grounded on does not expose a stable bolt12 RPC surface, so
// MintBolt12VariableAmount and SendBolt12 return this error rather than a
// fabricated call. A daemon deployment that requires bolt12 must run
// against an LND build with offers enabled and update this adapter.
var ErrBolt12Unsupported = errors.New("lnnode: bolt12 is not supported by the configured node")

type LND struct {
	conn         *grpc.ClientConn
	lnClient     lnrpc.LightningClient
	routerClient routerrpc.RouterClient
	cfg          LNDConfig

	events chan Event
}

// NewLND dials the configured LND node and validates connectivity via
// GetInfo before returning, matching the teacher's fail-fast startup
// check.
func NewLND(cfg LNDConfig) (*LND, error) {
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("lnnode: load tls cert %s: %w", cfg.TLSCertPath, err)
	}

	macaroonBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("lnnode: read macaroon %s: %w", cfg.MacaroonPath, err)
	}
	macaroonCreds := macaroonCredential{macaroon: hex.EncodeToString(macaroonBytes)}

	addr := cfg.GRPCHost + ":" + cfg.GRPCPort
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds), grpc.WithPerRPCCredentials(macaroonCreds))
	if err != nil {
		return nil, fmt.Errorf("lnnode: dial %s: %w", addr, err)
	}

	lnClient := lnrpc.NewLightningClient(conn)
	info, err := lnClient.GetInfo(context.Background(), &lnrpc.GetInfoRequest{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("lnnode: connect to lnd (is it running? wallet unlocked?): %w", err)
	}
	logger.Info("lnnode: connected to lnd",
		zap.String("alias", info.Alias), zap.String("pubkey", info.IdentityPubkey),
		zap.Bool("synced_to_chain", info.SyncedToChain), zap.Bool("synced_to_graph", info.SyncedToGraph))
	if !info.SyncedToChain {
		logger.Warn("lnnode: lnd is not synced to chain; payments may fail until sync completes")
	}

	return &LND{
		conn:         conn,
		lnClient:     lnClient,
		routerClient: routerrpc.NewRouterClient(conn),
		cfg:          cfg,
		events:       make(chan Event, 64),
	}, nil
}

func (l *LND) MintBolt11(ctx context.Context, amountMsat int64, description string, expirySecs int64) (MintedInvoice, error) {
	resp, err := l.lnClient.AddInvoice(ctx, &lnrpc.Invoice{
		ValueMsat: amountMsat,
		Memo:      description,
		Expiry:    expirySecs,
	})
	if err != nil {
		return MintedInvoice{}, fmt.Errorf("lnnode: mint bolt11: %w", err)
	}
	return MintedInvoice{
		PaymentHash: hex.EncodeToString(resp.RHash),
		PR:          resp.PaymentRequest,
		ExpiresAt:   time.Now().Add(time.Duration(expirySecs) * time.Second).UnixMilli(),
	}, nil
}

func (l *LND) MintBolt12VariableAmount(ctx context.Context, description string) (MintedOffer, error) {
	return MintedOffer{}, ErrBolt12Unsupported
}

func (l *LND) SendBolt11(ctx context.Context, invoice string, amountMsat int64) (SendResult, error) {
	decoded, err := l.DecodeBolt11(ctx, invoice)
	if err != nil {
		return SendResult{}, err
	}
	if decoded.IsExpired {
		return SendResult{}, fmt.Errorf("lnnode: send bolt11: invoice expired")
	}

	stream, err := l.routerClient.SendPaymentV2(ctx, &routerrpc.SendPaymentRequest{
		PaymentRequest: invoice,
		AmtMsat:        amountMsat,
		FeeLimitSat:    l.cfg.MaxPaymentFeeSats,
		TimeoutSeconds: int32(l.cfg.PaymentTimeoutSeconds),
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("lnnode: send bolt11: %w", err)
	}

	go l.pumpPayment(decoded.PaymentHash, stream)

	return SendResult{PaymentID: decoded.PaymentHash}, nil
}

func (l *LND) SendBolt12(ctx context.Context, offer string, amountMsat int64) (SendResult, error) {
	return SendResult{}, ErrBolt12Unsupported
}

func (l *LND) DecodeBolt12(ctx context.Context, offer string) (DecodedBolt12, error) {
	return DecodedBolt12{}, ErrBolt12Unsupported
}

func (l *LND) DecodeBolt11(ctx context.Context, invoice string) (DecodedBolt11, error) {
	decoded, err := l.lnClient.DecodePayReq(ctx, &lnrpc.PayReqString{PayReq: invoice})
	if err != nil {
		return DecodedBolt11{}, fmt.Errorf("lnnode: decode bolt11: %w", err)
	}
	isExpired := time.Now().Unix() > decoded.Timestamp+decoded.Expiry

	var amount *int64
	if decoded.NumMsat > 0 {
		amount = &decoded.NumMsat
	}

	return DecodedBolt11{
		PaymentHash: decoded.PaymentHash,
		AmountMsat:  amount,
		IsExpired:   isExpired,
	}, nil
}

func (l *LND) pumpPayment(paymentHash string, stream routerrpc.Router_SendPaymentV2Client) {
	for {
		update, err := stream.Recv()
		if err != nil {
			l.events <- Event{Failed: &PaymentFailed{PaymentID: paymentHash, Reason: err.Error()}}
			return
		}
		switch update.Status {
		case lnrpc.Payment_SUCCEEDED:
			feeMsat := update.FeeMsat
			l.events <- Event{Successful: &PaymentSuccessful{PaymentID: paymentHash, FeePaidMsat: &feeMsat}}
			return
		case lnrpc.Payment_FAILED:
			l.events <- Event{Failed: &PaymentFailed{PaymentID: paymentHash, Reason: update.FailureReason.String()}}
			return
		}
	}
}

func (l *LND) Events() <-chan Event { return l.events }

func (l *LND) Start(ctx context.Context) error {
	go l.pumpInvoices(ctx)
	return nil
}

// pumpInvoices subscribes to LND's invoice stream and translates settled
// invoices into PaymentReceived events for bolt11 receives.
func (l *LND) pumpInvoices(ctx context.Context) {
	stream, err := l.lnClient.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{})
	if err != nil {
		logger.Error("lnnode: subscribe invoices", zap.Error(err))
		return
	}
	for {
		inv, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("lnnode: invoice stream error", zap.Error(err))
			return
		}
		if inv.State != lnrpc.Invoice_SETTLED {
			continue
		}
		l.events <- Event{Received: &PaymentReceived{
			PaymentID:   hex.EncodeToString(inv.RHash),
			AmountMsat:  inv.AmtPaidMsat,
			Kind:        KindBolt11,
			PaymentHash: hex.EncodeToString(inv.RHash),
		}}
	}
}

func (l *LND) Stop() error {
	close(l.events)
	return l.conn.Close()
}
