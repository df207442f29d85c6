package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// method describes one entry in the fixed method whitelist of §4.5: its
// handler, and whether it is callable by an unregistered user_pk
// ("register" is the only one, per §4.5).
type method struct {
	requiresAuth bool
	handle       func(ctx context.Context, s *Server, userPK string, raw json.RawMessage) (any, error)
}

var methods = map[string]method{
	"register":          {requiresAuth: false, handle: handleRegister},
	"bolt11_receive":    {requiresAuth: true, handle: handleBolt11Receive},
	"bolt11_send":       {requiresAuth: true, handle: handleBolt11Send},
	"bolt12_receive":    {requiresAuth: true, handle: handleBolt12Receive},
	"bolt12_send":       {requiresAuth: true, handle: handleBolt12Send},
	"set_recovery_name": {requiresAuth: true, handle: handleSetRecoveryName},
	"recover":           {requiresAuth: true, handle: handleRecover},
}

type registerRequest struct {
	InviteID string `json:"invite_id"`
}

type registerResponse struct {
	Network string `json:"network"`
	Name    string `json:"name"`
}

func handleRegister(ctx context.Context, s *Server, userPK string, raw json.RawMessage) (any, error) {
	var req registerRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errMalformed(err)
	}
	res, err := s.orchestrator.Register(ctx, userPK, req.InviteID)
	if err != nil {
		return nil, err
	}
	return registerResponse{Network: res.Network, Name: res.DaemonName}, nil
}

type bolt11ReceiveRequest struct {
	AmountMsat  int64  `json:"amount_msat"`
	Description string `json:"description"`
}

type bolt11ReceiveResponse struct {
	Invoice string `json:"invoice"`
}

func handleBolt11Receive(ctx context.Context, s *Server, userPK string, raw json.RawMessage) (any, error) {
	var req bolt11ReceiveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errMalformed(err)
	}
	invoice, err := s.orchestrator.Bolt11Receive(ctx, userPK, req.AmountMsat, req.Description)
	if err != nil {
		return nil, err
	}
	return bolt11ReceiveResponse{Invoice: invoice}, nil
}

type bolt11SendRequest struct {
	Invoice    string  `json:"invoice"`
	AmountMsat int64   `json:"amount_msat"`
	LnAddress  *string `json:"ln_address,omitempty"`
}

func handleBolt11Send(ctx context.Context, s *Server, userPK string, raw json.RawMessage) (any, error) {
	var req bolt11SendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errMalformed(err)
	}
	if err := s.orchestrator.Bolt11Send(ctx, userPK, req.Invoice, req.AmountMsat, req.LnAddress); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type bolt12ReceiveResponse struct {
	Offer string `json:"offer"`
}

func handleBolt12Receive(ctx context.Context, s *Server, userPK string, raw json.RawMessage) (any, error) {
	offer, err := s.orchestrator.Bolt12Receive(ctx, userPK)
	if err != nil {
		return nil, err
	}
	return bolt12ReceiveResponse{Offer: offer}, nil
}

type bolt12SendRequest struct {
	Offer      string `json:"offer"`
	AmountMsat int64  `json:"amount_msat"`
}

func handleBolt12Send(ctx context.Context, s *Server, userPK string, raw json.RawMessage) (any, error) {
	var req bolt12SendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errMalformed(err)
	}
	if err := s.orchestrator.Bolt12Send(ctx, userPK, req.Offer, req.AmountMsat); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type setRecoveryNameRequest struct {
	RecoveryName *string `json:"recovery_name,omitempty"`
}

func handleSetRecoveryName(ctx context.Context, s *Server, userPK string, raw json.RawMessage) (any, error) {
	var req setRecoveryNameRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errMalformed(err)
	}
	if err := s.orchestrator.SetRecoveryName(ctx, userPK, req.RecoveryName); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type recoverRequest struct {
	RecoveryID string `json:"recovery_id"`
}

type recoverResponse struct {
	BalanceMsat int64 `json:"balance_msat"`
}

func handleRecover(ctx context.Context, s *Server, userPK string, raw json.RawMessage) (any, error) {
	var req recoverRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errMalformed(err)
	}
	res, err := s.orchestrator.Recover(ctx, userPK, req.RecoveryID)
	if err != nil {
		return nil, err
	}
	return recoverResponse{BalanceMsat: res.BalanceMsat}, nil
}

// errMalformedRequest is surfaced when a request frame fails to decode
// (§7 MalformedRequest).
var errMalformedRequest = fmt.Errorf("MalformedRequest")

func errMalformed(cause error) error {
	return fmt.Errorf("%w: %v", errMalformedRequest, cause)
}
