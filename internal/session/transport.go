// Package session implements the client session layer of §4.5: connection
// acceptance, per-user connection-count caps, request demultiplexing,
// authorization by registration state, and event-stream attachment.
//
// The peer-to-peer transport itself is explicitly out of core scope (§1):
// this package depends only on the narrow Transport/Session/Stream
// interfaces below, so the orchestration logic is testable against fakes
// and portable to whatever authenticated, multiplexed, bidirectional
// transport a deployment chooses.
package session

import (
	"context"
	"io"
)

// Stream is one bidirectional or unidirectional substream of a Session.
type Stream interface {
	io.ReadWriteCloser
}

// Session is one connection whose counterparty identity is a stable
// public key (§1).
type Session interface {
	// RemotePublicKeyHex is the counterparty's transport public key,
	// i.e. the user_pk of §3 — never user-supplied.
	RemotePublicKeyHex() string

	// AcceptStream blocks until the counterparty opens a new
	// bidirectional substream (a request), or ctx is canceled.
	AcceptStream(ctx context.Context) (Stream, error)

	// OpenStream opens a new unidirectional substream (an event) to
	// the counterparty.
	OpenStream(ctx context.Context) (Stream, error)

	Close() error
}

// Transport accepts incoming Sessions.
type Transport interface {
	Accept(ctx context.Context) (Session, error)
	Close() error
}
