package server

import (
	"context"
	"net"

	"github.com/vitalvas/radiusd/pkg/packet"
)

// AccessHandler decides on Access-Request packets.
// The returned packet is sent back after the server forces its identifier
// and computes its authenticator; a nil packet or an error becomes an
// Access-Reject with InternalErrorMessage.
type AccessHandler interface {
	ServeAccess(ctx context.Context, req *packet.Packet) (*packet.Packet, error)
}

// AccessHandlerFunc is an adapter to allow use of ordinary functions as access handlers
type AccessHandlerFunc func(ctx context.Context, req *packet.Packet) (*packet.Packet, error)

// ServeAccess calls f(ctx, req)
func (f AccessHandlerFunc) ServeAccess(ctx context.Context, req *packet.Packet) (*packet.Packet, error) {
	return f(ctx, req)
}

// AccountingHandler consumes verified Accounting-Request packets.
// Errors are logged; the Accounting-Response is sent regardless.
type AccountingHandler interface {
	ServeAccounting(ctx context.Context, req *packet.Packet) error
}

// AccountingHandlerFunc is an adapter to allow use of ordinary functions as accounting handlers
type AccountingHandlerFunc func(ctx context.Context, req *packet.Packet) error

// ServeAccounting calls f(ctx, req)
func (f AccountingHandlerFunc) ServeAccounting(ctx context.Context, req *packet.Packet) error {
	return f(ctx, req)
}

type contextKey int

const remoteAddrKey contextKey = iota

// WithRemoteAddr returns a copy of ctx carrying addr, as seen by handlers through RemoteAddr
func WithRemoteAddr(ctx context.Context, addr net.Addr) context.Context {
	return context.WithValue(ctx, remoteAddrKey, addr)
}

// RemoteAddr returns the source address of the datagram being handled
func RemoteAddr(ctx context.Context) (net.Addr, bool) {
	addr, ok := ctx.Value(remoteAddrKey).(net.Addr)
	return addr, ok
}
