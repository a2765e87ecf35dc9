// Package netx holds small network helpers shared by the server transport.
package netx

import (
	"context"
	"net"

	"google.golang.org/grpc/peer"
)

// UnknownPeer identifies callers whose address cannot be determined.
const UnknownPeer = "unknown"

// HostOf returns the host part of addr, or the whole address when it has no
// port.
func HostOf(addr net.Addr) string {
	if addr == nil {
		return UnknownPeer
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil || host == "" {
		if s := addr.String(); s != "" {
			return s
		}
		return UnknownPeer
	}
	return host
}

// PeerHost returns the host of the gRPC peer in ctx.
func PeerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return UnknownPeer
	}
	return HostOf(p.Addr)
}
