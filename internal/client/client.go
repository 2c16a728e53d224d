package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/danmuck/tlvhello/internal/protocol/session"
	"github.com/danmuck/tlvhello/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// DefaultPort matches the server listener.
const DefaultPort = 5555

var (
	ErrInvalidAddress = errors.New("client: invalid ipv4 address")
	ErrConnect        = errors.New("client: connect failed")
)

// ResolveServer parses a dotted IPv4 address; nothing is dialed.
func ResolveServer(ip string, port int) (*net.TCPAddr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil || !addr.Is4() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d", ErrInvalidAddress, port)
	}
	return net.TCPAddrFromAddrPort(netip.AddrPortFrom(addr, uint16(port))), nil
}

// Handshake connects, reads one HELLO frame and validates it.
// The connection is always closed before returning.
func Handshake(ctx context.Context, addr *net.TCPAddr, cfg session.Config) (tlv.Message, error) {
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp4", addr.String())
	if err != nil {
		return tlv.Message{}, fmt.Errorf("%w: %s: %w", ErrConnect, addr, err)
	}
	defer conn.Close()
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client connected")

	deadline := time.Now().Add(cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return tlv.Message{}, err
	}
	return session.ReceiveHello(conn)
}
