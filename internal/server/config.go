package server

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/danmuck/tlvhello/internal/protocol/session"
)

// DefaultPort is the handshake port shared by server and client.
const DefaultPort = 5555

// DefaultMaxClients is the client slot count; the table adds one for the listener.
const DefaultMaxClients = 14

var (
	ErrInvalidListenAddr = errors.New("server: invalid listen address")
	ErrInvalidMaxClients = errors.New("server: max_clients must be at least 1")
)

// Config configures the handshake server.
type Config struct {
	ListenAddr      string
	MaxClients      int
	Session         session.Config
	AcceptBackoff   BackoffConfig
	AdminListenAddr string
	CorsOrigins     []string
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:    fmt.Sprintf("0.0.0.0:%d", DefaultPort),
		MaxClients:    DefaultMaxClients,
		Session:       session.DefaultConfig(),
		AcceptBackoff: DefaultBackoffConfig(),
	}
}

// Validate checks fields Listen depends on.
func (c Config) Validate() error {
	if c.MaxClients < 1 {
		return ErrInvalidMaxClients
	}
	if _, err := resolveListenAddr(c.ListenAddr); err != nil {
		return err
	}
	return nil
}

func resolveListenAddr(addr string) (*net.TCPAddr, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidListenAddr)
	}
	tcp, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidListenAddr, addr, err)
	}
	if tcp.IP != nil && tcp.IP.To4() == nil {
		return nil, fmt.Errorf("%w: %q is not ipv4", ErrInvalidListenAddr, addr)
	}
	return tcp, nil
}
