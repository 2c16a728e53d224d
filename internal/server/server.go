//go:build unix

package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/tlvhello/internal/observability"
	"github.com/danmuck/tlvhello/internal/protocol"
	"github.com/danmuck/tlvhello/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

var (
	ErrNotListening     = errors.New("server: not listening")
	ErrAlreadyListening = errors.New("server: already listening")
	ErrPoll             = errors.New("server: poll failed")
	ErrListenerFailed   = errors.New("server: listener reported error")
)

// Server multiplexes the listener and every client slot on one goroutine.
type Server struct {
	cfg Config

	lfd   int
	wakeR int
	wakeW int
	addr  *net.TCPAddr
	table *SlotTable

	acceptFailures int
	acceptPaused   time.Time
	rng            *rand.Rand

	active   atomic.Int64
	mu       sync.RWMutex
	snapshot []SlotInfo
	started  time.Time
}

func NewServer(cfg Config) *Server {
	cfg.Session = cfg.Session.WithDefaults()
	return &Server{
		cfg:   cfg,
		lfd:   EmptyHandle,
		wakeR: EmptyHandle,
		wakeW: EmptyHandle,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run binds the listener and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Listen creates, binds and listens on the configured IPv4 address.
func (s *Server) Listen() error {
	if s.lfd != EmptyHandle {
		return ErrAlreadyListening
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	tcpAddr, err := resolveListenAddr(s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("server: socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("server: setsockopt reuseaddr: %w", err)
	}
	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("server: bind %s: %w", s.cfg.ListenAddr, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("server: nonblock listener: %w", err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("server: getsockname: %w", err)
	}

	var pipe [2]int
	if err := unix.Pipe(pipe[:]); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("server: wake pipe: %w", err)
	}
	for _, p := range pipe {
		unix.CloseOnExec(p)
		_ = unix.SetNonblock(p, true)
	}

	now := time.Now()
	table, err := NewSlotTable(s.cfg.MaxClients+1, Slot{Handle: fd, Opened: now})
	if err != nil {
		_ = unix.Close(fd)
		_ = unix.Close(pipe[0])
		_ = unix.Close(pipe[1])
		return err
	}

	s.lfd = fd
	s.wakeR, s.wakeW = pipe[0], pipe[1]
	s.table = table
	s.addr = tcpAddrFromSockaddr(bound)
	s.started = now
	s.publish()

	log.Info().
		Str("addr", s.addr.String()).
		Int("max_clients", s.cfg.MaxClients).
		Dur("respond_delay", s.cfg.Session.RespondDelay).
		Msg("server listening")
	return nil
}

// Addr is the bound listener address, nil before Listen.
func (s *Server) Addr() *net.TCPAddr {
	return s.addr
}

// Active counts occupied client slots. Safe from any goroutine.
func (s *Server) Active() int {
	return int(s.active.Load())
}

func (s *Server) MaxClients() int {
	return s.cfg.MaxClients
}

func (s *Server) Started() time.Time {
	return s.started
}

// Slots returns the table view published after the last cycle.
func (s *Server) Slots() []SlotInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SlotInfo, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// Serve runs the event loop. A poll failure is fatal; everything else is per connection.
func (s *Server) Serve(ctx context.Context) error {
	if s.lfd == EmptyHandle {
		return ErrNotListening
	}
	done := make(chan struct{})
	wakerDone := make(chan struct{})
	go func() {
		defer close(wakerDone)
		select {
		case <-ctx.Done():
			_, _ = unix.Write(s.wakeW, []byte{1})
		case <-done:
		}
	}()
	// The waker must exit before its pipe fd is closed and reused.
	defer func() {
		close(done)
		<-wakerDone
		s.closeAll()
	}()

	pfds := make([]unix.PollFd, 0, s.table.Capacity()+1)
	ids := make([]SlotID, 0, s.table.Capacity())
	for {
		if ctx.Err() != nil {
			return nil
		}
		now := time.Now()
		s.expire(now)
		pfds = append(pfds[:0], unix.PollFd{Fd: int32(s.wakeR), Events: unix.POLLIN})
		ids = ids[:0]
		timeout := -1
		for id, slot := range s.table.Iterate() {
			events := s.interest(id, slot, now, &timeout)
			pfds = append(pfds, unix.PollFd{Fd: int32(slot.Handle), Events: events})
			ids = append(ids, id)
		}

		n, err := unix.Poll(pfds, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			log.Error().Err(err).Msg("server poll failed")
			return fmt.Errorf("%w: %w", ErrPoll, err)
		}
		if pfds[0].Revents != 0 {
			s.drainWake()
			if ctx.Err() != nil {
				return nil
			}
		}
		if n == 0 {
			continue
		}

		for i, id := range ids {
			revents := pfds[i+1].Revents
			if revents == 0 {
				continue
			}
			if id == ListenerSlot {
				if revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
					return fmt.Errorf("%w: revents=%#x", ErrListenerFailed, revents)
				}
				if revents&unix.POLLIN != 0 {
					s.accept()
				}
				continue
			}
			s.dispatch(id, revents)
		}
		s.publish()
	}
}

// interest maps a slot to poll events and shortens timeout for pending timers.
func (s *Server) interest(id SlotID, slot Slot, now time.Time, timeout *int) int16 {
	if id == ListenerSlot {
		if now.Before(s.acceptPaused) {
			shortenTimeout(timeout, s.acceptPaused.Sub(now))
			return 0
		}
		return unix.POLLIN
	}
	// POLLHUP and POLLERR are always reported; data from the client is ignored.
	if now.Before(slot.Due) {
		shortenTimeout(timeout, slot.Due.Sub(now))
		return pollPeerClosed
	}
	if slot.Interest&InterestWrite == 0 {
		s.table.SetInterest(id, InterestHangup|InterestWrite)
	}
	if !slot.WriteBy.IsZero() {
		shortenTimeout(timeout, slot.WriteBy.Sub(now))
	}
	return unix.POLLOUT | pollPeerClosed
}

// expire fails every slot whose send outlived the write timeout.
func (s *Server) expire(now time.Time) {
	for id, slot := range s.table.Iterate() {
		if id == ListenerSlot || slot.WriteBy.IsZero() || now.Before(slot.WriteBy) {
			continue
		}
		s.release(id, slot, observability.OutcomeFailed, ErrWriteTimeout)
	}
}

func (s *Server) accept() {
	nfd, sa, err := unix.Accept(s.lfd)
	if err != nil {
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
			log.Debug().Err(err).Msg("server accept skipped")
			return
		}
		s.acceptFailures++
		pause := NextBackoffDelay(s.cfg.AcceptBackoff, s.acceptFailures, s.rng)
		s.acceptPaused = time.Now().Add(pause)
		observability.RecordAcceptError()
		log.Warn().Err(err).Int("failures", s.acceptFailures).Dur("pause", pause).Msg("server accept failed")
		return
	}
	s.acceptFailures = 0
	unix.CloseOnExec(nfd)
	remote := sockaddrString(sa)

	now := time.Now()
	slot := Slot{
		Handle:   nfd,
		Interest: InterestHangup,
		Session:  uuid.NewString(),
		Remote:   remote,
		Opened:   now,
	}
	if d := s.cfg.Session.RespondDelay; d > 0 {
		slot.Due = now.Add(d)
	}
	id, err := s.table.TryInsert(slot)
	if err != nil {
		_ = unix.Close(nfd)
		observability.RecordRefused()
		log.Warn().
			Str("remote", remote).
			Int("active", s.table.Active()).
			Err(err).
			Msg("server refused client")
		return
	}
	if err := prepareClientSocket(nfd); err != nil {
		s.release(id, slot, observability.OutcomeFailed, err)
		return
	}
	s.active.Store(int64(s.table.Active()))
	observability.RecordAccepted(s.table.Active())
	log.Info().
		Int("slot", int(id)).
		Int("fd", nfd).
		Str("session", slot.Session).
		Str("remote", remote).
		Msg("client connected")
}

func (s *Server) dispatch(id SlotID, revents int16) {
	slot, ok := s.table.Get(id)
	if !ok {
		return
	}
	if revents&(pollPeerClosed|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		s.release(id, slot, observability.OutcomeHangup, nil)
		return
	}
	if revents&unix.POLLOUT == 0 {
		return
	}
	pending := slot.Pending
	writeBy := slot.WriteBy
	if pending == nil {
		var frame bytes.Buffer
		if err := session.SendHello(&frame); err != nil {
			s.release(id, slot, observability.OutcomeFailed, err)
			return
		}
		pending = frame.Bytes()
		writeBy = time.Now().Add(s.cfg.Session.WriteTimeout)
	}
	n, err := writeSome(slot.Handle, pending)
	pending = pending[n:]
	switch {
	case errors.Is(err, errWouldBlock), err == nil && n > 0 && len(pending) > 0:
		s.table.SetPending(id, pending, writeBy)
	case err != nil:
		s.release(id, slot, observability.OutcomeFailed, err)
	case len(pending) == 0:
		s.release(id, slot, observability.OutcomeSent, nil)
	default:
		s.release(id, slot, observability.OutcomeFailed, protocol.ErrShortWrite)
	}
}

// release closes the handle and frees the slot.
func (s *Server) release(id SlotID, slot Slot, outcome string, cause error) {
	_ = unix.Close(slot.Handle)
	s.table.Remove(id)
	s.active.Store(int64(s.table.Active()))
	observability.RecordSession(outcome, s.table.Active(), time.Since(slot.Opened))

	event := log.Info()
	if cause != nil {
		event = log.Warn().Err(cause)
	}
	event.
		Int("slot", int(id)).
		Int("fd", slot.Handle).
		Str("session", slot.Session).
		Str("remote", slot.Remote).
		Str("outcome", outcome).
		Msg("client closed")
}

func (s *Server) publish() {
	snap := s.table.Snapshot()
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

func (s *Server) drainWake() {
	var buf [16]byte
	for {
		n, err := unix.Read(s.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (s *Server) closeAll() {
	if s.table != nil {
		for id, slot := range s.table.Iterate() {
			if id == ListenerSlot {
				continue
			}
			_ = unix.Close(slot.Handle)
			s.table.Remove(id)
		}
	}
	for _, fd := range []*int{&s.lfd, &s.wakeR, &s.wakeW} {
		if *fd != EmptyHandle {
			_ = unix.Close(*fd)
			*fd = EmptyHandle
		}
	}
	s.active.Store(0)
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
	log.Info().Msg("server stopped")
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)).String()
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)).String()
	default:
		return "unknown"
	}
}

func tcpAddrFromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IPv4(a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3]), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	default:
		return &net.TCPAddr{}
	}
}
