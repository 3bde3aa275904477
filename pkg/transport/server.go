package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/binsense/coapnode-go/pkg/log"
)

// DefaultPort is the CoAP UDP port (RFC 7252).
const DefaultPort = 5683

// DefaultMaxDatagramSize bounds inbound datagrams. CoAP messages fit
// comfortably in a single unfragmented UDP payload.
const DefaultMaxDatagramSize = 1472

// logDataCap bounds the raw bytes captured per datagram log event.
const logDataCap = 512

// ServerConfig configures the UDP listener.
type ServerConfig struct {
	// Address to listen on (e.g., ":5683" or "127.0.0.1:5683").
	Address string

	// MaxDatagramSize is the receive buffer size (default: 1472).
	MaxDatagramSize int

	// Logger for datagram logging (optional).
	Logger log.Logger

	// OnDatagram is called for every received datagram. The data slice
	// is owned by the callee.
	OnDatagram func(endpoint string, data []byte)

	// OnError is called for receive errors that do not stop the server.
	OnError func(err error)
}

// Server is a UDP listener for CoAP datagrams.
type Server struct {
	config ServerConfig
	logger log.Logger

	// sessionID identifies this server run in log events.
	sessionID string

	conn *net.UDPConn

	// Resolved peer addresses by endpoint string, learned on receive.
	peers   map[string]*net.UDPAddr
	peersMu sync.RWMutex

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a UDP server. It does not bind until Start.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxDatagramSize <= 0 {
		config.MaxDatagramSize = DefaultMaxDatagramSize
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Server{
		config:    config,
		logger:    logger,
		sessionID: uuid.New().String(),
		peers:     make(map[string]*net.UDPAddr),
	}
}

// SessionID returns the identifier of this server run.
func (s *Server) SessionID() string {
	return s.sessionID
}

// Start binds the socket and begins receiving datagrams.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("transport: server already running")
	}

	addr, err := net.ResolveUDPAddr("udp", s.config.Address)
	if err != nil {
		return fmt.Errorf("transport: resolve %s: %w", s.config.Address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen: %w", err)
	}
	s.conn = conn

	ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Layer:     log.LayerTransport,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityServer,
			NewState: "LISTENING",
			Reason:   conn.LocalAddr().String(),
		},
	})

	s.wg.Add(1)
	go s.receiveLoop()

	// Stop is idempotent, so a second call from the direct Stop path is
	// harmless.
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop closes the socket and waits for the receive loop to drain.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	err := s.conn.Close()
	s.wg.Wait()

	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Layer:     log.LayerTransport,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityServer,
			OldState: "LISTENING",
			NewState: "STOPPED",
		},
	})
	return err
}

// Addr returns the bound local address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Send transmits one datagram to endpoint. Unknown endpoints are
// resolved on the fly.
func (s *Server) Send(endpoint string, data []byte) error {
	if !s.running.Load() {
		return errors.New("transport: server not running")
	}

	s.peersMu.RLock()
	addr := s.peers[endpoint]
	s.peersMu.RUnlock()

	if addr == nil {
		resolved, err := net.ResolveUDPAddr("udp", endpoint)
		if err != nil {
			return fmt.Errorf("transport: resolve %s: %w", endpoint, err)
		}
		addr = resolved
		s.peersMu.Lock()
		s.peers[endpoint] = addr
		s.peersMu.Unlock()
	}

	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("transport: send to %s: %w", endpoint, err)
	}
	s.logDatagram(log.DirectionOut, endpoint, data)
	return nil
}

// receiveLoop reads datagrams until the socket closes.
func (s *Server) receiveLoop() {
	defer s.wg.Done()

	buf := make([]byte, s.config.MaxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.running.Load() && s.config.OnError != nil {
				s.config.OnError(fmt.Errorf("transport: receive: %w", err))
			}
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		endpoint := addr.String()
		s.peersMu.Lock()
		s.peers[endpoint] = addr
		s.peersMu.Unlock()

		data := append([]byte(nil), buf[:n]...)
		s.logDatagram(log.DirectionIn, endpoint, data)
		if s.config.OnDatagram != nil {
			s.config.OnDatagram(endpoint, data)
		}
	}
}

func (s *Server) logDatagram(dir log.Direction, endpoint string, data []byte) {
	captured := data
	truncated := false
	if len(captured) > logDataCap {
		captured = captured[:logDataCap]
		truncated = true
	}
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  s.sessionID,
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   log.CategoryMessage,
		RemoteAddr: endpoint,
		Datagram: &log.DatagramEvent{
			Size:      len(data),
			Data:      captured,
			Truncated: truncated,
		},
	})
}
