package transport

import (
	"fmt"
	"net"
	"sync"
)

// Socket is a thread-safe wrapper over a connected UDP socket: many
// goroutines (the event loop, the retransmit sweep, the keep-alive
// supervisor) all call Send concurrently, so writes serialize through one
// mutex the way the reference client guards its connection.
type Socket struct {
	conn *net.UDPConn
	mu   sync.Mutex
}

// Dial opens a UDP socket connected to the given remote address. Using
// net.DialUDP fixes the peer so every subsequent Send/Receive call
// implicitly targets it, matching the one-peer-per-session model of §3.
func Dial(localPort int, remoteAddr string) (*Socket, error) {
	raddr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve remote address: %w", err)
	}
	laddr := &net.UDPAddr{Port: localPort}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial udp: %w", err)
	}
	return &Socket{conn: conn}, nil
}

// Send writes raw to the connected peer.
func (s *Socket) Send(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Write(raw)
	if err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Receive blocks for the next datagram, returning the bytes actually read.
func (s *Socket) Receive(buf []byte) (int, error) {
	n, err := s.conn.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("transport: receive: %w", err)
	}
	return n, nil
}

// LocalAddr reports the socket's local address.
func (s *Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close closes the underlying connection.
func (s *Socket) Close() error { return s.conn.Close() }
