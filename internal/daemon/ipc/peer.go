package ipc

import (
	"fmt"
	"net"
	"time"
)

// Peer is the leader-side handle of one sibling worker channel. Rank is the
// fork rank (0..N-1), stable for the process lifetime; fan-out results are
// reported in rank order. The leader owns the connection and closes it at
// shutdown; a sibling never initiates on it.
type Peer struct {
	rank int
	conn net.Conn
}

// NewPeer wraps an established full-duplex connection.
func NewPeer(rank int, conn net.Conn) *Peer {
	return &Peer{rank: rank, conn: conn}
}

// Rank returns the peer's fork rank.
func (p *Peer) Rank() int { return p.rank }

// Exchange writes one command frame and blocks for the response frame.
// A non-zero timeout bounds the whole exchange; zero preserves the historical
// unbounded blocking contract.
func (p *Peer) Exchange(cmd []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if err := p.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("ipc: peer %d deadline: %w", p.rank, err)
		}
		defer p.conn.SetDeadline(time.Time{}) //nolint:errcheck
	}
	if err := WriteFrame(p.conn, cmd); err != nil {
		return nil, fmt.Errorf("ipc: peer %d: %w", p.rank, err)
	}
	resp, err := ReadFrame(p.conn)
	if err != nil {
		return nil, fmt.Errorf("ipc: peer %d: %w", p.rank, err)
	}
	return resp, nil
}

// Close releases the channel.
func (p *Peer) Close() error {
	return p.conn.Close()
}
