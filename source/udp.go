package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// pollInterval bounds how long a blocked read waits before rechecking ctx.
const pollInterval = 250 * time.Millisecond

// UDPConfig configures a UDP source.
type UDPConfig struct {
	// Addr is the local address to bind (e.g. "0.0.0.0:23333").
	Addr string
	// MaxDatagramSize is the receive buffer size (default 1500).
	// Longer datagrams are truncated by the kernel.
	MaxDatagramSize int
	// ReadTimeout ends the session when no datagram arrives for this long.
	// Zero waits forever.
	ReadTimeout time.Duration
}

// ErrIdle is returned by UDP.Next when ReadTimeout elapses without traffic.
var ErrIdle = errors.New("no datagram received within read timeout")

// UDP reads datagrams from a bound UDP socket.
type UDP struct {
	conn        net.PacketConn
	buf         []byte
	readTimeout time.Duration
	lastRecv    time.Time
}

// ListenUDP binds a UDP socket per cfg.
func ListenUDP(cfg UDPConfig) (*UDP, error) {
	size := cfg.MaxDatagramSize
	if size == 0 {
		size = DefaultMaxDatagramSize
	}
	if size < 0 || size > MaxUDPDatagramSize {
		return nil, fmt.Errorf("max datagram size %d out of range (1..%d)", size, MaxUDPDatagramSize)
	}

	conn, err := net.ListenPacket("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("bind udp %s: %w", cfg.Addr, err)
	}

	return &UDP{
		conn:        conn,
		buf:         make([]byte, size),
		readTimeout: cfg.ReadTimeout,
		lastRecv:    time.Now(),
	}, nil
}

// LocalAddr returns the bound address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Next implements Source. The socket never reports io.EOF; the session
// ends on cancellation, ReadTimeout or a socket error.
func (u *UDP) Next(ctx context.Context) (Datagram, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Datagram{}, err
		}
		if u.readTimeout > 0 && time.Since(u.lastRecv) > u.readTimeout {
			return Datagram{}, ErrIdle
		}

		if err := u.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return Datagram{}, fmt.Errorf("set read deadline: %w", err)
		}

		n, addr, err := u.conn.ReadFrom(u.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return Datagram{}, fmt.Errorf("read udp: %w", err)
		}

		now := time.Now()
		u.lastRecv = now

		data := make([]byte, n)
		copy(data, u.buf[:n])

		dg := Datagram{Data: data, Ts: now}
		if addr != nil {
			dg.Addr = addr.String()
		}
		return dg, nil
	}
}

// Close implements Source.
func (u *UDP) Close() error {
	return u.conn.Close()
}

// Describe implements Source.
func (u *UDP) Describe() string {
	return "udp://" + u.conn.LocalAddr().String()
}

var _ Source = (*UDP)(nil)
