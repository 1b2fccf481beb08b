// Package source provides datagram sources for the receiver.
//
// A Source yields one raw datagram per call and io.EOF once exhausted.
// Sources copy each datagram out of any internal buffer, so callers own
// the returned bytes.
package source

import (
	"context"
	"io"
	"time"
)

// DefaultMaxDatagramSize is the receive buffer size used when none is configured.
const DefaultMaxDatagramSize = 1500

// MaxUDPDatagramSize is the largest UDP payload over IPv4.
const MaxUDPDatagramSize = 65535

// Datagram is one received datagram.
type Datagram struct {
	Data []byte
	// Addr is the sender address, empty when unknown.
	Addr string
	// Ts is the receive (or capture) time.
	Ts time.Time
}

// Source supplies raw datagrams.
type Source interface {
	// Next blocks until a datagram is available.
	// Returns io.EOF when the source is exhausted and ctx.Err() on cancellation.
	Next(ctx context.Context) (Datagram, error)

	// Close releases source resources.
	Close() error

	// Describe returns a short label for logs and metrics (e.g. "udp://:23333").
	Describe() string
}

// Slice is an in-memory source over a fixed list of datagrams.
type Slice struct {
	datagrams [][]byte
	pos       int
	now       func() time.Time
}

// NewSlice creates a source yielding datagrams in order.
func NewSlice(datagrams ...[]byte) *Slice {
	return &Slice{datagrams: datagrams, now: time.Now}
}

// Next implements Source.
func (s *Slice) Next(ctx context.Context) (Datagram, error) {
	if err := ctx.Err(); err != nil {
		return Datagram{}, err
	}
	if s.pos >= len(s.datagrams) {
		return Datagram{}, io.EOF
	}
	dg := s.datagrams[s.pos]
	s.pos++
	return Datagram{Data: append([]byte(nil), dg...), Ts: s.now()}, nil
}

// Close implements Source.
func (s *Slice) Close() error { return nil }

// Describe implements Source.
func (s *Slice) Describe() string { return "memory" }

var _ Source = (*Slice)(nil)
