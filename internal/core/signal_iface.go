// Package core holds the connection abstraction and the room membership
// table. Nothing here touches transport resources.
package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// ConnID is an opaque handle for one live transport session.
type ConnID string

// Frame is an encoded outbound message.
type Frame []byte

// SignalConnection abstracts the messaging transport of one client.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking. It returns ErrBackpressure when the
	// outbound queue is full and ErrClosed once the connection is gone.
	TrySend(f Frame) error
	Close()
}
