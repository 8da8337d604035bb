// Package actorkit provides the small goroutine+channel scaffolding the
// rest of the system is built on: a bounded mailbox and the
// bounded-retry delivery helper used whenever one component hands a
// message to another (spec §4.7, §5).
package actorkit

import "context"

// DefaultMailboxCapacity is the recommended bounded mailbox size (spec §5).
const DefaultMailboxCapacity = 100

// Mailbox is a bounded, single-consumer channel of messages of type T.
// It is the Go stand-in for the source's actor mailbox: sends may
// suspend when full, and a single goroutine should drain it.
type Mailbox[T any] struct {
	ch chan T
}

// NewMailbox creates a mailbox with the given capacity (DefaultMailboxCapacity
// if capacity <= 0).
func NewMailbox[T any](capacity int) *Mailbox[T] {
	if capacity <= 0 {
		capacity = DefaultMailboxCapacity
	}
	return &Mailbox[T]{ch: make(chan T, capacity)}
}

// TrySend attempts a non-blocking send; it reports whether the mailbox
// accepted the message (false means the mailbox was full).
func (m *Mailbox[T]) TrySend(msg T) bool {
	select {
	case m.ch <- msg:
		return true
	default:
		return false
	}
}

// Send blocks until the message is accepted or ctx is canceled.
func (m *Mailbox[T]) Send(ctx context.Context, msg T) error {
	select {
	case m.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C exposes the receive end for range loops / select statements.
func (m *Mailbox[T]) C() <-chan T {
	return m.ch
}

// Close closes the mailbox. A stopping actor drains remaining messages
// by simply letting the channel be garbage collected (spec §5:
// "no graceful-flush protocol is required").
func (m *Mailbox[T]) Close() {
	close(m.ch)
}
