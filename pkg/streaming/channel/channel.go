package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
)

// BackpressureStrategy defines how a bounded channel handles a full buffer.
type BackpressureStrategy int

const (
	// Block makes Send wait until a receiver frees a slot.
	Block BackpressureStrategy = iota

	// Error makes Send fail fast with ErrChannelFull.
	Error
)

// String returns the strategy name used in metric labels.
func (s BackpressureStrategy) String() string {
	switch s {
	case Block:
		return "block"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ErrChannelFull is returned when the buffer is full and the strategy is Error.
var ErrChannelFull = fmt.Errorf("channel buffer: %w", sferrors.ErrCapacityExceeded)

// ErrChannelClosed is returned by Send on a closed channel, and by Receive
// once the channel is closed and every queued value has been drained.
var ErrChannelClosed = fmt.Errorf("channel: %w", sferrors.ErrClosed)

// BackpressureChannel is a multi-producer, multi-consumer FIFO queue with an
// explicit close signal.
type BackpressureChannel[T any] interface {
	// Send enqueues a value, waiting for space on a full bounded channel
	// when the strategy is Block.
	Send(ctx context.Context, value T) error

	// TrySend enqueues without waiting; a full buffer yields ErrChannelFull.
	TrySend(value T) error

	// Receive dequeues the oldest value, waiting until one is available.
	// It returns ErrChannelClosed once the channel is closed and empty.
	Receive(ctx context.Context) (T, error)

	// TryReceive dequeues without waiting. ok is false when nothing was
	// queued.
	TryReceive() (value T, ok bool, err error)

	// Close marks the channel closed for sending. Values already queued
	// remain receivable. Closing twice is a no-op.
	Close() error

	IsClosed() bool

	// Len returns the number of queued values.
	Len() int

	// Cap returns the buffer capacity, or 0 for an unbounded channel.
	Cap() int

	Stats() Stats
}

// Stats counts traffic through a channel.
type Stats struct {
	SendCount    int64
	ReceiveCount int64

	// BlockedSends counts sends that had to wait for space.
	BlockedSends int64

	// PeakLen is the largest number of values ever queued at once.
	PeakLen int
}

// Config holds configuration for BackpressureChannel.
type Config struct {
	// BufferSize bounds the queue. Zero or less means unbounded.
	BufferSize int

	// Strategy applies to bounded channels only.
	Strategy BackpressureStrategy

	// OnBlock is called once per send that has to wait for space.
	OnBlock func()
}

// growth unit of an unbounded ring
const initialUnboundedSize = 16

type backpressureChannel[T any] struct {
	config    Config
	unbounded bool
	closed    atomic.Bool

	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	// ring buffer, guarded by mu
	ring  []T
	head  int
	count int
	stats Stats
}

// New creates a channel with the Block strategy. A bufferSize of 0 or less
// creates an unbounded channel.
func New[T any](bufferSize int) BackpressureChannel[T] {
	return NewWithConfig[T](Config{BufferSize: bufferSize})
}

// NewUnbounded creates a channel that never makes a sender wait.
func NewUnbounded[T any]() BackpressureChannel[T] {
	return NewWithConfig[T](Config{})
}

// NewWithConfig creates a channel from config.
func NewWithConfig[T any](config Config) BackpressureChannel[T] {
	ch := &backpressureChannel[T]{
		config:    config,
		unbounded: config.BufferSize <= 0,
	}
	size := config.BufferSize
	if ch.unbounded {
		size = initialUnboundedSize
	}
	ch.ring = make([]T, size)
	ch.notFull = sync.NewCond(&ch.mu)
	ch.notEmpty = sync.NewCond(&ch.mu)
	return ch
}

func (ch *backpressureChannel[T]) Send(ctx context.Context, value T) error {
	if ch.closed.Load() {
		return ErrChannelClosed
	}
	if ch.config.Strategy == Error {
		return ch.TrySend(value)
	}

	stop := ch.wakeOnDone(ctx, ch.notFull)
	defer stop()

	ch.mu.Lock()
	defer ch.mu.Unlock()

	waited := false
	for ch.fullLocked() && !ch.closed.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !waited {
			waited = true
			ch.stats.BlockedSends++
			if ch.config.OnBlock != nil {
				ch.config.OnBlock()
			}
		}
		ch.notFull.Wait()
	}
	if ch.closed.Load() {
		return ErrChannelClosed
	}

	ch.pushLocked(value)
	return nil
}

func (ch *backpressureChannel[T]) TrySend(value T) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	switch {
	case ch.closed.Load():
		return ErrChannelClosed
	case ch.fullLocked():
		return ErrChannelFull
	}
	ch.pushLocked(value)
	return nil
}

func (ch *backpressureChannel[T]) Receive(ctx context.Context) (T, error) {
	var zero T

	stop := ch.wakeOnDone(ctx, ch.notEmpty)
	defer stop()

	ch.mu.Lock()
	defer ch.mu.Unlock()

	for ch.count == 0 && !ch.closed.Load() {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		ch.notEmpty.Wait()
	}
	if ch.count == 0 {
		return zero, ErrChannelClosed
	}
	return ch.popLocked(), nil
}

func (ch *backpressureChannel[T]) TryReceive() (T, bool, error) {
	var zero T

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.count > 0 {
		return ch.popLocked(), true, nil
	}
	if ch.closed.Load() {
		return zero, false, ErrChannelClosed
	}
	return zero, false, nil
}

func (ch *backpressureChannel[T]) Close() error {
	if !ch.closed.CompareAndSwap(false, true) {
		return nil
	}

	ch.mu.Lock()
	ch.notFull.Broadcast()
	ch.notEmpty.Broadcast()
	ch.mu.Unlock()
	return nil
}

func (ch *backpressureChannel[T]) IsClosed() bool {
	return ch.closed.Load()
}

func (ch *backpressureChannel[T]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count
}

func (ch *backpressureChannel[T]) Cap() int {
	if ch.unbounded {
		return 0
	}
	return ch.config.BufferSize
}

func (ch *backpressureChannel[T]) Stats() Stats {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.stats
}

// wakeOnDone broadcasts on cond once ctx is done, so a waiter re-checks
// ctx.Err. The returned func unregisters.
func (ch *backpressureChannel[T]) wakeOnDone(ctx context.Context, cond *sync.Cond) func() bool {
	return context.AfterFunc(ctx, func() {
		ch.mu.Lock()
		cond.Broadcast()
		ch.mu.Unlock()
	})
}

func (ch *backpressureChannel[T]) fullLocked() bool {
	return !ch.unbounded && ch.count >= len(ch.ring)
}

func (ch *backpressureChannel[T]) pushLocked(value T) {
	if ch.count == len(ch.ring) {
		// only reachable when unbounded
		grown := make([]T, 2*len(ch.ring))
		n := copy(grown, ch.ring[ch.head:])
		copy(grown[n:], ch.ring[:ch.head])
		ch.ring, ch.head = grown, 0
	}

	ch.ring[(ch.head+ch.count)%len(ch.ring)] = value
	ch.count++

	ch.stats.SendCount++
	if ch.count > ch.stats.PeakLen {
		ch.stats.PeakLen = ch.count
	}
	ch.notEmpty.Signal()
}

func (ch *backpressureChannel[T]) popLocked() T {
	var zero T
	value := ch.ring[ch.head]
	ch.ring[ch.head] = zero
	ch.head = (ch.head + 1) % len(ch.ring)
	ch.count--

	ch.stats.ReceiveCount++
	ch.notFull.Signal()
	return value
}
