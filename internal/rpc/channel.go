// Package rpc implements the request/response/progress protocol between the
// controller and the isolated worker. The two sides share no memory; they
// exchange tagged messages over a request queue and a response channel, and
// this package correlates them by id.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
)

const (
	DefaultStartupTimeout = 10 * time.Second
	DefaultCallTimeout    = 30 * time.Second
	// clone/pull/sync move whole trees, give them minutes
	DefaultBulkTimeout = 10 * time.Minute
)

var (
	ErrStartupTimeout = errors.New("rpc: worker never signalled ready")
	ErrCallTimeout    = errors.New("rpc: call timed out")
	ErrChannelCrashed = errors.New("rpc: worker terminated")
)

// RemoteError is a terminal error response from the worker.
type RemoteError struct {
	Kind    gitmsg.MessageType
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: %s failed: %s", e.Kind, e.Message)
}

// ProgressFunc receives progress lines for one call, in emission order,
// always before the terminal result. Duplicates are passed through.
type ProgressFunc func(*gitmsg.Progress)

type Options struct {
	StartupTimeout time.Duration
	CallTimeout    time.Duration
	BulkTimeout    time.Duration
}

type pendingCall struct {
	result     chan *gitmsg.Message // buffered, exactly one terminal message
	onProgress ProgressFunc
}

// Channel is the controller-side endpoint. One dispatch goroutine consumes
// the worker's response stream, so per-id ordering is inherited from channel
// order.
type Channel struct {
	tx   chan<- *gitmsg.Message
	rx   <-chan *gitmsg.Message
	opts Options

	ready chan struct{}

	mu      sync.Mutex
	pending map[string]*pendingCall
	failure error // permanent: startup timeout or crash
}

func NewChannel(tx chan<- *gitmsg.Message, rx <-chan *gitmsg.Message, opts *Options) *Channel {
	o := Options{
		StartupTimeout: DefaultStartupTimeout,
		CallTimeout:    DefaultCallTimeout,
		BulkTimeout:    DefaultBulkTimeout,
	}
	if opts != nil {
		if opts.StartupTimeout > 0 {
			o.StartupTimeout = opts.StartupTimeout
		}
		if opts.CallTimeout > 0 {
			o.CallTimeout = opts.CallTimeout
		}
		if opts.BulkTimeout > 0 {
			o.BulkTimeout = opts.BulkTimeout
		}
	}

	c := &Channel{
		tx:      tx,
		rx:      rx,
		opts:    o,
		ready:   make(chan struct{}),
		pending: make(map[string]*pendingCall),
	}
	go c.dispatch()
	return c
}

// Call sends a request and blocks until its terminal response, the per-call
// timeout, or ctx. Calls issued before the worker is ready queue behind the
// readiness signal.
func (c *Channel) Call(ctx context.Context, kind gitmsg.MessageType, payload any, onProgress ProgressFunc) (any, error) {
	if err := c.awaitReady(ctx); err != nil {
		return nil, err
	}

	call := &pendingCall{
		result:     make(chan *gitmsg.Message, 1),
		onProgress: onProgress,
	}
	id := c.register(call)
	if id == "" {
		c.mu.Lock()
		err := c.failure
		c.mu.Unlock()
		return nil, err
	}

	// the timer covers the queue send too: a full request queue against a
	// dead worker must not block forever
	timer := time.NewTimer(c.timeoutFor(kind))
	defer timer.Stop()

	req := &gitmsg.Message{Id: id, Type: kind, Data: payload}
	select {
	case c.tx <- req:
	case <-ctx.Done():
		c.evict(id)
		return nil, ctx.Err()
	case <-timer.C:
		c.evict(id)
		return nil, fmt.Errorf("%w: %s (%s)", ErrCallTimeout, kind, id)
	}

	select {
	case <-ctx.Done():
		c.evict(id)
		return nil, ctx.Err()

	case <-timer.C:
		// the worker is not informed and may still finish its side effects
		c.evict(id)
		return nil, fmt.Errorf("%w: %s (%s)", ErrCallTimeout, kind, id)

	case msg, ok := <-call.result:
		if !ok {
			return nil, ErrChannelCrashed
		}
		switch msg.Type {
		case gitmsg.MsgSuccess:
			if s, ok := msg.Data.(*gitmsg.Success); ok {
				return s.Payload, nil
			}
			return nil, nil
		default:
			e, _ := msg.Data.(*gitmsg.Error)
			remoteMsg := "unknown error"
			if e != nil {
				remoteMsg = e.Message
			}
			return nil, &RemoteError{Kind: kind, Message: remoteMsg}
		}
	}
}

// awaitReady blocks behind the one-time ready signal; if it never arrives
// the channel fails permanently, no silent retry.
func (c *Channel) awaitReady(ctx context.Context) error {
	c.mu.Lock()
	if c.failure != nil {
		err := c.failure
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	timer := time.NewTimer(c.opts.StartupTimeout)
	defer timer.Stop()

	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		c.fail(ErrStartupTimeout)
		return ErrStartupTimeout
	}
}

// register installs the pending call under a fresh id, unique among
// currently pending ids. Returns "" if the channel already failed.
func (c *Channel) register(call *pendingCall) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failure != nil {
		return ""
	}

	id := gitmsg.NewID()
	for _, exists := c.pending[id]; exists; _, exists = c.pending[id] {
		id = gitmsg.NewID()
	}
	c.pending[id] = call
	return id
}

func (c *Channel) evict(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Channel) timeoutFor(kind gitmsg.MessageType) time.Duration {
	switch kind {
	case gitmsg.MsgClone, gitmsg.MsgPull, gitmsg.MsgSyncLocal:
		return c.opts.BulkTimeout
	default:
		return c.opts.CallTimeout
	}
}

// dispatch consumes the worker's responses until the stream closes. A closed
// stream means the worker died: every pending call is rejected and the
// channel is unusable from then on.
func (c *Channel) dispatch() {
	for msg := range c.rx {
		switch msg.Type {
		case gitmsg.MsgReady:
			select {
			case <-c.ready:
				slog.Warn("rpc duplicate ready ignored")
			default:
				close(c.ready)
			}

		case gitmsg.MsgProgress:
			c.mu.Lock()
			call := c.pending[msg.Id]
			c.mu.Unlock()
			if call == nil {
				continue
			}
			if p, ok := msg.Data.(*gitmsg.Progress); ok && call.onProgress != nil {
				// synchronous, so progress always lands before the terminal
				call.onProgress(p)
			}

		case gitmsg.MsgSuccess, gitmsg.MsgError:
			c.mu.Lock()
			call := c.pending[msg.Id]
			delete(c.pending, msg.Id)
			c.mu.Unlock()
			if call == nil {
				slog.Debug("rpc late terminal discarded", "id", msg.Id, "type", msg.Type)
				continue
			}
			call.result <- msg

		default:
			slog.Warn("rpc unexpected response", "id", msg.Id, "type", msg.Type)
		}
	}

	c.fail(ErrChannelCrashed)
}

// fail rejects every pending call and poisons the channel.
func (c *Channel) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failure != nil {
		return
	}
	c.failure = err

	for id, call := range c.pending {
		close(call.result)
		delete(c.pending, id)
	}
}
