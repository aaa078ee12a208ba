package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
)

// DefaultHopTimeout bounds the wait for one escalated request. Expiry
// rejects that correlation id only; the rest of the chain stays up.
const DefaultHopTimeout = 60 * time.Second

// ChainProxy escalates requests over the socket to the fetch relay daemon
// and correlates results back by fetch id. Fetch ids are uuids, so they can
// never collide with the hex request ids sharing the message bus.
type ChainProxy struct {
	socket *Socket

	// HopTimeout bounds each Relay call. Set before first use.
	HopTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan *gitmsg.FetchResult
}

var _ Proxy = (*ChainProxy)(nil)

func NewChainProxy(socket *Socket) *ChainProxy {
	p := &ChainProxy{
		socket:     socket,
		HopTimeout: DefaultHopTimeout,
		pending:    make(map[string]chan *gitmsg.FetchResult),
	}
	go p.dispatch()
	return p
}

func (p *ChainProxy) Relay(ctx context.Context, env *Envelope) (*gitmsg.FetchResponse, error) {
	fetchID := uuid.NewString()

	resultCh := make(chan *gitmsg.FetchResult, 1)
	p.mu.Lock()
	p.pending[fetchID] = resultCh
	p.mu.Unlock()
	defer p.evict(fetchID)

	msg := gitmsg.NewFetchProxy(fetchID, env.URL, env.Method, env.Headers, env.Body)
	if err := p.socket.Send(msg); err != nil {
		return nil, fmt.Errorf("relay: send envelope: %w", err)
	}
	slog.Debug("relay escalate", "fetchId", fetchID, "method", env.Method, "url", env.URL)

	timer := time.NewTimer(p.HopTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case <-p.socket.Done():
		return nil, ErrRelayClosed

	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", ErrRelayTimeout, fetchID, p.HopTimeout)

	case result := <-resultCh:
		if result.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrNetwork, result.Error)
		}
		return result.Response, nil
	}
}

// dispatch routes inbound results to their pending call. Results for ids
// that already timed out or completed are discarded.
func (p *ChainProxy) dispatch() {
	for msg := range p.socket.Recv() {
		result, ok := msg.Data.(*gitmsg.FetchResult)
		if !ok {
			slog.Warn("relay unexpected message", "id", msg.Id, "type", msg.Type)
			continue
		}

		p.mu.Lock()
		ch, pending := p.pending[result.FetchID]
		if pending {
			delete(p.pending, result.FetchID)
		}
		p.mu.Unlock()

		if !pending {
			slog.Debug("relay late result discarded", "fetchId", result.FetchID)
			continue
		}
		ch <- result
	}
}

func (p *ChainProxy) evict(fetchID string) {
	p.mu.Lock()
	delete(p.pending, fetchID)
	p.mu.Unlock()
}
