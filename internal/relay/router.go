package relay

import (
	"context"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
)

// Router is the chain's decision point: same-origin requests and requests
// already routed through the open proxy endpoint go direct, everything else
// escalates. With no chain configured everything goes direct.
type Router struct {
	direct    Proxy
	chain     Proxy
	origin    string
	openProxy string
}

var _ Proxy = (*Router)(nil)

func NewRouter(direct, chain Proxy, origin, openProxy string) *Router {
	return &Router{
		direct:    direct,
		chain:     chain,
		origin:    origin,
		openProxy: openProxy,
	}
}

func (r *Router) Relay(ctx context.Context, env *Envelope) (*gitmsg.FetchResponse, error) {
	if r.chain != nil && ShouldEscalate(env.URL, r.origin, r.openProxy) {
		return r.chain.Relay(ctx, env)
	}
	return r.direct.Relay(ctx, env)
}
