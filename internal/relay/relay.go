// Package relay ferries network requests out of the sandboxed worker. A
// request either goes straight to the network (same origin, or an already
// open proxy endpoint) or escalates through the privileged fetch daemon,
// which is not subject to the worker's origin restrictions.
package relay

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
)

var (
	ErrRelayTimeout = errors.New("relay: timed out waiting for result")
	ErrRelayClosed  = errors.New("relay: connection closed")
	ErrNetwork      = errors.New("relay: network request failed")
)

// Envelope is a network request as it enters the chain. Body bytes are
// preserved verbatim through every hop.
type Envelope struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// Proxy performs a network request on behalf of the worker. The multi-hop
// chain is one implementation; a direct call is another.
type Proxy interface {
	Relay(ctx context.Context, env *Envelope) (*gitmsg.FetchResponse, error)
}

// ShouldEscalate reports whether target needs the privileged chain: requests
// to the worker's own origin, or ones already routed through the open proxy
// endpoint, can go direct.
func ShouldEscalate(target, origin, openProxy string) bool {
	if openProxy != "" && strings.HasPrefix(target, openProxy) {
		return false
	}
	if origin == "" {
		return true
	}

	tu, err := url.Parse(target)
	if err != nil {
		return true
	}
	ou, err := url.Parse(origin)
	if err != nil {
		return true
	}
	return tu.Scheme != ou.Scheme || tu.Host != ou.Host
}
