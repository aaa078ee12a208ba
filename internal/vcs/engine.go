// Package vcs defines the boundary to the versioning engine. The engine
// owns clone/pull/checkout semantics; this module only consumes it against a
// sandboxed content store and a relay-aware network path.
package vcs

import (
	"context"
	"errors"

	"github.com/copywrite-ai/nano-web-git/internal/relay"
	"github.com/copywrite-ai/nano-web-git/internal/store"
)

var ErrNoRemote = errors.New("vcs: remote url missing")

// Messager receives human-readable progress lines from the engine.
type Messager func(line string)

type CloneOpts struct {
	SingleBranch bool
	Depth        int
	NoCheckout   bool
	Proxy        relay.Proxy
	OnMessage    Messager
}

type CheckoutOpts struct {
	Force bool
}

type PullOpts struct {
	SingleBranch bool
	Proxy        relay.Proxy
	OnMessage    Messager
}

// Engine is the external versioning collaborator. Implementations perform
// all network I/O through the provided relay proxy so cross-origin
// escalation stays transparent to them.
type Engine interface {
	Clone(ctx context.Context, st store.Store, url, ref string, opts *CloneOpts) error
	Checkout(ctx context.Context, st store.Store, ref string, opts *CheckoutOpts) error
	Pull(ctx context.Context, st store.Store, url, ref string, opts *PullOpts) error
}
