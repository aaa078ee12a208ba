// Package worker is the isolated execution context. It owns the sandboxed
// content store and the destination root handle, and talks to the
// controller exclusively through tagged messages; nothing in here is
// reachable by reference from the outside.
package worker

import (
	"context"
	"log/slog"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
	"github.com/copywrite-ai/nano-web-git/internal/hostfs"
	"github.com/copywrite-ai/nano-web-git/internal/relay"
	"github.com/copywrite-ai/nano-web-git/internal/store"
	"github.com/copywrite-ai/nano-web-git/internal/vcs"
)

const queueSize = 16

// Session is the worker's mutable state, threaded explicitly instead of
// living in package globals so multiple workers can coexist in tests.
type Session struct {
	Store     *store.MemStore
	Engine    vcs.Engine
	Proxy     relay.Proxy
	LocalRoot *hostfs.Root
}

type Worker struct {
	session *Session
	rx      chan *gitmsg.Message
	tx      chan *gitmsg.Message
}

func New(engine vcs.Engine, proxy relay.Proxy) *Worker {
	return &Worker{
		session: &Session{
			Store:  store.NewMemStore(),
			Engine: engine,
			Proxy:  proxy,
		},
		rx: make(chan *gitmsg.Message, queueSize),
		tx: make(chan *gitmsg.Message, queueSize),
	}
}

// Requests is the queue into the worker.
func (w *Worker) Requests() chan<- *gitmsg.Message {
	return w.rx
}

// Responses is the event stream out of the worker. It closes when the
// worker stops, which the channel layer treats as a crash for anything
// still pending.
func (w *Worker) Responses() <-chan *gitmsg.Message {
	return w.tx
}

// Run signals readiness and serves requests until ctx is cancelled or the
// request queue closes. Requests are served one at a time; concurrency
// exists only inside the sync engine's transfer batches.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.tx)

	w.tx <- gitmsg.NewReady()
	slog.Info("worker ready")

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped", "reason", ctx.Err())
			return

		case req, ok := <-w.rx:
			if !ok {
				slog.Info("worker request queue closed")
				return
			}
			w.serve(ctx, req)
		}
	}
}

func (w *Worker) serve(ctx context.Context, req *gitmsg.Message) {
	slog.Debug("worker request", "id", req.Id, "type", req.Type)

	payload, err := w.handle(ctx, req)
	if err != nil {
		slog.Warn("worker request failed", "id", req.Id, "type", req.Type, "error", err)
		w.tx <- gitmsg.NewError(req.Id, err.Error())
		return
	}
	w.tx <- gitmsg.NewSuccess(req.Id, payload)
}

func (w *Worker) progress(id string) func(*gitmsg.Progress) {
	return func(p *gitmsg.Progress) {
		w.tx <- gitmsg.NewProgress(id, p)
	}
}
