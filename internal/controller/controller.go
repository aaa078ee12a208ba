// Package controller is the user-facing side of the system: it owns the RPC
// channel to the worker and the escalation path to the fetch relay daemon.
package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/copywrite-ai/nano-web-git/internal/config"
	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
	"github.com/copywrite-ai/nano-web-git/internal/mirror"
	"github.com/copywrite-ai/nano-web-git/internal/relay"
	"github.com/copywrite-ai/nano-web-git/internal/rpc"
	"github.com/copywrite-ai/nano-web-git/internal/store"
	"github.com/copywrite-ai/nano-web-git/internal/vcs"
	"github.com/copywrite-ai/nano-web-git/internal/worker"
)

type Controller struct {
	cfg     *config.Config
	channel *rpc.Channel
	worker  *worker.Worker
	socket  *relay.Socket
	cancel  context.CancelFunc
}

func New(cfg *config.Config) *Controller {
	return &Controller{cfg: cfg}
}

// Start wires the worker, the channel and the relay chain. A missing or
// unreachable relay daemon is not fatal: requests then go direct and only
// cross-origin escalation is unavailable.
func (c *Controller) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	direct := relay.NewDirectProxy()
	var chain relay.Proxy
	if c.cfg.RelayURL != "" {
		socket, err := relay.DialSocket(runCtx, c.cfg.RelayURL)
		if err != nil {
			slog.Warn("relay daemon unreachable, cross-origin requests will go direct",
				"url", c.cfg.RelayURL, "error", err)
		} else {
			c.socket = socket
			chain = relay.NewChainProxy(socket)
			slog.Info("relay chain connected", "url", c.cfg.RelayURL)
		}
	}
	router := relay.NewRouter(direct, chain, c.cfg.Origin, c.cfg.OpenProxy)

	c.worker = worker.New(vcs.NewTarballEngine(), router)
	go c.worker.Run(runCtx)

	c.channel = rpc.NewChannel(c.worker.Requests(), c.worker.Responses(), nil)
	return nil
}

func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.socket != nil {
		c.socket.Close()
	}
}

func (c *Controller) Clone(ctx context.Context, url, ref string, onProgress rpc.ProgressFunc) error {
	_, err := c.channel.Call(ctx, gitmsg.MsgClone, &gitmsg.Clone{URL: url, Ref: ref}, onProgress)
	return err
}

func (c *Controller) Pull(ctx context.Context, url, ref string, onProgress rpc.ProgressFunc) error {
	_, err := c.channel.Call(ctx, gitmsg.MsgPull, &gitmsg.Pull{URL: url, Ref: ref}, onProgress)
	return err
}

func (c *Controller) FileTree(ctx context.Context) ([]*store.Entry, error) {
	res, err := c.channel.Call(ctx, gitmsg.MsgFileTree, nil, nil)
	if err != nil {
		return nil, err
	}
	entries, ok := res.([]*store.Entry)
	if !ok {
		return nil, fmt.Errorf("controller: unexpected file tree payload %T", res)
	}
	return entries, nil
}

func (c *Controller) ReadFile(ctx context.Context, path string) ([]byte, error) {
	res, err := c.channel.Call(ctx, gitmsg.MsgReadFile, &gitmsg.ReadFile{Path: path}, nil)
	if err != nil {
		return nil, err
	}
	data, ok := res.([]byte)
	if !ok {
		return nil, fmt.Errorf("controller: unexpected file payload %T", res)
	}
	return data, nil
}

func (c *Controller) SetLocalRoot(ctx context.Context, dir string) error {
	_, err := c.channel.Call(ctx, gitmsg.MsgSetLocalRoot, &gitmsg.SetLocalRoot{RootDir: dir}, nil)
	return err
}

// SyncLocal mirrors the store subtree at path ("" for everything) onto the
// granted local root.
func (c *Controller) SyncLocal(ctx context.Context, path string, onProgress rpc.ProgressFunc) (*mirror.Stats, error) {
	res, err := c.channel.Call(ctx, gitmsg.MsgSyncLocal, &gitmsg.SyncLocal{Path: path}, onProgress)
	if err != nil {
		return nil, err
	}
	stats, ok := res.(*mirror.Stats)
	if !ok {
		return nil, fmt.Errorf("controller: unexpected sync payload %T", res)
	}
	return stats, nil
}

func (c *Controller) Wipe(ctx context.Context) error {
	_, err := c.channel.Call(ctx, gitmsg.MsgWipe, nil, nil)
	return err
}
