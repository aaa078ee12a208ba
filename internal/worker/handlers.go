package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
	"github.com/copywrite-ai/nano-web-git/internal/hostfs"
	"github.com/copywrite-ai/nano-web-git/internal/mirror"
	"github.com/copywrite-ai/nano-web-git/internal/store"
	"github.com/copywrite-ai/nano-web-git/internal/vcs"
)

var errNoLocalRoot = errors.New("worker: no local root granted, call setLocalRoot first")

// handle runs one request to completion and returns the success payload.
func (w *Worker) handle(ctx context.Context, req *gitmsg.Message) (any, error) {
	switch req.Type {
	case gitmsg.MsgInit:
		w.session.Store = store.NewMemStore()
		return nil, nil

	case gitmsg.MsgClone:
		data, ok := req.Data.(*gitmsg.Clone)
		if !ok {
			return nil, fmt.Errorf("worker: bad %s payload", req.Type)
		}
		return nil, w.session.Engine.Clone(ctx, w.session.Store, data.URL, data.Ref, &vcs.CloneOpts{
			SingleBranch: true,
			Depth:        1,
			Proxy:        w.session.Proxy,
			OnMessage:    w.noteProgress(req.Id),
		})

	case gitmsg.MsgPull:
		data, ok := req.Data.(*gitmsg.Pull)
		if !ok {
			return nil, fmt.Errorf("worker: bad %s payload", req.Type)
		}
		return nil, w.session.Engine.Pull(ctx, w.session.Store, data.URL, data.Ref, &vcs.PullOpts{
			SingleBranch: true,
			Proxy:        w.session.Proxy,
			OnMessage:    w.noteProgress(req.Id),
		})

	case gitmsg.MsgFileTree:
		var entries []*store.Entry
		err := w.session.Store.Walk("", func(e *store.Entry) error {
			entries = append(entries, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return entries, nil

	case gitmsg.MsgReadFile:
		data, ok := req.Data.(*gitmsg.ReadFile)
		if !ok {
			return nil, fmt.Errorf("worker: bad %s payload", req.Type)
		}
		return w.session.Store.ReadFile(data.Path)

	case gitmsg.MsgSetLocalRoot:
		data, ok := req.Data.(*gitmsg.SetLocalRoot)
		if !ok {
			return nil, fmt.Errorf("worker: bad %s payload", req.Type)
		}
		root, err := hostfs.NewRoot(data.RootDir)
		if err != nil {
			return nil, err
		}
		w.session.LocalRoot = root
		return nil, nil

	case gitmsg.MsgSyncLocal:
		data, ok := req.Data.(*gitmsg.SyncLocal)
		if !ok {
			return nil, fmt.Errorf("worker: bad %s payload", req.Type)
		}
		if w.session.LocalRoot == nil {
			return nil, errNoLocalRoot
		}

		engine := mirror.NewEngine(w.session.Store, w.session.LocalRoot, &mirror.Options{
			OnProgress: func(ev mirror.ProgressEvent) {
				w.progress(req.Id)(&gitmsg.Progress{
					Current: ev.Current,
					Total:   ev.Total,
					Path:    ev.Path,
					Skipped: ev.Skipped,
					Updated: ev.Updated,
				})
			},
		})
		return engine.Sync(ctx, data.Path)

	case gitmsg.MsgWipe:
		return nil, w.session.Store.RemoveAll("")

	default:
		return nil, fmt.Errorf("worker: unsupported request type %s", req.Type)
	}
}

// noteProgress adapts engine message lines into progress events.
func (w *Worker) noteProgress(id string) vcs.Messager {
	return func(line string) {
		w.progress(id)(&gitmsg.Progress{Note: line})
	}
}
