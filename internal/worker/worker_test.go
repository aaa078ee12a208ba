package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
	"github.com/copywrite-ai/nano-web-git/internal/hostfs"
	"github.com/copywrite-ai/nano-web-git/internal/mirror"
	"github.com/copywrite-ai/nano-web-git/internal/rpc"
	"github.com/copywrite-ai/nano-web-git/internal/store"
	"github.com/copywrite-ai/nano-web-git/internal/vcs"
)

// seedEngine writes a fixed tree into the store instead of fetching.
type seedEngine struct {
	files  map[string]string
	clones int
}

func (e *seedEngine) Clone(_ context.Context, st store.Store, url, _ string, opts *vcs.CloneOpts) error {
	if url == "" {
		return vcs.ErrNoRemote
	}
	e.clones++
	if opts != nil && opts.OnMessage != nil {
		opts.OnMessage("cloning " + url)
	}
	for path, content := range e.files {
		if err := st.WriteFile(path, []byte(content)); err != nil {
			return err
		}
	}
	return nil
}

func (e *seedEngine) Checkout(context.Context, store.Store, string, *vcs.CheckoutOpts) error {
	return nil
}

func (e *seedEngine) Pull(ctx context.Context, st store.Store, url, ref string, opts *vcs.PullOpts) error {
	return e.Clone(ctx, st, url, ref, &vcs.CloneOpts{OnMessage: opts.OnMessage})
}

func startWorker(t *testing.T, engine vcs.Engine) *rpc.Channel {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	w := New(engine, nil)
	go w.Run(ctx)
	return rpc.NewChannel(w.Requests(), w.Responses(), nil)
}

func TestWorker_CloneThenReadFile(t *testing.T) {
	engine := &seedEngine{files: map[string]string{
		"README.md": "# hi",
		"src/a.go":  "package a",
	}}
	ch := startWorker(t, engine)
	ctx := context.Background()

	var notes []string
	_, err := ch.Call(ctx, gitmsg.MsgClone, &gitmsg.Clone{URL: "https://github.com/x/y"}, func(p *gitmsg.Progress) {
		if p.Note != "" {
			notes = append(notes, p.Note)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cloning https://github.com/x/y"}, notes)

	res, err := ch.Call(ctx, gitmsg.MsgReadFile, &gitmsg.ReadFile{Path: "README.md"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("# hi"), res)
}

func TestWorker_FileTree(t *testing.T) {
	engine := &seedEngine{files: map[string]string{
		"README.md": "# hi",
		"src/a.go":  "package a",
	}}
	ch := startWorker(t, engine)
	ctx := context.Background()

	_, err := ch.Call(ctx, gitmsg.MsgClone, &gitmsg.Clone{URL: "u"}, nil)
	require.NoError(t, err)

	res, err := ch.Call(ctx, gitmsg.MsgFileTree, nil, nil)
	require.NoError(t, err)

	entries, ok := res.([]*store.Entry)
	require.True(t, ok, "payload decoded as %T", res)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"src", "src/a.go", "README.md"}, paths)
}

func TestWorker_SyncLocalMirrorsToDisk(t *testing.T) {
	engine := &seedEngine{files: map[string]string{
		"a.txt":   "hello",
		"b/c.txt": "world",
	}}
	ch := startWorker(t, engine)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := ch.Call(ctx, gitmsg.MsgClone, &gitmsg.Clone{URL: "u"}, nil)
	require.NoError(t, err)

	_, err = ch.Call(ctx, gitmsg.MsgSetLocalRoot, &gitmsg.SetLocalRoot{RootDir: dir}, nil)
	require.NoError(t, err)

	var progress []*gitmsg.Progress
	res, err := ch.Call(ctx, gitmsg.MsgSyncLocal, &gitmsg.SyncLocal{}, func(p *gitmsg.Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	// every transfer reported before the call returned
	require.Len(t, progress, 2)
	assert.Equal(t, 2, progress[0].Total)

	stats, ok := res.(*mirror.Stats)
	require.True(t, ok, "payload decoded as %T", res)
	assert.Equal(t, 2, stats.Updated)

	root, err := hostfs.NewRoot(dir)
	require.NoError(t, err)
	data, err := root.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	data, err = root.ReadFile("b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestWorker_SyncLocalWithoutRoot(t *testing.T) {
	ch := startWorker(t, &seedEngine{})
	_, err := ch.Call(context.Background(), gitmsg.MsgSyncLocal, &gitmsg.SyncLocal{}, nil)

	var remote *rpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "no local root")
}

func TestWorker_EngineFailureBecomesRemoteError(t *testing.T) {
	ch := startWorker(t, &seedEngine{})
	_, err := ch.Call(context.Background(), gitmsg.MsgClone, &gitmsg.Clone{URL: ""}, nil)

	var remote *rpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "remote url missing")
}

func TestWorker_WipeResetsStore(t *testing.T) {
	engine := &seedEngine{files: map[string]string{"a.txt": "x"}}
	ch := startWorker(t, engine)
	ctx := context.Background()

	_, err := ch.Call(ctx, gitmsg.MsgClone, &gitmsg.Clone{URL: "u"}, nil)
	require.NoError(t, err)

	_, err = ch.Call(ctx, gitmsg.MsgWipe, nil, nil)
	require.NoError(t, err)

	_, err = ch.Call(ctx, gitmsg.MsgReadFile, &gitmsg.ReadFile{Path: "a.txt"}, nil)
	var remote *rpc.RemoteError
	assert.ErrorAs(t, err, &remote)
}

func TestWorker_StopCrashesPendingCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := New(&seedEngine{}, nil)
	go w.Run(ctx)
	ch := rpc.NewChannel(w.Requests(), w.Responses(), nil)

	_, err := ch.Call(context.Background(), gitmsg.MsgInit, nil, nil)
	require.NoError(t, err)

	cancel() // worker closes its response stream

	assert.Eventually(t, func() bool {
		_, err := ch.Call(context.Background(), gitmsg.MsgInit, nil, nil)
		return errors.Is(err, rpc.ErrChannelCrashed)
	}, time.Second, 10*time.Millisecond)
}
