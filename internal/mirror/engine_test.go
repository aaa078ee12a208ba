package mirror

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copywrite-ai/nano-web-git/internal/hostfs"
	"github.com/copywrite-ai/nano-web-git/internal/store"
)

func newTestEngine(t *testing.T, src *store.MemStore, opts *Options) (*Engine, *hostfs.Root) {
	t.Helper()
	root, err := hostfs.NewRoot(t.TempDir())
	require.NoError(t, err)
	return NewEngine(src, root, opts), root
}

func seedStore(t *testing.T, files map[string]string) *store.MemStore {
	t.Helper()
	src := store.NewMemStore()
	for path, content := range files {
		require.NoError(t, src.WriteFile(path, []byte(content)))
	}
	return src
}

func TestSync_EmptyDestination(t *testing.T) {
	src := seedStore(t, map[string]string{
		"a.txt":   "hello",
		"b/c.txt": "world",
	})
	engine, root := newTestEngine(t, src, nil)

	stats, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 2, stats.Updated)
	assert.Equal(t, 0, stats.Skipped)

	data, err := root.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = root.ReadFile("b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestSync_Idempotent(t *testing.T) {
	src := seedStore(t, map[string]string{
		"a.txt":   "hello",
		"b/c.txt": "world",
	})
	engine, _ := newTestEngine(t, src, nil)

	_, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)

	stats, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 2, stats.Skipped)
}

func TestSync_MirrorCleanup(t *testing.T) {
	src := seedStore(t, map[string]string{"a.txt": "hello"})
	engine, root := newTestEngine(t, src, nil)

	require.NoError(t, root.WriteFile("d.txt", []byte("stale")))
	require.NoError(t, root.WriteFile("old/deep/e.txt", []byte("stale")))

	_, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)

	_, err = root.Stat("d.txt")
	assert.ErrorIs(t, err, hostfs.ErrNotFound)
	_, err = root.Stat("old")
	assert.ErrorIs(t, err, hostfs.ErrNotFound)

	// the mirrored file is untouched
	data, err := root.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSync_SubtreeSkipsCleanup(t *testing.T) {
	src := seedStore(t, map[string]string{"b/c.txt": "world"})
	engine, root := newTestEngine(t, src, nil)

	require.NoError(t, root.WriteFile("d.txt", []byte("keep me")))

	_, err := engine.Sync(context.Background(), "b")
	require.NoError(t, err)

	// cleanup only runs on full-root syncs
	data, err := root.ReadFile("d.txt")
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestSync_FileReplacesConflictingDir(t *testing.T) {
	src := seedStore(t, map[string]string{"x": "now a file"})
	engine, root := newTestEngine(t, src, nil)

	// the destination holds a directory where the source has a file
	require.NoError(t, root.WriteFile("x/inner.txt", []byte("old")))

	stats, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	data, err := root.ReadFile("x")
	require.NoError(t, err)
	assert.Equal(t, "now a file", string(data))
}

func TestSync_DirReplacesConflictingFile(t *testing.T) {
	src := seedStore(t, map[string]string{"b/c.txt": "world"})
	engine, root := newTestEngine(t, src, nil)

	// the destination holds a file where the source has a directory
	require.NoError(t, root.WriteFile("b", []byte("old file")))

	_, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)

	data, err := root.ReadFile("b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestSync_RewritesChangedContent(t *testing.T) {
	src := seedStore(t, map[string]string{"a.txt": "v1"})
	engine, root := newTestEngine(t, src, nil)

	_, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, src.WriteFile("a.txt", []byte("v2")))
	stats, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	data, err := root.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestSync_LargeFiles(t *testing.T) {
	// well past the byte-compare threshold, exercises the digest path
	big := make([]byte, 64*1024)
	_, err := rand.Read(big)
	require.NoError(t, err)

	src := store.NewMemStore()
	require.NoError(t, src.WriteFile("blob.bin", big))
	engine, root := newTestEngine(t, src, nil)

	stats, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	data, err := root.ReadFile("blob.bin")
	require.NoError(t, err)
	assert.Equal(t, big, data)

	stats, err = engine.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)

	// same size, different content must still be rewritten
	big[100] ^= 0xff
	require.NoError(t, src.WriteFile("blob.bin", big))
	stats, err = engine.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
}

func TestSync_IgnoresGitMetadata(t *testing.T) {
	src := seedStore(t, map[string]string{
		"a.txt":        "hello",
		".git/HEAD":    "ref: refs/heads/main",
		".git/objects": "x",
	})
	engine, root := newTestEngine(t, src, nil)

	stats, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEntries)

	_, err = root.Stat(".git")
	assert.ErrorIs(t, err, hostfs.ErrNotFound)
}

func TestSync_CleanupSparesMetadataDir(t *testing.T) {
	src := seedStore(t, map[string]string{"a.txt": "hello"})
	engine, root := newTestEngine(t, src, nil)

	// a prior run left the lock dir behind; cleanup must not touch it
	_, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root.Dir(), hostfs.MetadataDir))
	assert.NoError(t, err)
}

func TestSync_ProgressEvents(t *testing.T) {
	src := seedStore(t, map[string]string{
		"a.txt": "hello",
		"b.txt": "world",
	})

	var events []ProgressEvent
	engine, _ := newTestEngine(t, src, &Options{
		OnProgress: func(ev ProgressEvent) { events = append(events, ev) },
		BatchSize:  1, // deterministic event order
	})

	stats, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, stats.TotalEntries, ev.Total)
		assert.True(t, ev.Updated)
		assert.False(t, ev.Skipped)
	}
	assert.Equal(t, 2, events[1].Current)
}

func TestSync_SmallBatches(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		files[name+".txt"] = name
	}
	src := seedStore(t, files)
	engine, _ := newTestEngine(t, src, &Options{BatchSize: 2})

	stats, err := engine.Sync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Updated)
}

func TestSync_RunLockSerializes(t *testing.T) {
	src := seedStore(t, map[string]string{"a.txt": "hello"})
	dir := t.TempDir()

	// a second handle on the same destination simulates a concurrent run
	other, err := hostfs.NewRoot(dir)
	require.NoError(t, err)
	require.NoError(t, other.LockRun())
	defer other.UnlockRun()

	root, err := hostfs.NewRoot(dir)
	require.NoError(t, err)
	engine := NewEngine(src, root, nil)
	_, err = engine.Sync(context.Background(), "")
	assert.ErrorIs(t, err, hostfs.ErrRootLocked)
}
