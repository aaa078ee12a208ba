package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/copywrite-ai/nano-web-git/internal/hostfs"
	"github.com/copywrite-ai/nano-web-git/internal/store"
)

// DefaultBatchSize bounds how many transfers run concurrently. Batches are
// processed sequentially, so this is also the peak in-flight buffer count.
const DefaultBatchSize = 10

// Stats summarizes a single sync run. Not persisted anywhere.
type Stats struct {
	TotalEntries int `json:"tot"`
	Processed    int `json:"prc"`
	Skipped      int `json:"skp"`
	Updated      int `json:"upd"`
}

// ProgressEvent is emitted once per processed file, after the skip/update
// decision.
type ProgressEvent struct {
	Current int
	Total   int
	Path    string
	Skipped bool
	Updated bool
}

type ProgressFunc func(ProgressEvent)

type Options struct {
	BatchSize  int
	Ignore     *IgnoreList
	OnProgress ProgressFunc
}

// Engine mirrors a content-store subtree onto a destination root: it writes
// only inconsistent files and, on full-root runs, deletes destination
// entries absent from the source.
type Engine struct {
	src        store.Store
	dst        *hostfs.Root
	checker    *Checker
	ignore     *IgnoreList
	batchSize  int
	onProgress ProgressFunc

	mu           sync.Mutex
	stats        Stats
	bytesWritten uint64
}

func NewEngine(src store.Store, dst *hostfs.Root, opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = NewIgnoreList()
	}

	return &Engine{
		src:        src,
		dst:        dst,
		checker:    NewChecker(dst),
		ignore:     ignore,
		batchSize:  batch,
		onProgress: opts.OnProgress,
	}
}

// Sync reconciles the source subtree at rel ("" for the whole tree) against
// the destination. Full-root runs also perform mirror cleanup. Concurrent
// runs against the same destination root fail fast on the run lock.
func (e *Engine) Sync(ctx context.Context, rel string) (*Stats, error) {
	if rel == "." {
		rel = ""
	}
	fullRoot := rel == ""

	if err := e.dst.LockRun(); err != nil {
		return nil, err
	}
	defer e.dst.UnlockRun()

	e.mu.Lock()
	e.stats = Stats{}
	e.bytesWritten = 0
	e.mu.Unlock()

	// pre-flight: establish the total before any transfer starts
	total, err := e.countFiles(rel)
	if err != nil {
		return nil, fmt.Errorf("mirror: pre-flight walk of %q: %w", rel, err)
	}
	e.mu.Lock()
	e.stats.TotalEntries = total
	e.mu.Unlock()

	files, sourcePaths, err := e.collect(rel)
	if err != nil {
		return nil, fmt.Errorf("mirror: collect %q: %w", rel, err)
	}

	for start := 0; start < len(files); start += e.batchSize {
		end := min(start+e.batchSize, len(files))

		g, gctx := errgroup.WithContext(ctx)
		for _, relPath := range files[start:end] {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return e.transfer(relPath)
			})
		}
		// wait for the whole batch before starting the next
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	if fullRoot {
		e.cleanup("", sourcePaths)
	}

	e.mu.Lock()
	stats := e.stats
	written := e.bytesWritten
	e.mu.Unlock()

	slog.Info("mirror sync done",
		"total", stats.TotalEntries,
		"skipped", stats.Skipped,
		"updated", stats.Updated,
		"written", humanize.Bytes(written))
	return &stats, nil
}

// transfer runs the consistency check for one file and rewrites it only when
// the destination differs.
func (e *Engine) transfer(relPath string) error {
	res := e.checker.Check(e.src, relPath, relPath)

	updated := false
	if !res.Consistent {
		if err := e.writeConverging(relPath, res.SourceBytes); err != nil {
			return err
		}
		updated = true
	}

	e.mu.Lock()
	e.stats.Processed++
	if updated {
		e.stats.Updated++
		e.bytesWritten += uint64(len(res.SourceBytes))
	} else {
		e.stats.Skipped++
	}
	ev := ProgressEvent{
		Current: e.stats.Processed,
		Total:   e.stats.TotalEntries,
		Path:    relPath,
		Skipped: !updated,
		Updated: updated,
	}
	e.mu.Unlock()

	if e.onProgress != nil {
		e.onProgress(ev)
	}
	return nil
}

// writeConverging writes the file, replacing a destination directory that
// occupies the path. The mirror must converge on kind conflicts, not abort.
func (e *Engine) writeConverging(relPath string, data []byte) error {
	err := e.dst.WriteFile(relPath, data)
	if err == nil {
		return nil
	}

	if rmErr := e.dst.RemoveAll(relPath); rmErr != nil {
		return fmt.Errorf("mirror: write %s: %w", relPath, err)
	}
	slog.Warn("mirror replaced conflicting dir with file", "path", relPath)

	if err := e.dst.WriteFile(relPath, data); err != nil {
		return fmt.Errorf("mirror: write %s: %w", relPath, err)
	}
	return nil
}

// mkdirConverging creates the directory, replacing a destination file that
// occupies the path.
func (e *Engine) mkdirConverging(relPath string) error {
	err := e.dst.Mkdir(relPath)
	if err == nil {
		return nil
	}

	if rmErr := e.dst.Remove(relPath); rmErr != nil {
		return fmt.Errorf("create dir %s: %w", relPath, err)
	}
	slog.Warn("mirror replaced conflicting file with dir", "path", relPath)

	if err := e.dst.Mkdir(relPath); err != nil {
		return fmt.Errorf("create dir %s: %w", relPath, err)
	}
	return nil
}

// countFiles walks the source and counts files, honoring the ignore list.
// Errors here are fatal for the run.
func (e *Engine) countFiles(rel string) (int, error) {
	entries, err := e.src.List(rel)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if e.ignore.ShouldIgnore(entry.Path) {
			continue
		}
		if entry.Dir {
			sub, err := e.countFiles(entry.Path)
			if err != nil {
				return 0, err
			}
			count += sub
		} else {
			count++
		}
	}
	return count, nil
}

// collect walks the source depth-first, creating destination directories
// eagerly so concurrent writers never race on directory creation, and
// returns the flat file list plus the set of all source paths for cleanup.
func (e *Engine) collect(rel string) ([]string, map[string]bool, error) {
	var files []string
	sourcePaths := make(map[string]bool)

	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := e.src.List(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if e.ignore.ShouldIgnore(entry.Path) {
				continue
			}
			sourcePaths[entry.Path] = true
			if entry.Dir {
				if err := e.mkdirConverging(entry.Path); err != nil {
					return err
				}
				if err := walk(entry.Path); err != nil {
					return err
				}
			} else {
				files = append(files, entry.Path)
			}
		}
		return nil
	}

	if err := walk(rel); err != nil {
		return nil, nil, err
	}
	return files, sourcePaths, nil
}
