package mirror

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/copywrite-ai/nano-web-git/internal/hostfs"
	"github.com/copywrite-ai/nano-web-git/internal/store"
)

const (
	// below this size a direct byte compare is cheaper than hashing both sides
	byteCompareLimit = 10 * 1024

	digestCacheSize = 4096
)

// Result says whether the destination already matches the source.
// SourceBytes is populated only when Consistent is false, so the source is
// never read twice for one decision.
type Result struct {
	Consistent  bool
	SourceBytes []byte
}

type digestKey struct {
	rel      string
	size     int64
	modNanos int64
}

// Checker decides consistency with the cheapest sufficient method:
// existence, then size, then byte compare for small files, then SHA-256.
// Destination digests are cached across runs keyed by (path, size, mtime in
// nanoseconds), so a same-size rewrite invalidates the cached digest.
type Checker struct {
	dst     *hostfs.Root
	digests *lru.Cache[digestKey, [sha256.Size]byte]
}

func NewChecker(dst *hostfs.Root) *Checker {
	cache, _ := lru.New[digestKey, [sha256.Size]byte](digestCacheSize)
	return &Checker{dst: dst, digests: cache}
}

// Check reads the source and probes the destination. An unreadable source is
// reported consistent (nothing to sync); any destination probe error forces
// a rewrite instead of failing the run.
func (c *Checker) Check(src store.Store, srcPath, destRel string) *Result {
	data, err := src.ReadFile(srcPath)
	if err != nil {
		slog.Warn("mirror check source unreadable", "path", srcPath, "error", err)
		return &Result{Consistent: true}
	}

	info, err := c.dst.Stat(destRel)
	if err != nil {
		// missing or unreadable destination, rewrite either way
		return &Result{Consistent: false, SourceBytes: data}
	}

	if info.IsDir() || info.Size() != int64(len(data)) {
		return &Result{Consistent: false, SourceBytes: data}
	}

	if len(data) < byteCompareLimit {
		destData, err := c.dst.ReadFile(destRel)
		if err != nil || !bytes.Equal(data, destData) {
			return &Result{Consistent: false, SourceBytes: data}
		}
		return &Result{Consistent: true}
	}

	srcSum := sha256.Sum256(data)
	destSum, err := c.destDigest(destRel, info.Size(), info.ModTime().UnixNano())
	if err != nil || srcSum != destSum {
		return &Result{Consistent: false, SourceBytes: data}
	}
	return &Result{Consistent: true}
}

func (c *Checker) destDigest(rel string, size, modNanos int64) ([sha256.Size]byte, error) {
	key := digestKey{rel: rel, size: size, modNanos: modNanos}
	if sum, ok := c.digests.Get(key); ok {
		return sum, nil
	}

	h, err := c.dst.Resolve(rel, hostfs.ResolveOpts{Kind: hostfs.KindFile})
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	data, err := os.ReadFile(h.Path)
	if err != nil {
		return [sha256.Size]byte{}, fmt.Errorf("mirror: digest %s: %w", rel, err)
	}

	sum := sha256.Sum256(data)
	c.digests.Add(key, sum)
	return sum, nil
}
