package vcs

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/copywrite-ai/nano-web-git/internal/relay"
	"github.com/copywrite-ai/nano-web-git/internal/store"
)

// TarballEngine materializes a working tree from a hosted snapshot archive
// (the `/archive/<ref>.tar.gz` endpoints of the common forges). It carries no
// commit graph: clone fetches and unpacks, pull re-fetches and overwrites.
// All fetching goes through the relay proxy.
type TarballEngine struct{}

var _ Engine = (*TarballEngine)(nil)

func NewTarballEngine() *TarballEngine {
	return &TarballEngine{}
}

func (e *TarballEngine) Clone(ctx context.Context, st store.Store, url, ref string, opts *CloneOpts) error {
	if opts == nil {
		opts = &CloneOpts{}
	}
	return e.fetchAndUnpack(ctx, st, url, ref, opts.Proxy, opts.OnMessage)
}

func (e *TarballEngine) Checkout(ctx context.Context, st store.Store, ref string, opts *CheckoutOpts) error {
	// snapshots have no object database to check out from
	return nil
}

func (e *TarballEngine) Pull(ctx context.Context, st store.Store, url, ref string, opts *PullOpts) error {
	if opts == nil {
		opts = &PullOpts{}
	}
	return e.fetchAndUnpack(ctx, st, url, ref, opts.Proxy, opts.OnMessage)
}

func (e *TarballEngine) fetchAndUnpack(ctx context.Context, st store.Store, url, ref string, proxy relay.Proxy, onMessage Messager) error {
	if url == "" {
		return ErrNoRemote
	}
	if proxy == nil {
		return fmt.Errorf("vcs: no network proxy configured")
	}

	say := func(format string, args ...any) {
		if onMessage != nil {
			onMessage(fmt.Sprintf(format, args...))
		}
	}

	archiveURL := ArchiveURL(url, ref)
	say("fetching %s", archiveURL)

	res, err := proxy.Relay(ctx, &relay.Envelope{
		URL:    archiveURL,
		Method: "GET",
		Headers: map[string]string{
			"Accept": "application/gzip, application/x-gzip, */*",
		},
	})
	if err != nil {
		return fmt.Errorf("vcs: fetch %s: %w", archiveURL, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("vcs: fetch %s: http %d %s", archiveURL, res.StatusCode, res.StatusMessage)
	}

	body := res.Bytes()
	say("unpacking %s", humanize.Bytes(uint64(len(body))))

	count, err := unpack(st, body)
	if err != nil {
		return fmt.Errorf("vcs: unpack %s: %w", archiveURL, err)
	}

	say("checked out %d files", count)
	return nil
}

// ArchiveURL maps a repository url and ref to its snapshot endpoint. URLs
// that already point at an archive are used as-is.
func ArchiveURL(url, ref string) string {
	if strings.HasSuffix(url, ".tar.gz") || strings.HasSuffix(url, ".tgz") {
		return url
	}
	if ref == "" {
		ref = "HEAD"
	}
	return strings.TrimSuffix(url, ".git") + "/archive/" + ref + ".tar.gz"
}

// unpack extracts a gzipped tarball into the store, stripping the
// single top-level directory the forges wrap snapshots in.
func unpack(st store.Store, data []byte) (int, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	count := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		rel := stripRoot(hdr.Name)
		if rel == "" {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return count, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		if err := st.WriteFile(rel, content); err != nil {
			return count, fmt.Errorf("write %s: %w", rel, err)
		}
		count++
	}
	return count, nil
}

func stripRoot(name string) string {
	name = strings.TrimPrefix(name, "./")
	if i := strings.Index(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return ""
}
