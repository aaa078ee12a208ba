package mirror

import (
	"log/slog"
	"path"
)

// cleanup walks the destination and deletes every entry whose path does not
// exist in the source, making the destination an exact mirror. Individual
// delete failures are logged and skipped so the run converges as far as it
// can.
func (e *Engine) cleanup(rel string, sourcePaths map[string]bool) {
	entries, err := e.dst.List(rel)
	if err != nil {
		slog.Warn("mirror cleanup list failed", "path", rel, "error", err)
		return
	}

	for _, entry := range entries {
		relPath := entry.Name()
		if rel != "" {
			relPath = path.Join(rel, entry.Name())
		}
		if e.ignore.ShouldIgnore(relPath) {
			continue
		}

		if sourcePaths[relPath] {
			if entry.IsDir() {
				e.cleanup(relPath, sourcePaths)
			}
			continue
		}

		if entry.IsDir() {
			if err := e.dst.RemoveAll(relPath); err != nil {
				slog.Warn("mirror cleanup rmdir failed", "path", relPath, "error", err)
			} else {
				slog.Debug("mirror cleanup removed dir", "path", relPath)
			}
		} else {
			if err := e.dst.Remove(relPath); err != nil {
				slog.Warn("mirror cleanup rm failed", "path", relPath, "error", err)
			} else {
				slog.Debug("mirror cleanup removed file", "path", relPath)
			}
		}
	}
}
