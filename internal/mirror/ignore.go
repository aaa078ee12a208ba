package mirror

import (
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/copywrite-ai/nano-web-git/internal/hostfs"
)

// version metadata and the run-lock dir never cross the mirror boundary,
// in either direction (walk or cleanup)
var defaultIgnoreLines = []string{
	".git/",
	hostfs.MetadataDir + "/",
}

// IgnoreList filters paths out of both the source walk and the destination
// cleanup.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
}

func NewIgnoreList(extraLines ...string) *IgnoreList {
	lines := append(append([]string{}, defaultIgnoreLines...), extraLines...)
	return &IgnoreList{ignore: gitignore.CompileIgnoreLines(lines...)}
}

func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	return l.ignore.MatchesPath(relPath)
}
