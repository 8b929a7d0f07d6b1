package templates

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// FileStore reads UTF-8 templates from a filesystem. Line endings are
// normalized to "\n".
type FileStore struct {
	fs    afero.Fs
	dir   string
	paths map[string]string
}

// NewFileStore maps template names to paths; relative paths resolve against dir.
func NewFileStore(fs afero.Fs, dir string, paths map[string]string) *FileStore {
	return &FileStore{fs: fs, dir: dir, paths: paths}
}

func (s *FileStore) Load(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, ok := s.paths[name]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if !filepath.IsAbs(path) && s.dir != "" {
		path = filepath.Join(s.dir, path)
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: invalid UTF-8", path)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
