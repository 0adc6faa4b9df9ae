package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Store locates materialized snapshots by id across one or more
// snapshot directories.
type Store struct {
	Paths []string

	Default string
}

var ErrNoEntry = errors.New("no store entry for id")

func (s *Store) Locate(id string) (string, error) {
	for _, p := range s.Paths {
		path := filepath.Join(p, id)

		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
	}

	return "", errors.Wrapf(ErrNoEntry, "id: %s, paths: %#v", id, s.Paths)
}

func (s *Store) ExpectedPath(id string) string {
	return filepath.Join(s.Default, id)
}
