package config

import (
	"fmt"
	"os"
	"path/filepath"
)

func defaultCacheHome() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}

	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".cache")
	}

	return os.TempDir()
}

// CacheDir allocates a fresh directory for name under the worktree
// cache. Directories survive the process, so a previous run's dir for
// the same name is never reused; collisions get a numeric suffix.
func (c *Config) CacheDirFor(name string) (string, error) {
	base := c.WorktreesPath()

	for counter := 0; ; counter++ {
		final := name
		if counter > 0 {
			final = fmt.Sprintf("%s-%d", name, counter)
		}

		dir := filepath.Join(base, final)

		err := os.MkdirAll(filepath.Dir(dir), 0755)
		if err != nil {
			return "", err
		}

		err = os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}

		if !os.IsExist(err) {
			return "", err
		}
	}
}
