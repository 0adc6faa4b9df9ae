package fileutils

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Install copies (or links) a file, a directory tree, or a glob of
// entries into Dest. Copied trees keep their modes; mtimes are
// preserved so staged inputs hash the same across runs.
type Install struct {
	Ctx     context.Context
	L       hclog.Logger
	Pattern string
	Dest    string
	Linked  bool
	ModeOr  os.FileMode

	// Entry names skipped at any depth, e.g. ".git".
	Exclude []string
}

func (i *Install) shouldCancel() error {
	if i.Ctx == nil {
		return nil
	}

	select {
	case <-i.Ctx.Done():
		return i.Ctx.Err()
	default:
		return nil
	}
}

func (i *Install) excluded(name string) bool {
	for _, e := range i.Exclude {
		if name == e {
			return true
		}
	}

	return false
}

func (i *Install) Install() error {
	if i.L == nil {
		i.L = hclog.L()
	}

	_, err := os.Stat(i.Pattern)
	if err == nil {
		os.MkdirAll(filepath.Dir(i.Dest), 0755)

		if i.Linked {
			return i.linkEntry(i.Pattern, i.Dest)
		}

		return i.copyEntry(i.Pattern, i.Dest)
	}

	entries, err := filepath.Glob(i.Pattern)
	if err != nil {
		return err
	}

	baseDir := filepath.Dir(i.Pattern)

	if _, err := os.Stat(i.Dest); err != nil {
		if os.IsNotExist(err) {
			err = os.MkdirAll(i.Dest, 0755)
			if err != nil {
				return err
			}
		} else {
			return err
		}
	}

	for _, ent := range entries {
		if i.excluded(filepath.Base(ent)) {
			continue
		}

		rel, err := filepath.Rel(baseDir, ent)
		if err != nil {
			return err
		}

		target := filepath.Join(i.Dest, rel)

		if i.Linked {
			err = i.linkEntry(ent, target)
		} else {
			err = i.copyEntry(ent, target)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (i *Install) linkEntry(from, to string) error {
	i.L.Debug("symlink", "old", from, "new", to)

	oldRel, err := filepath.Rel(filepath.Dir(to), from)
	if err != nil {
		oldRel = from
	}

	return os.Symlink(oldRel, to)
}

func (i *Install) copyEntry(from, to string) error {
	if err := i.shouldCancel(); err != nil {
		return err
	}

	i.L.Trace("copy entry", "from", from, "to", to)

	f, err := os.Open(from)
	if err != nil {
		return err
	}

	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	defer func() {
		// fix the times
		os.Chtimes(to, time.Time{}, fi.ModTime())
	}()

	switch fi.Mode() & os.ModeType {
	case 0: // regular file
		tg, err := os.OpenFile(
			to,
			os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
			fi.Mode().Perm()|i.ModeOr.Perm(),
		)
		if err != nil {
			return err
		}

		defer tg.Close()

		_, err = io.Copy(tg, f)
		if err != nil && err != io.EOF {
			return err
		}

		return nil
	case os.ModeDir:
		if _, err := os.Stat(to); err != nil {
			err = os.Mkdir(to, fi.Mode().Perm()|i.ModeOr.Perm())
			if err != nil {
				return err
			}
		}

		entries, err := f.Readdirnames(-1)
		if err != nil && err != io.EOF {
			return err
		}

		sort.Strings(entries)

		for _, name := range entries {
			if i.excluded(name) {
				continue
			}

			err = i.copyEntry(filepath.Join(from, name), filepath.Join(to, name))
			if err != nil {
				return err
			}
		}

	case os.ModeSymlink:
		link, err := os.Readlink(from)
		if err != nil {
			return err
		}

		return os.Symlink(link, to)
	}

	return nil
}
