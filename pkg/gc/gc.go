package gc

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/andir/mail2pr/pkg/config"
	"github.com/andir/mail2pr/pkg/progress"
)

// Collector removes disposable state: worktree cache dirs, aborted
// snapshot fetches, and (on request) materialized snapshots. Snapshots
// are a pure cache, so sweeping them only costs a re-fetch.
type Collector struct {
	L   hclog.Logger
	cfg *config.Config
}

func NewCollector(cfg *config.Config) (*Collector, error) {
	return &Collector{
		L:   hclog.L().Named("gc"),
		cfg: cfg,
	}, nil
}

// SweepWorktrees removes every allocated worktree cache dir and
// returns their names.
func (c *Collector) SweepWorktrees(ctx context.Context) ([]string, error) {
	return c.sweep(ctx, c.cfg.WorktreesPath(), "Removing worktrees", func(name string) bool {
		return true
	})
}

// SweepStaging removes partial snapshot fetches left behind by
// aborted runs.
func (c *Collector) SweepStaging(ctx context.Context) ([]string, error) {
	return c.sweep(ctx, c.cfg.SnapshotsPath(), "Removing staging dirs", func(name string) bool {
		return strings.HasSuffix(name, ".partial")
	})
}

// SweepSnapshots removes every materialized snapshot.
func (c *Collector) SweepSnapshots(ctx context.Context) ([]string, error) {
	return c.sweep(ctx, c.cfg.SnapshotsPath(), "Removing snapshots", func(name string) bool {
		return !strings.HasSuffix(name, ".partial")
	})
}

func (c *Collector) sweep(ctx context.Context, root, desc string, match func(string) bool) ([]string, error) {
	f, err := os.Open(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	var matched []string

	for _, name := range names {
		if match(name) {
			matched = append(matched, name)
		}
	}

	pb := progress.Count(ctx, int64(len(matched)), desc)
	defer pb.Close()

	var removed []string

	for _, name := range matched {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		path := filepath.Join(root, name)

		c.L.Debug("removing", "path", path)

		err = os.RemoveAll(path)
		if err != nil {
			return removed, err
		}

		removed = append(removed, name)
		pb.Tick()
	}

	return removed, nil
}
