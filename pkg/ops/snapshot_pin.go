package ops

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/andir/mail2pr/pkg/config"
	"github.com/andir/mail2pr/pkg/data"
)

// SnapshotPin resolves a snapshot ref and rewrites the project's lock
// file against it.
type SnapshotPin struct {
	common
}

func (p *SnapshotPin) Pin(ctx context.Context, cfg *config.Config, dir, url string) (*data.Lock, error) {
	var desc data.BuildDescriptor
	desc.SourcePath = dir

	projData, err := os.ReadFile(desc.ProjectPath())
	if err != nil {
		return nil, errors.Wrapf(ErrPackaging, "no project definition: %v", err)
	}

	err = yaml.Unmarshal(projData, &desc)
	if err != nil {
		return nil, errors.Wrapf(ErrPackaging, "malformed project definition: %v", err)
	}

	var sr SnapshotResolve
	sr.SetLogger(p.L())

	snap, err := sr.Resolve(ctx, cfg, data.SnapshotRef{URL: url})
	if err != nil {
		return nil, err
	}

	indexSum, err := SumFile(filepath.Join(snap.Path, SnapshotIndexJson))
	if err != nil {
		return nil, track(err)
	}

	lock := &data.Lock{
		CreatedAt: time.Now().UTC(),
		Snapshot: data.SnapshotRef{
			URL: url,
			Sum: indexSum,
		},
	}

	for _, dep := range desc.BuildDeps {
		pkg, ok := snap.Index.Lookup(dep.Name)
		if !ok {
			return nil, errors.Wrapf(ErrPackaging,
				"build dep not resolvable in snapshot %s: %s", snap.ID, dep.Name)
		}

		lock.Packages = append(lock.Packages, &data.LockEntry{
			Name:             dep.Name,
			RequestedVersion: dep.Version,
			ResolvedVersion:  pkg.Version,
			Sum:              pkg.Sum,
		})
	}

	lockData, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, track(err)
	}

	tmp := desc.LockPath() + ".tmp"

	err = os.WriteFile(tmp, append(lockData, '\n'), 0644)
	if err != nil {
		return nil, track(err)
	}

	err = os.Rename(tmp, desc.LockPath())
	if err != nil {
		os.Remove(tmp)
		return nil, track(err)
	}

	p.L().Info("snapshot pinned", "id", snap.ID, "packages", len(lock.Packages))

	return lock, nil
}
