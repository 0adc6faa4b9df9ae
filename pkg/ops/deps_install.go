package ops

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/andir/mail2pr/pkg/data"
	"github.com/andir/mail2pr/pkg/fileutils"
)

// DepsInstall stages the locked build-time dependencies out of a
// snapshot into the build directory.
type DepsInstall struct {
	common
}

func (d *DepsInstall) Install(ctx context.Context, snap *Snapshot, proj *Project, stageDir string) ([]*data.ArtifactDep, error) {
	var staged []*data.ArtifactDep

	for _, dep := range proj.Descriptor.BuildDeps {
		ent, ok := proj.Lock.Lookup(dep.Name)
		if !ok {
			return nil, errors.Wrapf(ErrPackaging, "build dep not locked: %s", dep.Name)
		}

		pkg, ok := snap.Index.Lookup(dep.Name)
		if !ok {
			return nil, errors.Wrapf(ErrPackaging,
				"build dep not resolvable in snapshot %s: %s", snap.ID, dep.Name)
		}

		if ent.ResolvedVersion != "" && pkg.Version != ent.ResolvedVersion {
			return nil, errors.Wrapf(ErrPackaging,
				"snapshot disagrees with lock for %s: %s vs %s",
				dep.Name, pkg.Version, ent.ResolvedVersion)
		}

		if !SumsEqual(pkg.Sum, ent.Sum) {
			return nil, errors.Wrapf(ErrPackaging,
				"snapshot sum disagrees with lock for %s", dep.Name)
		}

		d.L().Debug("staging build dep", "name", dep.Name, "version", pkg.Version)

		inst := &fileutils.Install{
			Ctx:     ctx,
			L:       d.L(),
			Pattern: filepath.Join(snap.Path, pkg.Path),
			Dest:    filepath.Join(stageDir, "tools", dep.Name),
		}

		err := inst.Install()
		if err != nil {
			return nil, errors.Wrapf(ErrPackaging, "staging %s: %v", dep.Name, err)
		}

		staged = append(staged, &data.ArtifactDep{
			Name:    dep.Name,
			Version: pkg.Version,
			Sum:     pkg.Sum,
		})
	}

	sort.Slice(staged, func(i, j int) bool {
		return staged[i].Name < staged[j].Name
	})

	return staged, nil
}
