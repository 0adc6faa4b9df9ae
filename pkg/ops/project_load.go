package ops

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/andir/mail2pr/pkg/data"
)

// Project is a loaded and self-consistent project/lock pair.
type Project struct {
	common

	Descriptor *data.BuildDescriptor
	Lock       *data.Lock
}

type ProjectLoad struct {
	common
}

// Load reads project.yml and mail2pr-lock.json from dir and checks
// that they agree with each other. Any gap between the two is a
// packaging error: the lock must cover every declared build dep.
func (c *ProjectLoad) Load(ctx context.Context, dir string) (*Project, error) {
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return nil, errors.Wrapf(ErrPackaging, "source path is not a directory: %s", dir)
	}

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

	err = desc.Validate()
	if err != nil {
		return nil, errors.Wrapf(ErrPackaging, "%v", err)
	}

	lockData, err := os.ReadFile(desc.LockPath())
	if err != nil {
		return nil, errors.Wrapf(ErrPackaging, "no lock file: %v", err)
	}

	var lock data.Lock

	err = json.Unmarshal(lockData, &lock)
	if err != nil {
		return nil, errors.Wrapf(ErrPackaging, "malformed lock file: %v", err)
	}

	if lock.Snapshot.URL == "" {
		return nil, errors.Wrapf(ErrPackaging, "lock file pins no snapshot")
	}

	for _, dep := range desc.BuildDeps {
		ent, ok := lock.Lookup(dep.Name)
		if !ok {
			return nil, errors.Wrapf(ErrPackaging, "build dep not locked: %s", dep.Name)
		}

		if dep.Version != "" && ent.RequestedVersion != dep.Version {
			return nil, errors.Wrapf(ErrPackaging,
				"lock out of date for %s: project wants %s, lock has %s",
				dep.Name, dep.Version, ent.RequestedVersion)
		}

		if ent.Sum == "" {
			return nil, errors.Wrapf(ErrPackaging, "lock entry has no sum: %s", dep.Name)
		}
	}

	c.L().Debug("project loaded", "name", desc.Name, "version", desc.Version,
		"build-deps", len(desc.BuildDeps))

	return &Project{
		Descriptor: &desc,
		Lock:       &lock,
	}, nil
}
