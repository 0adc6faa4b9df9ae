package data

import (
	"fmt"
	"path/filepath"
)

const (
	ProjectFile = "project.yml"
	LockFile    = "mail2pr-lock.json"
)

// BuildDescriptor names what to build and from where. Name and
// Version together identify exactly one artifact.
type BuildDescriptor struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	SourcePath string `yaml:"-" hash:"-"`

	Entrypoint string `yaml:"entrypoint"`

	// Tools needed only while packaging, resolved out of the
	// pinned snapshot.
	BuildDeps []*BuildDep `yaml:"build-deps"`
}

type BuildDep struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

func (b *BuildDescriptor) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("descriptor missing name")
	}

	if b.Version == "" {
		return fmt.Errorf("descriptor missing version")
	}

	return nil
}

func (b *BuildDescriptor) ID() string {
	return b.Name + "-" + b.Version
}

func (b *BuildDescriptor) ProjectPath() string {
	return filepath.Join(b.SourcePath, ProjectFile)
}

func (b *BuildDescriptor) LockPath() string {
	return filepath.Join(b.SourcePath, LockFile)
}
