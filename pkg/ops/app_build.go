package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/andir/mail2pr/pkg/config"
	"github.com/andir/mail2pr/pkg/data"
	"github.com/andir/mail2pr/pkg/fileutils"
	"github.com/andir/mail2pr/pkg/ihash"
	"github.com/andir/mail2pr/pkg/sumfile"
)

// AppBuild runs the whole packaging pipeline: pin resolution, project
// validation, build-dep staging, and artifact emission. The artifact
// lands at OutputDir/<name>-<version>.tar.gz via a temp file rename,
// so an interrupted build never commits a partial artifact.
// BuildLockFile guards concurrent builds of the same source dir. It
// lives next to the project file and never ends up in the artifact.
const BuildLockFile = ".mail2pr-build-lock"

type AppBuild struct {
	common

	OutputDir string
}

type BuildResult struct {
	Info *data.ArtifactInfo
	Path string
	Sum  []byte
}

func (a *AppBuild) Build(ctx context.Context, cfg *config.Config, sourceDir string) (*BuildResult, error) {
	ref, err := a.readSnapshotRef(sourceDir)
	if err != nil {
		return nil, err
	}

	// The pinner runs first; an unreachable ref fails the build
	// before any packaging starts.
	var sr SnapshotResolve
	sr.SetLogger(a.L())

	snap, err := sr.Resolve(ctx, cfg, ref)
	if err != nil {
		return nil, err
	}

	var pl ProjectLoad
	pl.SetLogger(a.L())

	proj, err := pl.Load(ctx, sourceDir)
	if err != nil {
		return nil, err
	}

	if proj.Lock.Snapshot.URL != ref.URL {
		return nil, errors.Wrapf(ErrPackaging, "lock file changed during build")
	}

	GetUI(ctx).BuildStart(proj.Descriptor)

	err = os.MkdirAll(cfg.BuildPath(), 0755)
	if err != nil {
		return nil, track(err)
	}

	stageDir, err := os.MkdirTemp(cfg.BuildPath(), "stage-*")
	if err != nil {
		return nil, track(err)
	}

	defer os.RemoveAll(stageDir)

	var di DepsInstall
	di.SetLogger(a.L())

	staged, err := di.Install(ctx, snap, proj, stageDir)
	if err != nil {
		return nil, err
	}

	err = a.stageSource(ctx, proj.Descriptor, stageDir)
	if err != nil {
		return nil, err
	}

	inputs, err := ihash.Hash(struct {
		_          struct{} `hash:"build-inputs"`
		Descriptor *data.BuildDescriptor
		Lock       *data.Lock
		Snapshot   string
	}{
		Descriptor: proj.Descriptor,
		Lock:       proj.Lock,
		Snapshot:   snap.ID,
	})
	if err != nil {
		return nil, track(err)
	}

	osName, osVersion, arch := config.Platform()

	info := &data.ArtifactInfo{
		Name:       proj.Descriptor.Name,
		Version:    proj.Descriptor.Version,
		Entrypoint: proj.Descriptor.Entrypoint,
		Snapshot:   snap.ID,
		Inputs:     EncodeSum(inputs),
		BuildDeps:  staged,
		Platform: &data.ArtifactPlatform{
			OS:        osName,
			OSVersion: osVersion,
			Arch:      arch,
		},
		Constraints: config.SystemConstraints(),
	}

	return a.emit(cfg, info, stageDir)
}

// readSnapshotRef pulls just the pinned ref out of the lock file so
// the pinner can run ahead of full project validation.
func (a *AppBuild) readSnapshotRef(dir string) (data.SnapshotRef, error) {
	var lock data.Lock

	lockData, err := os.ReadFile(filepath.Join(dir, data.LockFile))
	if err != nil {
		return data.SnapshotRef{}, errors.Wrapf(ErrPackaging, "no lock file: %v", err)
	}

	err = json.Unmarshal(lockData, &lock)
	if err != nil {
		return data.SnapshotRef{}, errors.Wrapf(ErrPackaging, "malformed lock file: %v", err)
	}

	if lock.Snapshot.URL == "" {
		return data.SnapshotRef{}, errors.Wrapf(ErrPackaging, "lock file pins no snapshot")
	}

	return lock.Snapshot, nil
}

func (a *AppBuild) stageSource(ctx context.Context, desc *data.BuildDescriptor, stageDir string) error {
	inst := &fileutils.Install{
		Ctx:     ctx,
		L:       a.L(),
		Pattern: desc.SourcePath,
		Dest:    filepath.Join(stageDir, "app"),
		Exclude: []string{".git", BuildLockFile},
	}

	err := inst.Install()
	if err != nil {
		return errors.Wrapf(ErrPackaging, "staging source: %v", err)
	}

	if desc.Entrypoint == "" {
		return nil
	}

	binDir := filepath.Join(stageDir, "bin")

	err = os.MkdirAll(binDir, 0755)
	if err != nil {
		return track(err)
	}

	target := filepath.Join("..", "app", desc.Entrypoint)

	err = os.Symlink(target, filepath.Join(binDir, desc.Name))
	if err != nil {
		return errors.Wrapf(ErrPackaging, "exposing entrypoint: %v", err)
	}

	return nil
}

func (a *AppBuild) emit(cfg *config.Config, info *data.ArtifactInfo, stageDir string) (*BuildResult, error) {
	outDir := a.OutputDir
	if outDir == "" {
		outDir = cfg.ArtifactsPath()
	}

	// The key accessors return nil on failure, which would only blow
	// up deep inside the signer. Surface a broken identity here.
	_, err := cfg.SignerId()
	if err != nil {
		return nil, errors.Wrapf(ErrPackaging, "loading signer identity: %v", err)
	}

	err = os.MkdirAll(outDir, 0755)
	if err != nil {
		return nil, track(err)
	}

	final := filepath.Join(outDir, fmt.Sprintf("%s-%s.tar.gz", info.Name, info.Version))

	tmp, err := os.CreateTemp(outDir, ".tmp-artifact-*")
	if err != nil {
		return nil, track(err)
	}

	defer os.Remove(tmp.Name())

	pack := &ArtifactPack{
		PrivateKey: cfg.Private(),
		PublicKey:  cfg.Public(),
	}
	pack.SetLogger(a.L())

	err = pack.Pack(info, stageDir, tmp)
	if err != nil {
		tmp.Close()
		return nil, errors.Wrapf(ErrPackaging, "packing artifact: %v", err)
	}

	err = tmp.Close()
	if err != nil {
		return nil, track(err)
	}

	err = os.Rename(tmp.Name(), final)
	if err != nil {
		return nil, track(err)
	}

	err = a.recordSum(outDir, filepath.Base(final), pack.Sum)
	if err != nil {
		return nil, err
	}

	a.L().Info("artifact written", "path", final, "sum", EncodeSum(pack.Sum))

	return &BuildResult{
		Info: info,
		Path: final,
		Sum:  pack.Sum,
	}, nil
}

// recordSum maintains the artifacts.sum registry next to the emitted
// artifacts.
func (a *AppBuild) recordSum(outDir, name string, sum []byte) error {
	var sf sumfile.Sumfile

	path := filepath.Join(outDir, "artifacts.sum")

	if f, err := os.Open(path); err == nil {
		err = sf.Load(f)
		f.Close()

		if err != nil {
			return track(err)
		}
	}

	_, err := sf.Add(name, SumAlgo, sum)
	if err != nil {
		return track(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return track(err)
	}

	defer f.Close()

	return track(sf.Save(f))
}
