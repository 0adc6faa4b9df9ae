package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-getter"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/andir/mail2pr/pkg/config"
	"github.com/andir/mail2pr/pkg/data"
	"github.com/andir/mail2pr/pkg/progress"
)

const SnapshotIndexJson = "snapshot-index.json"

// Snapshot is a materialized, verified ecosystem snapshot.
type Snapshot struct {
	ID    string
	Path  string
	Index *data.SnapshotIndex
}

// SnapshotResolve fetches a pinned snapshot ref into the local store.
// The same ref always maps to the same store id, so a snapshot is
// fetched at most once per store.
type SnapshotResolve struct {
	common

	Store *config.Store
}

func SnapshotID(ref data.SnapshotRef) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(ref.URL))

	return base58.Encode(h.Sum(nil))
}

func (s *SnapshotResolve) Resolve(ctx context.Context, cfg *config.Config, ref data.SnapshotRef) (*Snapshot, error) {
	if ref.URL == "" {
		return nil, errors.Wrapf(ErrResolution, "empty snapshot ref")
	}

	if s.Store == nil {
		s.Store = cfg.Store()
	}

	id := SnapshotID(ref)

	if path, err := s.Store.Locate(id); err == nil {
		s.L().Debug("snapshot already materialized", "id", id, "path", path)
		return s.open(ctx, id, path, ref)
	}

	dst := s.Store.ExpectedPath(id)

	// Fetch into a staging path and only rename once verified, so an
	// aborted fetch never commits a snapshot.
	staging := dst + ".partial"

	os.RemoveAll(staging)

	s.L().Info("fetching snapshot", "url", ref.URL, "id", id)

	GetUI(ctx).ResolveSnapshot(ref)

	client := &getter.Client{
		Ctx:     ctx,
		Src:     ref.URL,
		Dst:     staging,
		Mode:    getter.ClientModeDir,
		Getters: snapshotGetters(),
	}

	err := client.Get()
	if err != nil {
		os.RemoveAll(staging)
		return nil, errors.Wrapf(ErrResolution, "fetching %s: %v", ref.URL, err)
	}

	snap, err := s.open(ctx, id, staging, ref)
	if err != nil {
		os.RemoveAll(staging)
		return nil, err
	}

	err = os.Rename(staging, dst)
	if err != nil {
		os.RemoveAll(staging)
		return nil, track(err)
	}

	snap.Path = dst

	return snap, nil
}

// snapshotGetters is the stock go-getter set, except local dirs are
// copied instead of symlinked so the store owns its bytes.
func snapshotGetters() map[string]getter.Getter {
	getters := make(map[string]getter.Getter, len(getter.Getters))

	for k, g := range getter.Getters {
		getters[k] = g
	}

	getters["file"] = &getter.FileGetter{Copy: true}

	return getters
}

func (s *SnapshotResolve) open(ctx context.Context, id, path string, ref data.SnapshotRef) (*Snapshot, error) {
	indexData, err := os.ReadFile(filepath.Join(path, SnapshotIndexJson))
	if err != nil {
		return nil, errors.Wrapf(ErrResolution, "snapshot has no index: %v", err)
	}

	if ref.Sum != "" {
		sum, err := SumReader(bytes.NewReader(indexData))
		if err != nil {
			return nil, track(err)
		}

		if !SumsEqual(ref.Sum, EncodeSum(sum)) {
			return nil, errors.Wrapf(ErrResolution,
				"snapshot index sum mismatch: expected %s, got %s", ref.Sum, EncodeSum(sum))
		}
	}

	var idx data.SnapshotIndex

	err = json.Unmarshal(indexData, &idx)
	if err != nil {
		return nil, errors.Wrapf(ErrResolution, "corrupt snapshot index: %v", err)
	}

	err = s.verifyPackages(ctx, path, &idx)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ID:    id,
		Path:  path,
		Index: &idx,
	}, nil
}

func (s *SnapshotResolve) verifyPackages(ctx context.Context, root string, idx *data.SnapshotIndex) error {
	pb := progress.Count(ctx, int64(len(idx.Packages)), "Verifying snapshot")
	defer pb.Close()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, pkg := range idx.Packages {
		pkg := pkg

		g.Go(func() error {
			defer pb.Tick()

			if pkg.Path != filepath.Clean(pkg.Path) || filepath.IsAbs(pkg.Path) {
				return errors.Wrapf(ErrResolution, "%s: bad package path: %s", pkg.Name, pkg.Path)
			}

			sum, err := SumFile(filepath.Join(root, pkg.Path))
			if err != nil {
				return errors.Wrapf(ErrResolution, "%s: unreadable package: %v", pkg.Name, err)
			}

			if !SumsEqual(sum, pkg.Sum) {
				return errors.Wrapf(ErrResolution, "%s: package sum mismatch", pkg.Name)
			}

			return nil
		})
	}

	return g.Wait()
}
