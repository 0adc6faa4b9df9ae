package ops

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andir/mail2pr/pkg/data"
)

func TestSnapshotPin(t *testing.T) {
	ctx := context.Background()

	t.Run("writes a lock file for every build dep", func(t *testing.T) {
		cfg := testConfig(t)

		root := t.TempDir()
		ref, idx := writeSnapshot(t, root)
		dir := writeProject(t, root, ref, idx)

		require.NoError(t, os.Remove(filepath.Join(dir, data.LockFile)))

		var sp SnapshotPin

		lock, err := sp.Pin(ctx, cfg, dir, ref.URL)
		require.NoError(t, err)

		require.Equal(t, 1, len(lock.Packages))

		ent := lock.Packages[0]

		assert.Equal(t, "poetry", ent.Name)
		assert.Equal(t, "1.1.15", ent.RequestedVersion)
		assert.Equal(t, "1.1.15", ent.ResolvedVersion)
		assert.True(t, SumsEqual(ent.Sum, idx.Packages[0].Sum))

		assert.Equal(t, ref.URL, lock.Snapshot.URL)
		assert.True(t, SumsEqual(ref.Sum, lock.Snapshot.Sum))

		lockData, err := os.ReadFile(filepath.Join(dir, data.LockFile))
		require.NoError(t, err)

		var onDisk data.Lock

		require.NoError(t, json.Unmarshal(lockData, &onDisk))

		assert.Equal(t, lock.Snapshot, onDisk.Snapshot)
		assert.False(t, onDisk.CreatedAt.IsZero())
	})

	t.Run("a pinned project builds as is", func(t *testing.T) {
		cfg := testConfig(t)

		root := t.TempDir()
		ref, idx := writeSnapshot(t, root)
		dir := writeProject(t, root, ref, idx)

		var sp SnapshotPin

		_, err := sp.Pin(ctx, cfg, dir, ref.URL)
		require.NoError(t, err)

		ab := &AppBuild{OutputDir: filepath.Join(root, "out")}

		res, err := ab.Build(ctx, cfg, dir)
		require.NoError(t, err)

		assert.Equal(t, "mail2pr", res.Info.Name)
	})

	t.Run("fails when a build dep is missing from the snapshot", func(t *testing.T) {
		cfg := testConfig(t)

		root := t.TempDir()
		ref, idx := writeSnapshot(t, root)
		dir := writeProject(t, root, ref, idx)

		proj := `name: mail2pr
version: "0.0.1"
entrypoint: mail2pr.py
build-deps:
  - name: left-pad
    version: "1.0"
`

		require.NoError(t, os.WriteFile(filepath.Join(dir, data.ProjectFile),
			[]byte(proj), 0644))

		var sp SnapshotPin

		_, err := sp.Pin(ctx, cfg, dir, ref.URL)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPackaging))
	})

	t.Run("fails without a project definition", func(t *testing.T) {
		cfg := testConfig(t)

		root := t.TempDir()
		ref, idx := writeSnapshot(t, root)
		dir := writeProject(t, root, ref, idx)

		require.NoError(t, os.Remove(filepath.Join(dir, data.ProjectFile)))

		var sp SnapshotPin

		_, err := sp.Pin(ctx, cfg, dir, ref.URL)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPackaging))
	})
}
