package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andir/mail2pr/pkg/config"
	"github.com/andir/mail2pr/pkg/data"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()

	cfgPath := filepath.Join(root, "config.json")

	body := fmt.Sprintf(`{"data-dir": %q, "cache-dir": %q}`,
		filepath.Join(root, "data"), filepath.Join(root, "cache"))

	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0644))

	t.Setenv("MAIL2PR_CONFIG", cfgPath)
	t.Setenv("MAIL2PR_DATA_DIR", "")
	t.Setenv("MAIL2PR_CACHE", "")
	t.Setenv("MAIL2PR_REPO", "")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	return cfg
}

// writeSnapshot lays out a one-package snapshot source dir and
// returns a pinned ref to it.
func writeSnapshot(t *testing.T, root string) (data.SnapshotRef, *data.SnapshotIndex) {
	t.Helper()

	dir := filepath.Join(root, "snapshot-src")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "packages"), 0755))

	payload := []byte("poetry distribution payload\n")

	pkgPath := filepath.Join("packages", "poetry-1.1.15.tar")

	require.NoError(t, os.WriteFile(filepath.Join(dir, pkgPath), payload, 0644))

	pkgSum, err := SumFile(filepath.Join(dir, pkgPath))
	require.NoError(t, err)

	idx := &data.SnapshotIndex{
		Packages: []*data.SnapshotPackage{
			{
				Name:    "poetry",
				Version: "1.1.15",
				Path:    pkgPath,
				Sum:     pkgSum,
			},
		},
	}

	idxData, err := json.MarshalIndent(idx, "", "  ")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotIndexJson), idxData, 0644))

	idxSum, err := SumFile(filepath.Join(dir, SnapshotIndexJson))
	require.NoError(t, err)

	return data.SnapshotRef{URL: dir, Sum: idxSum}, idx
}

const fixtureProject = `name: mail2pr
version: 0.0.1
entrypoint: mail2pr.py
build-deps:
  - name: poetry
    version: 1.1.15
`

// writeProject lays out a buildable source dir locked against ref.
func writeProject(t *testing.T, root string, ref data.SnapshotRef, idx *data.SnapshotIndex) string {
	t.Helper()

	dir := filepath.Join(root, "proj")

	require.NoError(t, os.MkdirAll(dir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, data.ProjectFile),
		[]byte(fixtureProject), 0644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mail2pr.py"),
		[]byte("print('mail2pr')\n"), 0644))

	pkg, ok := idx.Lookup("poetry")
	require.True(t, ok)

	lock := &data.Lock{
		Snapshot: ref,
		Packages: []*data.LockEntry{
			{
				Name:             "poetry",
				RequestedVersion: "1.1.15",
				ResolvedVersion:  pkg.Version,
				Sum:              pkg.Sum,
			},
		},
	}

	lockData, err := json.MarshalIndent(lock, "", "  ")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, data.LockFile), lockData, 0644))

	return dir
}
