package ops

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/andir/mail2pr/pkg/data"
)

func TestArtifactPack(t *testing.T) {
	topdir := t.TempDir()

	dir := filepath.Join(topdir, "t")

	writeTree := func(t *testing.T) {
		t.Helper()

		require.NoError(t, os.Mkdir(dir, 0755))

		require.NoError(t, os.Mkdir(filepath.Join(dir, "bin"), 0755))

		err := os.WriteFile(filepath.Join(dir, "bin/mail2pr"), []byte("#!/bin/sh\necho hi\n"), 0755)
		require.NoError(t, err)

		err = os.WriteFile(filepath.Join(dir, "app.py"), []byte("print('hi')\n"), 0644)
		require.NoError(t, err)
	}

	t.Run("packs a directory into an artifact", func(t *testing.T) {
		writeTree(t)
		defer os.RemoveAll(dir)

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		var (
			cp   ArtifactPack
			buf  bytes.Buffer
			info data.ArtifactInfo
		)

		cp.PrivateKey = priv
		cp.PublicKey = pub

		info.Name = "mail2pr"
		info.Version = "0.0.1"

		dh, _ := blake2b.New256(nil)

		err = cp.Pack(&info, dir, io.MultiWriter(&buf, dh))
		require.NoError(t, err)

		assert.Equal(t, dh.Sum(nil), cp.Sum)

		dir2 := filepath.Join(topdir, "i")
		require.NoError(t, os.Mkdir(dir2, 0755))
		defer os.RemoveAll(dir2)

		var ru ArtifactUnpack
		err = ru.Install(bytes.NewReader(buf.Bytes()), dir2)
		require.NoError(t, err)

		assert.Equal(t, "mail2pr", ru.Info.Name)
		assert.Equal(t, "0.0.1", ru.Info.Version)

		restored, err := os.ReadFile(filepath.Join(dir2, "app.py"))
		require.NoError(t, err)

		assert.Equal(t, "print('hi')\n", string(restored))
	})

	t.Run("identical trees produce byte-identical output", func(t *testing.T) {
		writeTree(t)
		defer os.RemoveAll(dir)

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		pack := func() []byte {
			var (
				cp   ArtifactPack
				buf  bytes.Buffer
				info data.ArtifactInfo
			)

			cp.PrivateKey = priv
			cp.PublicKey = pub

			info.Name = "mail2pr"
			info.Version = "0.0.1"

			err := cp.Pack(&info, dir, &buf)
			require.NoError(t, err)

			return buf.Bytes()
		}

		first := pack()

		// Different mtimes must not leak into the output.
		old := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, os.Chtimes(filepath.Join(dir, "app.py"), old, old))

		second := pack()

		assert.Equal(t, first, second)
	})

	t.Run("rejects symlinks escaping the tree", func(t *testing.T) {
		writeTree(t)
		defer os.RemoveAll(dir)

		require.NoError(t, os.Symlink("/etc", filepath.Join(dir, "etclink")))

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		var (
			cp   ArtifactPack
			buf  bytes.Buffer
			info data.ArtifactInfo
		)

		cp.PrivateKey = priv
		cp.PublicKey = pub

		info.Name = "mail2pr"
		info.Version = "0.0.1"

		err = cp.Pack(&info, dir, &buf)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPackaging))
	})

	t.Run("rebases absolute symlinks inside the tree", func(t *testing.T) {
		writeTree(t)
		defer os.RemoveAll(dir)

		require.NoError(t, os.Symlink(filepath.Join(dir, "app.py"),
			filepath.Join(dir, "applink")))

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		var (
			cp   ArtifactPack
			buf  bytes.Buffer
			info data.ArtifactInfo
		)

		cp.PrivateKey = priv
		cp.PublicKey = pub

		info.Name = "mail2pr"
		info.Version = "0.0.1"

		err = cp.Pack(&info, dir, &buf)
		require.NoError(t, err)

		dir2 := filepath.Join(topdir, "rebased")
		require.NoError(t, os.Mkdir(dir2, 0755))
		defer os.RemoveAll(dir2)

		var ru ArtifactUnpack
		require.NoError(t, ru.Install(bytes.NewReader(buf.Bytes()), dir2))

		link, err := os.Readlink(filepath.Join(dir2, "applink"))
		require.NoError(t, err)

		assert.Equal(t, "app.py", link)
	})

	t.Run("entry names with percent signs round trip", func(t *testing.T) {
		writeTree(t)
		defer os.RemoveAll(dir)

		err := os.WriteFile(filepath.Join(dir, "50%.txt"), []byte("half\n"), 0644)
		require.NoError(t, err)

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		var (
			cp   ArtifactPack
			buf  bytes.Buffer
			info data.ArtifactInfo
		)

		cp.PrivateKey = priv
		cp.PublicKey = pub

		info.Name = "mail2pr"
		info.Version = "0.0.1"

		err = cp.Pack(&info, dir, &buf)
		require.NoError(t, err)

		dir2 := filepath.Join(topdir, "percent")
		require.NoError(t, os.Mkdir(dir2, 0755))
		defer os.RemoveAll(dir2)

		var ru ArtifactUnpack
		require.NoError(t, ru.Install(bytes.NewReader(buf.Bytes()), dir2))

		restored, err := os.ReadFile(filepath.Join(dir2, "50%.txt"))
		require.NoError(t, err)

		assert.Equal(t, "half\n", string(restored))
	})

	t.Run("fails on a truncated stream", func(t *testing.T) {
		writeTree(t)
		defer os.RemoveAll(dir)

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		var (
			cp   ArtifactPack
			buf  bytes.Buffer
			info data.ArtifactInfo
		)

		cp.PrivateKey = priv
		cp.PublicKey = pub

		info.Name = "mail2pr"
		info.Version = "0.0.1"

		err = cp.Pack(&info, dir, &buf)
		require.NoError(t, err)

		dir2 := filepath.Join(topdir, "truncated")
		require.NoError(t, os.Mkdir(dir2, 0755))
		defer os.RemoveAll(dir2)

		cut := buf.Bytes()[:buf.Len()-100]

		var ru ArtifactUnpack
		err = ru.Install(bytes.NewReader(cut), dir2)
		require.Error(t, err)
	})

	t.Run("rejects tampered artifacts on unpack", func(t *testing.T) {
		writeTree(t)
		defer os.RemoveAll(dir)

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		var (
			cp   ArtifactPack
			buf  bytes.Buffer
			info data.ArtifactInfo
		)

		cp.PrivateKey = priv
		cp.PublicKey = pub

		info.Name = "mail2pr"
		info.Version = "0.0.1"

		err = cp.Pack(&info, dir, &buf)
		require.NoError(t, err)

		// Re-pack under a different key but keep the original signer
		// id: the signature check has to fail.
		otherDir := filepath.Join(topdir, "tampered")
		require.NoError(t, os.Mkdir(otherDir, 0755))
		defer os.RemoveAll(otherDir)

		_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		var (
			cp2  ArtifactPack
			buf2 bytes.Buffer
		)

		cp2.PrivateKey = otherPriv
		cp2.PublicKey = pub

		var info2 data.ArtifactInfo
		info2.Name = "mail2pr"
		info2.Version = "0.0.1"

		err = cp2.Pack(&info2, dir, &buf2)
		require.NoError(t, err)

		var ru ArtifactUnpack
		err = ru.Install(bytes.NewReader(buf2.Bytes()), otherDir)
		require.Error(t, err)
		assert.Equal(t, ErrInvalidSignature, err)

		_, err = os.Stat(filepath.Join(otherDir, "app.py"))
		assert.True(t, os.IsNotExist(err))
	})
}
