package ops

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/ed25519"
	"io"
	"os"
	"path/filepath"

	"encoding/json"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/andir/mail2pr/pkg/data"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNoSignature      = errors.New("no signature")
)

// ArtifactUnpack restores an artifact into a directory, verifying
// the embedded ed25519 signature against the content digest. A failed
// verification removes everything that was written.
type ArtifactUnpack struct {
	common

	Info      data.ArtifactInfo
	Signature []byte
}

func (r *ArtifactUnpack) Install(in io.Reader, dir string) error {
	h, _ := blake2b.New256(nil)

	gz, err := gzip.NewReader(io.TeeReader(in, h))
	if err != nil {
		return track(err)
	}

	tr := tar.NewReader(gz)

	dh, _ := blake2b.New256(nil)

	var (
		sig      []byte
		infoData []byte
	)

top:
	for {
		hdr, err := tr.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return track(err)
		}

		switch hdr.Name {
		case ArtifactInfoJson:
			var buf bytes.Buffer

			_, err = io.Copy(&buf, tr)
			if err != nil {
				return track(err)
			}

			infoData = buf.Bytes()

			err = json.Unmarshal(infoData, &r.Info)
			if err != nil {
				return track(err)
			}

			continue top
		case SignatureEntry:
			sig, err = io.ReadAll(tr)
			if err != nil {
				return track(err)
			}

			continue top
		}

		path := filepath.Join(dir, hdr.Name)
		parent := filepath.Dir(path)

		if _, err := os.Stat(parent); err != nil {
			err = os.MkdirAll(parent, 0755)
			if err != nil {
				return track(err)
			}
		}

		switch hdr.Typeflag {
		case tar.TypeReg:
			io.WriteString(dh, hdr.Name)
			dh.Write([]byte{0})

			mode := hdr.FileInfo().Mode()
			f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
			if err != nil {
				return track(err)
			}

			_, err = io.Copy(io.MultiWriter(dh, f), tr)
			if err != nil {
				f.Close()
				return track(err)
			}

			err = f.Close()
			if err != nil {
				return track(err)
			}
		case tar.TypeSymlink:
			io.WriteString(dh, hdr.Name)
			dh.Write([]byte{1})
			io.WriteString(dh, hdr.Linkname)
			dh.Write([]byte{0})

			err = os.Symlink(hdr.Linkname, path)
			if err != nil {
				return track(err)
			}
		}
	}

	dh.Write(infoData)

	if r.Info.Signer == "" || len(sig) == 0 {
		os.RemoveAll(dir)
		return ErrNoSignature
	}

	signer, err := base58.Decode(r.Info.Signer)
	if err != nil {
		os.RemoveAll(dir)
		return track(err)
	}

	if !ed25519.Verify(ed25519.PublicKey(signer), dh.Sum(nil), sig) {
		os.RemoveAll(dir)
		return ErrInvalidSignature
	}

	r.Signature = sig

	return nil
}
