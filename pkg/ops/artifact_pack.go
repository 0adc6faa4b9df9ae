package ops

import (
	"archive/tar"
	"compress/gzip"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/andir/mail2pr/pkg/data"
)

const (
	ArtifactInfoJson = ".artifact-info.json"
	SignatureEntry   = "~signature"
)

// ArtifactPack writes a directory tree as a reproducible artifact: a
// gzipped PAX tar with sorted entries, zeroed times and owners, the
// artifact info embedded, and an ed25519 signature over the content
// digest. Identical trees produce byte-identical output.
type ArtifactPack struct {
	common

	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey

	// Sum is the blake2b digest of the emitted stream, set by Pack.
	Sum []byte
}

func (c *ArtifactPack) Pack(info *data.ArtifactInfo, dir string, w io.Writer) error {
	files, err := sortedTree(dir)
	if err != nil {
		return track(err)
	}

	h, _ := blake2b.New256(nil)

	gz := gzip.NewWriter(io.MultiWriter(w, h))
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	// dh digests entry names and contents; the signature covers it.
	dh, _ := blake2b.New256(nil)

	for _, file := range files {
		err := c.packEntry(tw, dh, dir, file)
		if err != nil {
			return err
		}
	}

	info.Signer = base58.Encode(c.PublicKey)

	infoData, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return track(err)
	}

	dh.Write(infoData)

	err = writeMetaEntry(tw, ArtifactInfoJson, infoData)
	if err != nil {
		return err
	}

	signature := ed25519.Sign(c.PrivateKey, dh.Sum(nil))

	err = writeMetaEntry(tw, SignatureEntry, signature)
	if err != nil {
		return err
	}

	err = tw.Flush()
	if err != nil {
		return errors.Wrapf(err, "tar writer flush")
	}

	err = tw.Close()
	if err != nil {
		return errors.Wrapf(err, "tar writer close")
	}

	err = gz.Close()
	if err != nil {
		return errors.Wrapf(err, "gzip flush")
	}

	c.Sum = h.Sum(nil)

	return nil
}

func sortedTree(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		switch info.Mode() & os.ModeType {
		case 0, os.ModeSymlink:
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// filepath.Walk already visits lexically, but don't depend on it.
	sort.Strings(files)

	return files, nil
}

func (c *ArtifactPack) packEntry(tw *tar.Writer, dh io.Writer, dir, file string) error {
	fi, err := os.Lstat(file)
	if err != nil {
		return track(err)
	}

	var link string

	if fi.Mode()&os.ModeSymlink != 0 {
		link, err = os.Readlink(file)
		if err != nil {
			return track(err)
		}

		// Absolute targets inside the staged tree are rebased so the
		// artifact stays relocatable. Anything pointing outside the
		// tree can't be represented and fails the build.
		if filepath.IsAbs(link) {
			if !strings.HasPrefix(link, dir+string(filepath.Separator)) {
				return errors.Wrapf(ErrPackaging,
					"symlink escapes the packed tree: %s -> %s", file[len(dir)+1:], link)
			}

			link = link[len(dir)+1:]
		}
	}

	hdr, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return track(err)
	}

	scrubHeader(hdr)
	hdr.Name = file[len(dir)+1:]

	if link == "" {
		io.WriteString(dh, hdr.Name)
		dh.Write([]byte{0})
	} else {
		io.WriteString(dh, hdr.Name)
		dh.Write([]byte{1})
		io.WriteString(dh, hdr.Linkname)
		dh.Write([]byte{0})
	}

	err = tw.WriteHeader(hdr)
	if err != nil {
		return errors.Wrapf(err, "writing file header: %s", hdr.Name)
	}

	if link != "" {
		return nil
	}

	f, err := os.Open(file)
	if err != nil {
		return track(err)
	}

	defer f.Close()

	_, err = io.Copy(io.MultiWriter(tw, dh), f)

	return track(err)
}

func writeMetaEntry(tw *tar.Writer, name string, content []byte) error {
	var hdr tar.Header

	scrubHeader(&hdr)
	hdr.Name = name
	hdr.Typeflag = tar.TypeReg
	hdr.Mode = 0400
	hdr.Size = int64(len(content))

	err := tw.WriteHeader(&hdr)
	if err != nil {
		return track(err)
	}

	_, err = tw.Write(content)

	return track(err)
}

func scrubHeader(hdr *tar.Header) {
	hdr.Uid = 0
	hdr.Gid = 0
	hdr.Uname = ""
	hdr.Gname = ""
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.ModTime = time.Time{}
	hdr.Format = tar.FormatPAX
}
