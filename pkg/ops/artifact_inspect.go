package ops

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/andir/mail2pr/pkg/data"
	"github.com/andir/mail2pr/pkg/humanize"
)

type ArtifactInspect struct {
	common

	Info      data.ArtifactInfo
	Signature []byte
}

func (r *ArtifactInspect) Show(in io.Reader, show io.Writer) error {
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

		mode := hdr.FileInfo().Mode()

		switch hdr.Typeflag {
		case tar.TypeReg:
			io.WriteString(dh, hdr.Name)
			dh.Write([]byte{0})

			_, err = io.Copy(dh, tr)
			if err != nil {
				return track(err)
			}

			sz, unit := humanize.Size(hdr.Size)

			fmt.Fprintf(show, "%s\t%.1f%s\t%s\n", mode.String(), sz, unit, hdr.Name)

		case tar.TypeSymlink:
			io.WriteString(dh, hdr.Name)
			dh.Write([]byte{1})
			io.WriteString(dh, hdr.Linkname)
			dh.Write([]byte{0})

			fmt.Fprintf(show, "%s\t-\t%s => %s\n", mode.String(), hdr.Name, hdr.Linkname)
		}
	}

	dh.Write(infoData)

	fmt.Fprintf(show, "\nName:\t%s\n", r.Info.Name)
	fmt.Fprintf(show, "Version:\t%s\n", r.Info.Version)
	fmt.Fprintf(show, "Snapshot:\t%s\n", r.Info.Snapshot)

	var deps []string
	for _, d := range r.Info.BuildDeps {
		deps = append(deps, d.Name+"-"+d.Version)
	}

	fmt.Fprintf(show, "Build Deps:\t%s\n", strings.Join(deps, ", "))

	var keys []string

	for k := range r.Info.Constraints {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var constraints []string

	for _, k := range keys {
		constraints = append(constraints, k+"="+r.Info.Constraints[k])
	}

	fmt.Fprintf(show, "Constraints:\t%s\n", strings.Join(constraints, ", "))

	if r.Info.Signer == "" || len(sig) == 0 {
		fmt.Fprintf(show, "\n! Warning: No Signature Detected\n")
		return nil
	}

	signer, err := base58.Decode(r.Info.Signer)
	if err != nil {
		fmt.Fprintf(show, "\n! Warning: Invalid Signature Detected\n")
		return nil
	}

	if !ed25519.Verify(ed25519.PublicKey(signer), dh.Sum(nil), sig) {
		fmt.Fprintf(show, "\n! Warning: Invalid Signature Detected\n")
		return nil
	}

	r.Signature = sig

	fmt.Fprintf(show, "Signature:\t%s\n", base58.Encode(sig))

	return nil
}
