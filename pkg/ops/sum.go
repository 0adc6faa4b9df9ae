package ops

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const SumAlgo = "b2"

// DecodeSum splits an algo:base58 sum string into its parts.
func DecodeSum(sum string) (string, []byte, error) {
	colon := strings.IndexByte(sum, ':')
	if colon == -1 {
		return "", nil, ErrSumFormat
	}

	val, err := base58.Decode(sum[colon+1:])
	if err != nil {
		return "", nil, ErrSumFormat
	}

	return sum[:colon], val, nil
}

func EncodeSum(h []byte) string {
	return SumAlgo + ":" + base58.Encode(h)
}

func SumReader(r io.Reader) ([]byte, error) {
	h, _ := blake2b.New256(nil)

	_, err := io.Copy(h, r)
	if err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}

	defer f.Close()

	sum, err := SumReader(f)
	if err != nil {
		return "", err
	}

	return EncodeSum(sum), nil
}

func SumsEqual(a, b string) bool {
	aAlgo, aVal, err := DecodeSum(a)
	if err != nil {
		return false
	}

	bAlgo, bVal, err := DecodeSum(b)
	if err != nil {
		return false
	}

	return aAlgo == bAlgo && bytes.Equal(aVal, bVal)
}
