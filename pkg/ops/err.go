package ops

import "github.com/pkg/errors"

var (
	// ErrResolution covers every way a pinned snapshot can fail to
	// materialize: unreachable ref, corrupt index, sum mismatch.
	ErrResolution = errors.New("snapshot resolution failed")

	// ErrPackaging covers a missing or inconsistent project/lock
	// definition and unresolvable build-time dependencies.
	ErrPackaging = errors.New("packaging failed")

	ErrSumFormat = errors.New("sum must be in algo:base58 form")
)

func track(err error) error {
	return errors.WithStack(err)
}
