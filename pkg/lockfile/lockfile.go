package lockfile

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Take acquires an advisory lock by exclusively creating path. The
// returned closer releases the lock. waiting is invoked each time the
// lock is found held by someone else.
func Take(ctx context.Context, path string, waiting func()) (func(), error) {
	tk := time.NewTicker(time.Second)
	defer tk.Stop()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()

			return func() {
				os.Remove(path)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, err
		}

		if waiting != nil {
			waiting()
		}

		select {
		case <-tk.C:
			// try again
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
