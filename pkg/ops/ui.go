package ops

import (
	"context"
	"fmt"
	"os"

	"github.com/andir/mail2pr/pkg/data"
	"github.com/andir/mail2pr/pkg/humanize"
)

type UI struct {
}

func (u *UI) ResolveSnapshot(ref data.SnapshotRef) {
	fmt.Printf("Resolving snapshot %s\n", ref.URL)
}

func (u *UI) BuildStart(desc *data.BuildDescriptor) {
	fmt.Printf("Packaging %s (%s)...\n", desc.ID(), desc.SourcePath)
}

func (u *UI) ArtifactWritten(res *BuildResult) {
	var size string

	if fi, err := os.Stat(res.Path); err == nil {
		sz, unit := humanize.Size(fi.Size())
		size = fmt.Sprintf(" (%.1f%s)", sz, unit)
	}

	fmt.Printf("Wrote %s%s\n", res.Path, size)
	fmt.Printf("  sum: %s\n", EncodeSum(res.Sum))
	fmt.Printf("  signer: %s\n", res.Info.Signer)
}

func (u *UI) BranchCreated(branch, dir string) {
	fmt.Printf("Created branch %s\n", branch)
	fmt.Printf("  worktree: %s\n", dir)
}

func (u *UI) SnapshotPinned(lock *data.Lock) {
	fmt.Printf("Pinned %s\n", lock.Snapshot.URL)
	fmt.Printf("  sum: %s\n", lock.Snapshot.Sum)

	for _, ent := range lock.Packages {
		fmt.Printf("  %s %s\n", ent.Name, ent.ResolvedVersion)
	}
}

type uiMarker struct{}

// WithUI installs ui for every operation run under ctx.
func WithUI(ctx context.Context, ui *UI) context.Context {
	return context.WithValue(ctx, uiMarker{}, ui)
}

func GetUI(ctx context.Context) *UI {
	v := ctx.Value(uiMarker{})
	if v == nil {
		return &UI{}
	}

	return v.(*UI)
}
