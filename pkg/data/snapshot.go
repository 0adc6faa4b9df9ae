package data

// SnapshotRef pins an ecosystem snapshot. URL is anything go-getter
// understands; Sum, when set, is the expected blake2b sum of the
// snapshot index in algo:base58 form.
type SnapshotRef struct {
	URL string `json:"url"`
	Sum string `json:"sum,omitempty"`
}

// SnapshotPackage is one resolvable package within a snapshot.
type SnapshotPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Path    string `json:"path"`
	Sum     string `json:"sum"`
}

// SnapshotIndex is stored at the root of a snapshot as
// snapshot-index.json and enumerates every package the snapshot can
// resolve.
type SnapshotIndex struct {
	Packages []*SnapshotPackage `json:"packages"`
}

func (s *SnapshotIndex) Lookup(name string) (*SnapshotPackage, bool) {
	for _, pkg := range s.Packages {
		if pkg.Name == name {
			return pkg, true
		}
	}

	return nil, false
}
