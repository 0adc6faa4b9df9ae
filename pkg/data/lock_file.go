package data

import "time"

type LockEntry struct {
	Name string `json:"name"`

	RequestedVersion string `json:"requested_version"`
	ResolvedVersion  string `json:"resolved_version"`

	Sum string `json:"sum"`
}

type Lock struct {
	CreatedAt time.Time    `json:"created_at"`
	Snapshot  SnapshotRef  `json:"snapshot"`
	Packages  []*LockEntry `json:"packages"`
}

func (l *Lock) Lookup(name string) (*LockEntry, bool) {
	for _, ent := range l.Packages {
		if ent.Name == name {
			return ent, true
		}
	}

	return nil, false
}
