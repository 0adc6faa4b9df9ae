package data

type ArtifactDep struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Sum     string `json:"sum"`
}

type ArtifactPlatform struct {
	OS        string `json:"os"`
	OSVersion string `json:"os_version"`
	Arch      string `json:"architecture"`
}

// ArtifactInfo travels inside the artifact as .artifact-info.json and
// is what `mail2pr inspect` reports.
type ArtifactInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	Entrypoint string `json:"entrypoint,omitempty"`

	Signer string `json:"signer"`

	Snapshot string `json:"snapshot"`

	// Inputs is a digest over the descriptor, lock, and snapshot id.
	Inputs string `json:"inputs,omitempty"`

	BuildDeps []*ArtifactDep `json:"build_deps"`

	Platform *ArtifactPlatform `json:"platform,omitempty"`

	Constraints map[string]string `json:"constraints,omitempty"`
}

func (a *ArtifactInfo) ID() string {
	return a.Name + "-" + a.Version
}
