package model

// ArtifactState describes what the locator learned about an expected artifact.
type ArtifactState string

// Artifact state constants
const (
	ArtifactUnknown        ArtifactState = "UNKNOWN"
	ArtifactMissing        ArtifactState = "MISSING"
	ArtifactFoundElsewhere ArtifactState = "FOUND_ELSEWHERE"
	ArtifactRelocated      ArtifactState = "RELOCATED"
	ArtifactVerified       ArtifactState = "VERIFIED"
	ArtifactEmpty          ArtifactState = "EMPTY"
)

// ArtifactReference points at the file an agent was asked to produce.
// Only the locator changes State.
type ArtifactReference struct {
	CanonicalPath string        `json:"canonical_path"`
	Basename      string        `json:"basename"`
	State         ArtifactState `json:"state"`
	// Source is where a candidate was found outside the canonical path.
	Source string `json:"source,omitempty"`
	// Detail carries the move error for FoundElsewhere.
	Detail string `json:"detail,omitempty"`
}

// NewArtifactReference creates a reference in the Unknown state.
func NewArtifactReference(canonicalPath, basename string) ArtifactReference {
	return ArtifactReference{
		CanonicalPath: canonicalPath,
		Basename:      basename,
		State:         ArtifactUnknown,
	}
}

// Verified reports whether the reference denotes a non-empty file at CanonicalPath.
func (r ArtifactReference) Verified() bool {
	return r.State == ArtifactVerified
}

// Relocated reports whether the file was moved in from another location.
func (r ArtifactReference) Relocated() bool {
	return r.Source != "" && r.State != ArtifactFoundElsewhere
}
