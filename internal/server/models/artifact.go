package models

import "time"

// Artifact is one physically stored file object. Every version of a file is
// an Artifact of its own; versions of one file share ChainID and each points
// to its predecessor through PreviousID.
type Artifact struct {
	ID         string
	ChainID    string
	PreviousID string
	Version    int
	Name       string
	MimeType   string
	// StorageKey locates the bytes in the physical store.
	StorageKey string
	// Size is the exact byte length of the stored object.
	Size      int64
	Scope     Scope
	CreatedBy string
	CreatedAt time.Time
}

// ArtifactPatch is a partial update: only non-nil fields are applied.
type ArtifactPatch struct {
	Name     *string
	MimeType *string
	// ClearPrevious unlinks the artifact from its predecessor.
	ClearPrevious bool
}

// Empty reports whether the patch changes nothing.
func (p ArtifactPatch) Empty() bool {
	return p.Name == nil && p.MimeType == nil && !p.ClearPrevious
}

// Apply returns a copy of a with the patch applied.
func (p ArtifactPatch) Apply(a Artifact) Artifact {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.MimeType != nil {
		a.MimeType = *p.MimeType
	}
	if p.ClearPrevious {
		a.PreviousID = ""
	}
	return a
}
