package models

// ArtifactKind identifies a class of stored media artifact as it appears
// in media access tokens and byte-serving routes.
type ArtifactKind string

// Artifact kinds. Clips are served as "video"; their derived first-frame
// thumbnails are a distinct kind with their own tokens.
const (
	ArtifactVideo     ArtifactKind = "video"
	ArtifactEdit      ArtifactKind = "edit"
	ArtifactSnapshot  ArtifactKind = "snapshot"
	ArtifactThumbnail ArtifactKind = "thumbnail"
)

// AllArtifactKinds lists every artifact kind in a stable order.
var AllArtifactKinds = []ArtifactKind{ArtifactVideo, ArtifactEdit, ArtifactSnapshot, ArtifactThumbnail}

// Valid reports whether k is a known artifact kind.
func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactVideo, ArtifactEdit, ArtifactSnapshot, ArtifactThumbnail:
		return true
	default:
		return false
	}
}

// String returns the kind name.
func (k ArtifactKind) String() string {
	return string(k)
}
