// Package classify maps file extensions to content kinds.
//
// Classification is a filtering policy, not a failure mode: unknown
// extensions classify as KindUnsupported and the caller skips them
// without raising an error.
package classify

import (
	"path/filepath"
	"strings"
)

// Kind is the coarse content category of an input file.
type Kind int

const (
	// KindUnsupported marks files the pipeline ignores.
	KindUnsupported Kind = iota
	// KindDocument marks text-bearing documents (pdf, docx, pptx, txt, md).
	KindDocument
	// KindImage marks still images.
	KindImage
	// KindAudio marks audio clips.
	KindAudio
	// KindVideo marks video files.
	KindVideo
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unsupported"
	}
}

var docExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".pptx": true, ".txt": true, ".md": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true,
}

// Classify returns the content kind for a file name based on its
// extension. The comparison is case-insensitive.
func Classify(name string) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case docExtensions[ext]:
		return KindDocument
	case imageExtensions[ext]:
		return KindImage
	case audioExtensions[ext]:
		return KindAudio
	case videoExtensions[ext]:
		return KindVideo
	default:
		return KindUnsupported
	}
}

// WatchedExtensions returns the full set of extensions the pipeline
// indexes. The change watcher uses this to filter filesystem events.
func WatchedExtensions() map[string]bool {
	out := make(map[string]bool)
	for _, set := range []map[string]bool{docExtensions, imageExtensions, audioExtensions, videoExtensions} {
		for ext := range set {
			out[ext] = true
		}
	}
	return out
}

// IsWatched reports whether a file name has a watched extension.
func IsWatched(name string) bool {
	return Classify(name) != KindUnsupported
}
