// Package media defines media item classification for the channel library.
package media

import (
	"path/filepath"
	"strings"
)

// Kind identifies which elementary stream a library file feeds.
type Kind string

const (
	// KindVideo is a video library file.
	KindVideo Kind = "video"
	// KindAudio is an audio library file.
	KindAudio Kind = "audio"
)

// Item is a single media file discovered at scan time. Items are immutable;
// rescans produce new Items rather than mutating old ones.
type Item struct {
	Path string
	Kind Kind
}

// videoExtensions are the container extensions treated as video sources.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".m4v":  true,
	".mpg":  true,
	".mpeg": true,
	".ts":   true,
	".wmv":  true,
	".flv":  true,
}

// audioExtensions are the extensions treated as audio sources.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".aac":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".wma":  true,
}

// KindForPath classifies a file path by extension. The second return value
// is false for files that are not recognized media.
func KindForPath(path string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if videoExtensions[ext] {
		return KindVideo, true
	}
	if audioExtensions[ext] {
		return KindAudio, true
	}
	return "", false
}

// IsKind reports whether path is a recognized media file of the given kind.
func IsKind(path string, kind Kind) bool {
	k, ok := KindForPath(path)
	return ok && k == kind
}

// IsMedia reports whether path has a recognized media extension of any kind.
func IsMedia(path string) bool {
	_, ok := KindForPath(path)
	return ok
}
