// Package youtube wraps the external collaborators of the mirror: yt-dlp for
// metadata queries and downloads, ffprobe for media probing, and the
// classification of resource URLs and downloader failures.
package youtube

import (
	"net/url"
	"strings"
)

// Kind is the resource type a URL points at.
type Kind int

const (
	KindUnknown Kind = iota
	KindVideo
	KindPlaylist
	KindChannel
	KindShorts
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindPlaylist:
		return "playlist"
	case KindChannel:
		return "channel"
	case KindShorts:
		return "shorts"
	default:
		return "unknown"
	}
}

// Classify determines the resource kind of rawURL from its query and path.
// The checks run in a fixed order, so a watch URL inside a playlist is a
// video and a /@handle/shorts tab is shorts.
func Classify(rawURL string) Kind {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return KindUnknown
	}
	q := u.Query()
	path := u.EscapedPath()

	switch {
	case q.Has("v"):
		return KindVideo
	case q.Has("list"), strings.HasPrefix(path, "/feed/history"):
		return KindPlaylist
	case strings.HasSuffix(strings.TrimSuffix(path, "/"), "/shorts"):
		return KindShorts
	case strings.HasPrefix(path, "/@"),
		strings.HasPrefix(path, "/channel/"),
		strings.HasPrefix(path, "/c/"),
		strings.HasPrefix(path, "/user/"):
		return KindChannel
	}
	return KindUnknown
}

// VideoID returns the v= parameter of a watch URL, or "".
func VideoID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

// VideoURL returns the canonical watch URL for a video id.
func VideoURL(id string) string {
	return "https://youtube.com/watch?v=" + url.QueryEscape(id)
}
