package youtube

import (
	"encoding/json"
	"strings"
)

// Video is the subset of a yt-dlp info JSON sidecar the mirror relies on.
type Video struct {
	// ID is the YouTube video ID.
	ID string `json:"id"`
	// Title is the video title.
	Title string `json:"title"`
	// Ext is the extension of the merged media file.
	Ext string `json:"ext"`
	// Channel is the display name of the owning channel.
	Channel string `json:"channel"`
	// ChannelID is the owning channel's id.
	ChannelID string `json:"channel_id"`
	// Uploader is the uploader name; usually equal to Channel.
	Uploader string `json:"uploader"`
	// UploaderID is the uploader handle (e.g. "@name").
	UploaderID string `json:"uploader_id"`
	// Duration is the video length in seconds.
	Duration float64 `json:"duration"`
	// UploadDate is when the video was uploaded (YYYYMMDD).
	UploadDate string `json:"upload_date"`
	// WebpageURL is the canonical page of the video.
	WebpageURL string `json:"webpage_url"`
}

// PlaylistRef names the playlist a video is being mirrored through.
type PlaylistRef struct {
	ID    string
	Title string
}

// SnapshotKind is the classification of a resource query response.
type SnapshotKind int

const (
	SnapshotUnknown SnapshotKind = iota
	SnapshotPlaylist
	SnapshotChannel
)

func (k SnapshotKind) String() string {
	switch k {
	case SnapshotPlaylist:
		return "playlist"
	case SnapshotChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Entry is one flat-playlist entry of a Snapshot.
type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Snapshot is the flat listing yt-dlp returns for a playlist, channel or
// shorts tab.
type Snapshot struct {
	Type          string  `json:"_type"`
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Uploader      string  `json:"uploader"`
	UploaderID    string  `json:"uploader_id"`
	Channel       string  `json:"channel"`
	ChannelID     string  `json:"channel_id"`
	ModifiedDate  string  `json:"modified_date"`
	PlaylistCount int     `json:"playlist_count"`
	Entries       []Entry `json:"entries"`
}

// Kind classifies the response. Channel listings come back as playlists
// too, so the channel checks run first.
func (s *Snapshot) Kind() SnapshotKind {
	switch {
	case strings.HasPrefix(s.ID, "@"),
		s.UploaderID != "" && s.ID == s.UploaderID,
		s.Type == "playlist" && strings.HasSuffix(s.Title, "- Videos"):
		return SnapshotChannel
	case s.Type == "playlist":
		return SnapshotPlaylist
	}
	return SnapshotUnknown
}

// EntryIDs returns the entry ids in listing order.
func (s *Snapshot) EntryIDs() []string {
	ids := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// Ref returns the playlist reference used for views.
func (s *Snapshot) Ref() *PlaylistRef {
	return &PlaylistRef{ID: s.ID, Title: s.Title}
}

// ParseSnapshot decodes a --dump-single-json document.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &InvalidJSONError{Source: "yt-dlp", Err: err}
	}
	if s.ID == "" {
		return nil, ErrMissingID
	}
	return &s, nil
}

// ParseVideo decodes an info JSON sidecar.
func ParseVideo(data []byte) (*Video, error) {
	var v Video
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &InvalidJSONError{Source: "info.json", Err: err}
	}
	if v.ID == "" {
		return nil, ErrMissingID
	}
	if v.Channel == "" {
		v.Channel = v.Uploader
	}
	return &v, nil
}
