package lavalink

import (
	"fmt"
	"net/url"
	"time"
)

// Track is a playable item as the audio node understands it. Encoded is the
// node's opaque payload and must be sent back verbatim when playing; Info is
// the decoded metadata that came with it.
type Track struct {
	Encoded   string    `json:"encoded"`
	Info      TrackInfo `json:"info"`
	Requester string    `json:"-"`
}

// TrackInfo carries the decoded track metadata from the node.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	SourceName string `json:"sourceName"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	IsSeekable bool   `json:"isSeekable"`
}

// Duration returns the track length. Length travels as milliseconds on the
// wire.
func (t Track) Duration() time.Duration {
	return time.Duration(t.Info.Length) * time.Millisecond
}

// Display returns a human-readable label for the track.
func (t Track) Display() string {
	if t.Info.Author == "" {
		return t.Info.Title
	}
	return fmt.Sprintf("%s - %s", t.Info.Author, t.Info.Title)
}

// SearchQuery normalizes a user query into a node load identifier. Direct
// URLs pass through untouched; everything else becomes a search query.
func SearchQuery(query string) string {
	if u, err := url.Parse(query); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return query
	}
	return "ytsearch:" + query
}
