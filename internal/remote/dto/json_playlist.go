package dto

import (
	"github.com/handiism/playlist-sync/internal/model"
)

// JSONPlaylistPage is one page of the playlist items endpoint.
type JSONPlaylistPage struct {
	NextPageToken string             `json:"nextPageToken"`
	PageInfo      JSONPageInfo       `json:"pageInfo"`
	Items         []JSONPlaylistItem `json:"items"`
}

// JSONPageInfo carries paging totals.
type JSONPageInfo struct {
	TotalResults   int `json:"totalResults"`
	ResultsPerPage int `json:"resultsPerPage"`
}

// JSONPlaylistItem is one entry of a playlist page.
type JSONPlaylistItem struct {
	Snippet JSONSnippet `json:"snippet"`
}

// JSONSnippet holds the descriptive part of a playlist item.
type JSONSnippet struct {
	Title      string                   `json:"title"`
	Position   int                      `json:"position"`
	Thumbnails map[string]JSONThumbnail `json:"thumbnails"`
	ResourceID JSONResourceID           `json:"resourceId"`
}

// JSONThumbnail is one thumbnail rendition.
type JSONThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// JSONResourceID identifies the media behind a playlist item.
type JSONResourceID struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId"`
}

// thumbnailPreference orders renditions from most to least preferred.
var thumbnailPreference = []string{"medium", "high", "standard", "default", "maxres"}

// ThumbnailURL picks the preferred thumbnail rendition.
func (s JSONSnippet) ThumbnailURL() string {
	for _, key := range thumbnailPreference {
		if th, ok := s.Thumbnails[key]; ok && th.URL != "" {
			return th.URL
		}
	}
	return ""
}

// ToTrack converts the item to a model.Track.
//
// ok is false for items without a media ID, such as removed entries.
func (it JSONPlaylistItem) ToTrack() (model.Track, bool) {
	id := it.Snippet.ResourceID.VideoID
	if id == "" {
		return model.Track{}, false
	}
	return model.NewTrack(id, it.Snippet.Title, it.Snippet.ThumbnailURL()), true
}
