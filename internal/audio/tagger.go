package audio

import (
	"strings"

	"github.com/bogem/id3v2"
	"github.com/handiism/playlist-sync/internal/model"
)

// TagEditAction defines how to handle individual ID3 tags.
//
// Each tag field can be configured independently to determine whether
// it should be modified, cleared, or left unchanged.
type TagEditAction int

const (
	// TagEmpty clears the tag value.
	TagEmpty TagEditAction = iota

	// TagModify updates the tag with the value derived from the track.
	TagModify

	// TagDoNotModify leaves the existing tag value unchanged.
	TagDoNotModify
)

// TagConfig holds tagging configuration for each ID3 field.
//
// Example:
//
//	cfg := &TagConfig{
//	    ModifyTags: true,
//	    Artist:     TagModify,      // "Artist" part of "Artist - Title"
//	    TrackTitle: TagModify,      // "Title" part, or the whole title
//	    Album:      TagModify,      // workspace name
//	    Comments:   TagEmpty,       // clear comments left by the source
//	}
type TagConfig struct {
	// ModifyTags is a master switch. If false, no string tags are modified.
	ModifyTags bool

	// Artist controls the TPE1 (Lead artist) frame.
	Artist TagEditAction

	// Album controls the TALB (Album title) frame.
	Album TagEditAction

	// TrackTitle controls the TIT2 (Title) frame.
	TrackTitle TagEditAction

	// Comments controls the COMM (Comments) frame.
	Comments TagEditAction
}

// DefaultTagConfig returns the default tag configuration.
//
// Artist, album and title are modified; comments are cleared.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		ModifyTags: true,
		Artist:     TagModify,
		Album:      TagModify,
		TrackTitle: TagModify,
		Comments:   TagEmpty,
	}
}

// TagInfo is the metadata written into a file.
type TagInfo struct {
	Artist string
	Title  string
	Album  string
}

// InfoFromTrack derives tag metadata from a track title.
//
// Titles of the form "Artist - Title" are split on the first " - ".
// Otherwise the whole title is used and the artist is left empty.
//
//	InfoFromTrack(track, "Workout") // {Artist: "Daft Punk", Title: "One More Time", Album: "Workout"}
func InfoFromTrack(track model.Track, album string) TagInfo {
	info := TagInfo{Title: track.Title, Album: album}
	if artist, title, ok := strings.Cut(track.Title, " - "); ok {
		artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
		if artist != "" && title != "" {
			info.Artist, info.Title = artist, title
		}
	}
	return info
}

// Tagger writes ID3 tags to MP3 files.
//
// Example:
//
//	tagger := NewTagger(DefaultTagConfig())
//	if tagger.Supports(model.FormatMP3) {
//	    err := tagger.SaveTags(path, InfoFromTrack(track, ws.Name), cover)
//	}
type Tagger struct {
	config *TagConfig
}

// NewTagger creates a new Tagger with the given configuration.
//
// If config is nil, DefaultTagConfig() is used.
func NewTagger(config *TagConfig) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	return &Tagger{config: config}
}

// Supports reports whether files of format f can be tagged.
func (t *Tagger) Supports(f model.Format) bool {
	return f == model.FormatMP3
}

// SaveTags writes ID3 tags to the MP3 file at path.
//
// String frames follow the TagConfig. Artwork, when non-nil, replaces any
// attached front cover. The file must already exist.
func (t *Tagger) SaveTags(path string, info TagInfo, artwork []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if t.config.ModifyTags {
		t.updateStringTags(tag, info)
	}

	if artwork != nil {
		t.updateArtwork(tag, artwork)
	}

	return tag.Save()
}

// updateStringTags updates text-based ID3 frames based on configuration.
func (t *Tagger) updateStringTags(tag *id3v2.Tag, info TagInfo) {
	switch t.config.Artist {
	case TagEmpty:
		tag.SetArtist("")
	case TagModify:
		if info.Artist != "" {
			tag.SetArtist(info.Artist)
		}
	}

	switch t.config.Album {
	case TagEmpty:
		tag.SetAlbum("")
	case TagModify:
		tag.SetAlbum(info.Album)
	}

	switch t.config.TrackTitle {
	case TagEmpty:
		tag.SetTitle("")
	case TagModify:
		tag.SetTitle(info.Title)
	}

	switch t.config.Comments {
	case TagEmpty:
		tag.DeleteFrames(tag.CommonID("Comments"))
	}
}

// updateArtwork embeds cover art as an attached picture frame.
func (t *Tagger) updateArtwork(tag *id3v2.Tag, artwork []byte) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))

	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	})
}
