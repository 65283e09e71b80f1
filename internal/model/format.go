package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an audio container, named by its file extension without the dot.
type Format string

const (
	// FormatMP3 is MPEG-1 Layer III audio. It is the default download format.
	FormatMP3 Format = "mp3"

	// FormatM4A is AAC audio in an MPEG-4 container.
	FormatM4A Format = "m4a"

	// FormatWebM is Opus or Vorbis audio in a WebM container. It only ever
	// appears as a transfer container, never as a download target.
	FormatWebM Format = "webm"
)

// TargetFormats lists the formats a workspace may download into.
var TargetFormats = []Format{FormatMP3, FormatM4A}

// KnownFormats lists every format the pipeline can recognise on disk.
var KnownFormats = []Format{FormatMP3, FormatM4A, FormatWebM}

// ParseFormat parses a format name or extension, case-insensitively.
//
//	ParseFormat("MP3")  // FormatMP3
//	ParseFormat(".m4a") // FormatM4A
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	for _, f := range KnownFormats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown audio format %q", s)
}

// FormatOf returns the format of a path based on its extension.
func FormatOf(path string) (Format, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", false
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", false
	}
	return f, true
}

// Extension returns the extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// IsTarget reports whether f is a valid download target.
func (f Format) IsTarget() bool {
	return f == FormatMP3 || f == FormatM4A
}

// String implements fmt.Stringer.
func (f Format) String() string {
	return strings.ToUpper(string(f))
}

// UnmarshalText accepts any spelling ParseFormat understands.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalText writes the lower-case extension name.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f), nil
}
