package model

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Normal Title", "Normal Title"},
		{`AC/DC - "Back In Black"`, "ACDC - Back In Black"},
		{`a\b<c>d|e:f*g?h`, "abcdefgh"},
		{"  padded  ", "padded"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CleanTitle(tt.input); got != tt.want {
				t.Errorf("CleanTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTrack_Path(t *testing.T) {
	track := NewTrack("abc123", "Artist - Song", "")

	if !track.AutoDownload {
		t.Error("NewTrack should enable AutoDownload")
	}

	want := filepath.Join("/music", "Artist - Song.mp3")
	if got := track.Path("/music", FormatMP3); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	if got := track.FileName(FormatM4A); got != "Artist - Song.m4a" {
		t.Errorf("FileName(m4a) = %q, want %q", got, "Artist - Song.m4a")
	}
}

func TestTrack_FileNameFallsBackToID(t *testing.T) {
	track := Track{ID: "abc123", Title: "..."}

	if got := track.FileName(FormatMP3); got != "abc123.mp3" {
		t.Errorf("FileName() = %q, want %q", got, "abc123.mp3")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"mp3", FormatMP3, false},
		{"MP3", FormatMP3, false},
		{".m4a", FormatM4A, false},
		{"webm", FormatWebM, false},
		{"xyz", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatOf(t *testing.T) {
	if f, ok := FormatOf("/music/song.M4A"); !ok || f != FormatM4A {
		t.Errorf("FormatOf(song.M4A) = %q, %v", f, ok)
	}
	if _, ok := FormatOf("/music/song.xyz"); ok {
		t.Error("FormatOf(song.xyz) should not be recognised")
	}
	if _, ok := FormatOf("/music/song"); ok {
		t.Error("FormatOf without extension should not be recognised")
	}
}

func TestFormat_UnmarshalJSON(t *testing.T) {
	var v struct {
		Format Format `json:"format"`
	}
	if err := json.Unmarshal([]byte(`{"format":"M4A"}`), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.Format != FormatM4A {
		t.Errorf("Format = %q, want %q", v.Format, FormatM4A)
	}
	if err := json.Unmarshal([]byte(`{"format":"flac"}`), &v); err == nil {
		t.Error("Unmarshal should reject unknown formats")
	}
}

func TestDownloadState_String(t *testing.T) {
	tests := []struct {
		state  DownloadState
		name   string
		active bool
	}{
		{StateNotDownloaded, "not downloaded", false},
		{StateDownloaded, "downloaded", false},
		{StateNeedsConversion, "needs conversion", false},
		{StateQueued, "queued", true},
		{StateDownloading, "downloading", true},
		{StateConverting, "converting", true},
		{StateFailed, "failed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.state.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
		})
	}
}
