package download

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/handiism/playlist-sync/internal/model"
	"github.com/rs/zerolog"
)

func conversionDeps(tr Transcoder) Deps {
	return Deps{Transcoder: tr, Logger: zerolog.Nop()}
}

// TestConversionItem_RemovesSource checks a successful conversion.
func TestConversionItem_RemovesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Song.m4a")
	dst := filepath.Join(dir, "Song.mp3")
	os.WriteFile(src, []byte("aac"), 0644)

	item := NewConversionItem(model.Track{ID: "a"}, src, dst, conversionDeps(&fakeTranscoder{}))
	var phases []Phase
	item.OnPhase(func(_ Item, p Phase) { phases = append(phases, p) })

	c := runItem(t, item)
	if !c.Succeeded() {
		t.Fatalf("completion = %+v, want success", c)
	}
	if data, _ := os.ReadFile(dst); string(data) != "converted:aac" {
		t.Errorf("destination = %q", data)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source must be removed after conversion")
	}
	if len(phases) != 2 || phases[0] != PhaseConverting || phases[1] != PhaseCompleted {
		t.Errorf("phases = %v, want [converting completed]", phases)
	}
	assertNoTempFiles(t, dir)
}

// TestConversionItem_Failures checks that the source survives every failure.
func TestConversionItem_Failures(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		dst        string
		create     bool
		transcoder *fakeTranscoder
		wantErr    error
	}{
		{
			name:       "unsupported target",
			src:        "source.mp3",
			dst:        "dest.xyz",
			create:     true,
			transcoder: &fakeTranscoder{},
			wantErr:    ErrUnsupportedConversion,
		},
		{
			name:       "unsupported pair",
			src:        "source.mp3",
			dst:        "dest.webm",
			create:     true,
			transcoder: &fakeTranscoder{},
			wantErr:    ErrUnsupportedConversion,
		},
		{
			name:       "missing source",
			src:        "missing.m4a",
			dst:        "dest.mp3",
			transcoder: &fakeTranscoder{},
			wantErr:    ErrSourceMissing,
		},
		{
			name:       "transcoder error",
			src:        "source.m4a",
			dst:        "dest.mp3",
			create:     true,
			transcoder: &fakeTranscoder{err: errors.New("ffmpeg exited 1")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, tt.src)
			dst := filepath.Join(dir, tt.dst)
			if tt.create {
				os.WriteFile(src, []byte("audio"), 0644)
			}

			c := runItem(t, NewConversionItem(model.Track{ID: "a"}, src, dst, conversionDeps(tt.transcoder)))

			if c.Err == nil {
				t.Fatalf("completion = %+v, want failure", c)
			}
			if tt.wantErr != nil && !errors.Is(c.Err, tt.wantErr) {
				t.Errorf("error = %v, want %v", c.Err, tt.wantErr)
			}
			if tt.wantErr != nil && tt.transcoder.calls.Load() != 0 {
				t.Error("transcoder must not run")
			}
			if tt.create {
				if _, err := os.Stat(src); err != nil {
					t.Error("source must be kept on failure")
				}
			}
			if _, err := os.Stat(dst); !os.IsNotExist(err) {
				t.Error("destination must not exist")
			}
			assertNoTempFiles(t, dir)
		})
	}
}

// TestConversionItem_StopBeforeStart checks that a held conversion never runs.
func TestConversionItem_StopBeforeStart(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Song.m4a")
	os.WriteFile(src, []byte("aac"), 0644)
	tr := &fakeTranscoder{}

	item := NewConversionItem(model.Track{ID: "a"}, src, filepath.Join(dir, "Song.mp3"), conversionDeps(tr))
	item.Stop()
	item.Start()
	waitDone(t, item)

	if c, ok := item.Result(); !ok || !c.Cancelled {
		t.Errorf("result = %+v, %v, want cancelled", c, ok)
	}
	if tr.calls.Load() != 0 {
		t.Error("transcoder must not run")
	}
}
