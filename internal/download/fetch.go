package download

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/handiism/playlist-sync/internal/audio"
	ioutils "github.com/handiism/playlist-sync/internal/io"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/handiism/playlist-sync/internal/remote"
	"golang.org/x/sync/errgroup"
)

// Streamer copies a remote body into a writer, reporting progress.
type Streamer interface {
	Stream(ctx context.Context, url string, w io.Writer, onProgress func(written, total int64)) (int64, error)
}

// Transcoder converts audio files between containers.
type Transcoder interface {
	Supports(from, to model.Format) bool
	TranscodeFrom(ctx context.Context, from model.Format, src, dst string) error
}

// Tagger writes metadata into finished files.
type Tagger interface {
	Supports(f model.Format) bool
	SaveTags(path string, info audio.TagInfo, artwork []byte) error
}

// ArtworkFetcher returns cover art ready for embedding.
type ArtworkFetcher interface {
	Artwork(ctx context.Context, track model.Track) ([]byte, error)
}

// FetchOptions controls one download.
type FetchOptions struct {
	// Overwrite replaces an existing destination. When false, an existing
	// destination completes the item as cancelled without any network use.
	Overwrite bool

	// Album is written into the album tag.
	Album string
}

// FetchItem downloads one track into a destination file.
//
// The target format is the destination extension. Audio is streamed into a
// hidden temporary file next to the destination; if the transferred
// container differs from the target, it is transcoded before the result is
// moved into place. The destination is never written partially.
type FetchItem struct {
	lifecycle

	dest string
	opts FetchOptions
	deps Deps
}

// NewFetchItem creates a download of track into dest.
func NewFetchItem(track model.Track, dest string, opts FetchOptions, deps Deps) *FetchItem {
	f := &FetchItem{dest: dest, opts: opts, deps: deps}
	f.init(f, track, deps.Logger)
	return f
}

// Destination returns the final file path.
func (f *FetchItem) Destination() string { return f.dest }

// Start implements Item.
func (f *FetchItem) Start() { f.start(f.run) }

func (f *FetchItem) run(ctx context.Context) Completion {
	f.setPhase(PhaseStarted)
	id := f.track.ID

	target, ok := model.FormatOf(f.dest)
	if !ok || !target.IsTarget() {
		return failure(StageFinalize, id, fmt.Errorf("target %q: %w", filepath.Ext(f.dest), ErrUnsupportedConversion))
	}

	if !f.opts.Overwrite && ioutils.Exists(f.dest) {
		f.log.Debug().Str("path", f.dest).Msg("destination exists, skipping")
		return Completion{Cancelled: true}
	}

	src, err := f.deps.Resolver.Resolve(ctx, f.track)
	if ctx.Err() != nil {
		return Completion{Cancelled: true}
	}
	if err != nil {
		return failure(StageResolve, id, fmt.Errorf("%w: %w", ErrResolutionFailed, err))
	}
	if src.URL == "" {
		return failure(StageResolve, id, ErrResolutionFailed)
	}

	needsConversion := src.Container != target
	if needsConversion && (f.deps.Transcoder == nil || !f.deps.Transcoder.Supports(src.Container, target)) {
		return failure(StageConvert, id, fmt.Errorf("%s to %s: %w", src.Container, target, ErrUnsupportedConversion))
	}

	tmp, err := ioutils.TempSibling(f.dest, ".part")
	if err != nil {
		return failure(StageTransfer, id, err)
	}
	tmpPath := tmp.Name()
	defer ioutils.RemoveIfExists(tmpPath)

	artwork, err := f.transfer(ctx, src, tmp, target)
	if ctx.Err() != nil {
		return Completion{Cancelled: true}
	}
	if err != nil {
		return failure(StageTransfer, id, err)
	}

	staged := tmpPath
	if needsConversion {
		f.setPhase(PhaseConverting)
		staged, err = f.convert(ctx, src.Container, tmpPath, target)
		if ctx.Err() != nil {
			return Completion{Cancelled: true}
		}
		if err != nil {
			return failure(StageConvert, id, err)
		}
		defer ioutils.RemoveIfExists(staged)
		ioutils.RemoveIfExists(tmpPath)
	}

	if f.deps.Tagger != nil && f.deps.Tagger.Supports(target) {
		if err := f.deps.Tagger.SaveTags(staged, audio.InfoFromTrack(f.track, f.opts.Album), artwork); err != nil {
			f.log.Warn().Err(err).Msg("tagging failed")
		}
	}

	if ctx.Err() != nil {
		return Completion{Cancelled: true}
	}
	if err := placeFile(ctx, staged, f.dest); err != nil {
		return failure(StageFinalize, id, err)
	}

	f.log.Debug().Str("path", f.dest).Msg("download finished")
	return Completion{}
}

// transfer streams the source into tmp and, concurrently, fetches cover
// art when the target can carry it. Artwork failures are only logged.
func (f *FetchItem) transfer(ctx context.Context, src remote.Source, tmp io.WriteCloser, target model.Format) ([]byte, error) {
	var (
		artwork  []byte
		received int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := f.deps.Streamer.Stream(gctx, src.URL, tmp, func(written, total int64) {
			if total <= 0 && src.Size > 0 {
				total = src.Size
			}
			f.emitProgress(written, total)
		})
		received = n
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		return err
	})

	if f.deps.Artwork != nil && f.deps.Tagger != nil && f.deps.Tagger.Supports(target) && f.track.ThumbnailURL != "" {
		g.Go(func() error {
			art, err := f.deps.Artwork.Artwork(gctx, f.track)
			if err != nil {
				if gctx.Err() == nil {
					f.log.Warn().Err(err).Msg("cover art unavailable")
				}
				return nil
			}
			artwork = art
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	f.emitProgress(received, received)
	return artwork, nil
}

// convert transcodes tmpPath into a staged file with the target extension.
func (f *FetchItem) convert(ctx context.Context, from model.Format, tmpPath string, target model.Format) (string, error) {
	out, err := ioutils.TempSibling(f.dest, target.Extension())
	if err != nil {
		return "", err
	}
	outPath := out.Name()
	out.Close()

	if err := f.deps.Transcoder.TranscodeFrom(ctx, from, tmpPath, outPath); err != nil {
		ioutils.RemoveIfExists(outPath)
		return "", err
	}
	return outPath, nil
}

// placeFile moves staged onto dest. If the move fails, a stale dest is
// removed and the move retried once.
func placeFile(ctx context.Context, staged, dest string) error {
	err := ioutils.MoveFile(ctx, staged, dest)
	if err == nil {
		return nil
	}
	if !ioutils.Exists(dest) {
		return err
	}
	if rmErr := ioutils.RemoveIfExists(dest); rmErr != nil {
		return err
	}
	return ioutils.MoveFile(ctx, staged, dest)
}
