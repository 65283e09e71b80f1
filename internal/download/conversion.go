package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	ioutils "github.com/handiism/playlist-sync/internal/io"
	"github.com/handiism/playlist-sync/internal/model"
)

// ConversionItem transcodes an existing local file into another container.
//
// Its phases run Pending -> Converting -> Completed or Failed, or Cancelled
// when stopped. There is no progress while converting. The source file is
// deleted only after the destination has been confirmed.
type ConversionItem struct {
	lifecycle

	src        string
	dst        string
	transcoder Transcoder
}

// NewConversionItem creates a conversion of src into dst for track.
func NewConversionItem(track model.Track, src, dst string, deps Deps) *ConversionItem {
	c := &ConversionItem{src: src, dst: dst, transcoder: deps.Transcoder}
	c.init(c, track, deps.Logger)
	return c
}

// Source returns the path of the file being converted.
func (c *ConversionItem) Source() string { return c.src }

// Destination returns the path of the converted file.
func (c *ConversionItem) Destination() string { return c.dst }

// Start implements Item.
func (c *ConversionItem) Start() { c.start(c.run) }

func (c *ConversionItem) run(ctx context.Context) Completion {
	id := c.track.ID

	from, okFrom := model.FormatOf(c.src)
	to, okTo := model.FormatOf(c.dst)
	if !okFrom || !okTo || c.transcoder == nil || !c.transcoder.Supports(from, to) {
		return failure(StageConvert, id, fmt.Errorf("%s to %s: %w",
			filepath.Ext(c.src), filepath.Ext(c.dst), ErrUnsupportedConversion))
	}
	if !ioutils.Exists(c.src) {
		return failure(StageConvert, id, fmt.Errorf("%s: %w", c.src, ErrSourceMissing))
	}

	c.setPhase(PhaseConverting)

	out, err := ioutils.TempSibling(c.dst, to.Extension())
	if err != nil {
		return failure(StageConvert, id, err)
	}
	staged := out.Name()
	out.Close()
	defer ioutils.RemoveIfExists(staged)

	err = c.transcoder.TranscodeFrom(ctx, from, c.src, staged)
	if ctx.Err() != nil {
		return Completion{Cancelled: true}
	}
	if err != nil {
		return failure(StageConvert, id, err)
	}

	if err := placeFile(ctx, staged, c.dst); err != nil {
		return failure(StageFinalize, id, err)
	}
	if info, err := os.Stat(c.dst); err != nil || info.Size() == 0 {
		return failure(StageFinalize, id, fmt.Errorf("converted file missing at %s", c.dst))
	}

	if err := os.Remove(c.src); err != nil {
		c.log.Warn().Err(err).Str("path", c.src).Msg("could not remove converted source")
	}
	c.log.Debug().Str("path", c.dst).Msg("conversion finished")
	return Completion{}
}
