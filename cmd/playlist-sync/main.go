package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/handiism/playlist-sync/internal/app"
	"github.com/handiism/playlist-sync/internal/config"
	"github.com/handiism/playlist-sync/internal/download"
	"github.com/handiism/playlist-sync/internal/logging"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/handiism/playlist-sync/internal/workspace"
)

func main() {
	// Command line flags
	var (
		dirFlag       = flag.String("dir", "", "Workspace folder (or first argument)")
		urlFlag       = flag.String("url", "", "Playlist URL (replaces the stored one)")
		configFlag    = flag.String("config", "", "Path to config file (.json, .yaml)")
		formatFlag    = flag.String("format", "", "Download format for the workspace: mp3, m4a")
		parallelFlag  = flag.Int("parallel", 0, "Parallel downloads (overrides config)")
		trackFlag     = flag.String("track", "", "Download a single track by ID")
		overwriteFlag = flag.Bool("overwrite", false, "With -track: download again even if the file exists")
		noRefresh     = flag.Bool("no-refresh", false, "Skip fetching the playlist")
		playlistFlag  = flag.Bool("playlist", false, "Write a playlist file after syncing")
		cleanupFlag   = flag.Bool("cleanup", false, "Delete files that are not part of the playlist")
		verboseFlag   = flag.Bool("verbose", false, "Show verbose output")
		dryRunFlag    = flag.Bool("dry-run", false, "List track states without downloading")
	)

	flag.Parse()

	dir := *dirFlag
	if dir == "" && flag.NArg() > 0 {
		dir = flag.Arg(0)
	}
	if dir == "" {
		fmt.Println("Playlist Sync - Keep a folder in sync with a playlist")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  playlist-sync -dir <folder> [-url <playlist URL>] [options]")
		fmt.Println("  playlist-sync <folder> [options]")
		fmt.Println()
		fmt.Println("For interactive mode, use: playlist-sync-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	configPath := *configFlag
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	settings, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *parallelFlag > 0 {
		settings.ParallelDownloads = *parallelFlag
	}
	if *verboseFlag {
		settings.LogLevel = "debug"
	}

	logOut := io.Writer(os.Stderr)
	if settings.LogFile != "" {
		f, err := logging.OpenFile(settings.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	} else if !*verboseFlag {
		settings.LogLevel = "warn"
	}
	logger, err := logging.New(settings.LogLevel, logOut, settings.LogFile == "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in config: %v\n", err)
		os.Exit(1)
	}

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	a := app.New(settings, logger)
	session, err := a.Open(dir, *urlFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening workspace: %v\n", err)
		os.Exit(1)
	}
	ws := session.Workspace

	if err := applyFlags(ws, *formatFlag, *playlistFlag, *cleanupFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🎵 Playlist Sync")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ℹ️  Workspace %s (%s)\n", ws.Name(), ws.Format())
	fmt.Println()

	if !*noRefresh {
		res, deleted, err := session.Refresh(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching playlist: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("ℹ️  Playlist: %d tracks (%d new, %d removed)\n", res.Total, res.Added, res.Removed)
		for _, path := range deleted {
			fmt.Printf("⚠️  Deleted %s\n", path)
		}
	}

	if *dryRunFlag {
		printStates(session)
		fmt.Println("\n[Dry run - not downloading]")
		return
	}

	printer := newPrinter(*verboseFlag)
	session.Syncer.OnEvent(printer.handle)

	if *trackFlag != "" {
		os.Exit(downloadOne(ctx, session, *trackFlag, *overwriteFlag))
	}

	fmt.Println("\n📥 Starting downloads...")
	fmt.Println()

	res, err := session.Sync(ctx)
	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if err != nil {
		if ctx.Err() != nil {
			fmt.Printf("Sync cancelled after %d of %d tracks.\n", res.Completed(), res.Total)
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
		os.Exit(1)
	}

	downloaded, total := ws.Counts()
	fmt.Printf("✨ Complete! %d downloaded, %d failed, %d skipped in %s (%s received)\n",
		res.Succeeded, res.Failed, res.Cancelled,
		res.Finished.Sub(res.Started).Round(time.Millisecond),
		humanize.Bytes(printer.received()))
	fmt.Printf("   %d/%d tracks are now in %s\n", downloaded, total, ws.Dir())
	if !res.OK() {
		fmt.Println("   Some downloads failed. This usually means the track was removed,")
		fmt.Println("   is not available in your country or there is no connection.")
		os.Exit(2)
	}
}

func applyFlags(ws *workspace.Workspace, format string, playlist, cleanup bool) error {
	var parsed model.Format
	if format != "" {
		f, err := model.ParseFormat(format)
		if err != nil {
			return err
		}
		if !f.IsTarget() {
			return fmt.Errorf("%s cannot be a download format", f)
		}
		parsed = f
	}
	if parsed == "" && !playlist && !cleanup {
		return nil
	}
	return ws.Update(func(s *workspace.Settings) {
		if parsed != "" {
			s.DownloadFormat = parsed
		}
		if playlist {
			s.CreatePlaylist = true
		}
		if cleanup {
			s.DeleteNotSyncedItems = true
		}
	})
}

func printStates(session *app.Session) {
	for i, t := range session.Workspace.Tracks() {
		state := session.Syncer.State(t)
		auto := ""
		if !t.AutoDownload {
			auto = " (manual)"
		}
		fmt.Printf("%4d. %-16s %s%s\n", i+1, state, t.Title, auto)
	}
	downloaded, total := session.Workspace.Counts()
	last := "never"
	if s := session.Workspace.Settings(); !s.LastSync.IsZero() {
		last = humanize.Time(s.LastSync)
	}
	fmt.Printf("\n%d/%d downloaded, last sync %s\n", downloaded, total, last)
}

func downloadOne(ctx context.Context, session *app.Session, id string, overwrite bool) int {
	item, err := session.Syncer.Download(id, overwrite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	select {
	case <-item.Done():
	case <-ctx.Done():
		item.Stop()
		<-item.Done()
	}
	c, _ := item.Result()
	switch {
	case c.Err != nil:
		return 2
	case c.Cancelled:
		return 130
	}
	return 0
}

// printer writes one line per finished track and, in verbose mode, phase
// changes as they happen.
type printer struct {
	verbose bool

	mu    sync.Mutex
	bytes map[string]int64
}

func newPrinter(verbose bool) *printer {
	return &printer{verbose: verbose, bytes: make(map[string]int64)}
}

func (p *printer) handle(ev workspace.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case workspace.EventPhase:
		if p.verbose {
			fmt.Printf("   %s: %s\n", ev.Track.Title, ev.State)
		}
	case workspace.EventProgress:
		p.bytes[ev.Track.ID] = ev.Progress.Received
	case workspace.EventCompleted:
		c := ev.Completion
		switch {
		case c.Err != nil:
			fmt.Printf("❌ %s: %s\n", ev.Track.Title, describe(c.Err))
		case c.Cancelled:
			fmt.Printf("⏭️  %s\n", ev.Track.Title)
		default:
			fmt.Printf("✅ %s (%s)\n", ev.Track.Title, humanize.Bytes(uint64(p.bytes[ev.Track.ID])))
		}
	}
}

func (p *printer) received() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, b := range p.bytes {
		n += b
	}
	return uint64(n)
}

// describe shortens well-known failures for the terminal.
func describe(err error) string {
	switch {
	case errors.Is(err, download.ErrResolutionFailed):
		return "no downloadable audio found"
	case errors.Is(err, download.ErrUnsupportedConversion):
		return "cannot convert to the workspace format"
	case errors.Is(err, download.ErrSourceMissing):
		return "file to convert disappeared"
	}
	return err.Error()
}
