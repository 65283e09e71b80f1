// Package model defines the data structures shared across playlist-sync.
//
// # Track
//
// Track is a reference to one entry of a remote playlist, identified by an
// opaque ID:
//
//	track := model.NewTrack("dQw4w9WgXcQ", "Artist - Song", thumbURL)
//	fmt.Println(track.Path(workspaceDir, model.FormatMP3))
//
// # Format
//
// Format names an audio container by its extension. FormatMP3 and FormatM4A
// are download targets, FormatWebM only appears as a transfer container:
//
//	f, ok := model.FormatOf("/music/song.m4a") // FormatM4A, true
//
// # DownloadState
//
// DownloadState is derived from the files in a workspace (Downloaded,
// NotDownloaded, NeedsConversion) or set while a sync works on a track
// (Queued, Downloading, Converting, Failed).
package model
