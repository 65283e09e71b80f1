// Package ioutils provides file system and image helpers.
//
// # File Operations
//
//	// Move a finished download into place (rename, or copy across devices)
//	err := ioutils.MoveFile(ctx, tempPath, "/music/Song.m4a")
//
//	// Create a hidden temporary file next to the destination
//	tmp, err := ioutils.TempSibling("/music/Song.mp3", ".part")
//
//	// Delete a file, ignoring a missing one
//	err := ioutils.RemoveIfExists(tempPath)
//
// # Filename Sanitization
//
//	safe := ioutils.SanitizeFileName("Song: Part 1/2") // "Song_ Part 1_2"
//
// # Cover Art
//
// CoverProcessor turns a thumbnail into JPEG cover art bounded in size:
//
//	art, err := ioutils.NewCoverProcessor(500).Prepare(ctx, thumbnail)
package ioutils
