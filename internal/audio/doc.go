// Package audio provides audio file services: ID3 tagging, playlist file
// generation and transcoding.
//
// # ID3 Tagging
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig())
//	err := tagger.SaveTags(path, audio.InfoFromTrack(track, "Workout"), coverJPEG)
//
// Only MP3 files are tagged; see Tagger.Supports.
//
// # Playlist Generation
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.CreatePlaylist("Workout", entries)
//
// Supported formats: M3U (with optional extended info), PLS, WPL and ZPL.
//
// # Transcoding
//
// FFmpeg runs the ffmpeg binary to convert between containers:
//
//	ff := audio.NewFFmpeg("", 192)
//	if ff.Supports(model.FormatM4A, model.FormatMP3) {
//	    err := ff.Transcode(ctx, "song.m4a", "song.mp3")
//	}
//
// Supported pairs are m4a -> mp3, webm -> mp3, webm -> m4a and mp3 -> m4a.
// Failures are reported as *ConversionError; unsupported pairs wrap
// ErrUnsupportedConversion.
package audio
