// Package config provides application settings for playlist-sync.
//
// Settings are read from a JSON or YAML file, chosen by the file
// extension. A missing file yields DefaultSettings; fields absent from a
// file keep their default values.
//
//	settings, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    return err
//	}
//	manager := download.NewManager(settings.ParallelDownloads)
//
// Per-workspace options such as the playlist URL and the download format
// of an existing workspace live in the workspace package instead.
package config
