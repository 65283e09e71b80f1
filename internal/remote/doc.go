// Package remote talks to the services that describe playlists and locate
// audio streams.
//
// # Resolving Audio
//
// A Resolver maps a track to a directly streamable Source:
//
//	resolver := remote.Shared(remote.NewAPIResolver(client, "https://resolver.local"))
//	src, err := resolver.Resolve(ctx, track)
//	// src.URL, src.Container
//
// Shared collapses concurrent lookups of the same track.
//
// # Listing Playlists
//
//	id, _ := remote.PlaylistID("https://www.youtube.com/playlist?list=PL123")
//	svc := remote.NewAPIPlaylistService(client, apiURL, remote.WithMaximum(500))
//	tracks, err := svc.Tracks(ctx, id)
//
// Pages are followed through nextPageToken. Titles are cleaned with
// model.CleanTitle and entries without an ID are skipped.
package remote
