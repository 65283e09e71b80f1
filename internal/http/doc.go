// Package http provides the HTTP client used to talk to the resolver and
// playlist services and to stream audio.
//
// # Basic Usage
//
//	client := http.NewClient(http.WithUserAgent("playlist-sync"))
//
//	// Decode a JSON document
//	err := client.GetJSON(ctx, url, &v)
//
//	// Stream a large body with progress
//	n, err := client.Stream(ctx, audioURL, file, func(written, total int64) {
//	    fmt.Printf("%d / %d\n", written, total)
//	})
//
// Non-200 responses are reported as *StatusError.
//
// # Progress Tracking
//
// ProgressWriter can wrap any io.Writer:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Total:    contentLength,
//	    OnUpdate: func(written, total int64) { /* update UI */ },
//	}
package http
