// Package download implements the bounded-concurrency download and
// conversion pipeline.
//
// # Work Items
//
// An Item is one unit of work for one track. Two kinds exist:
//
//   - FetchItem resolves a streamable source, streams it into a temporary
//     file next to the destination, transcodes it when the transferred
//     container differs from the target, tags it and moves it into place.
//   - ConversionItem transcodes an existing local file and removes the
//     source once the destination is confirmed.
//
// Every item emits exactly one Completion. Progress and phase events only
// precede it:
//
//	item := factory.Fetch(track, "/music/Song.mp3", download.FetchOptions{})
//	item.OnProgress(func(_ download.Item, p download.Progress) {
//	    fmt.Printf("%3d%%\r", p.Percent)
//	})
//	item.OnCompletion(func(_ download.Item, c download.Completion) {
//	    if c.Err != nil {
//	        log.Println(c.Err)
//	    }
//	})
//	item.Start()
//	<-item.Done()
//
// Stop cancels an item at any time. A stopped transfer removes its
// temporary file before the cancelled Completion is delivered.
//
// # Manager
//
// The Manager admits pending items in FIFO order while fewer than its
// parallelism limit are active:
//
//	manager := download.NewManager(4, download.WithLogger(logger))
//	for _, item := range items {
//	    if err := manager.Enqueue(item); err != nil {
//	        // download.ErrDuplicateItem
//	    }
//	}
//
// Admission is driven by a condition variable that is signalled when an
// item completes, when items are enqueued and when the limit changes.
// Abort clears the queue and stops every item it held.
//
// # Errors
//
// Failures are reported as *ItemError with the failing Stage. Use errors.Is
// with ErrResolutionFailed, ErrUnsupportedConversion or ErrSourceMissing to
// classify them; transfer failures wrap *http.StatusError or the network
// error.
package download
