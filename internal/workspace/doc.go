// Package workspace keeps a local folder in sync with a remote playlist.
//
// A workspace is a folder holding one audio file per playlist track plus a
// hidden metadata directory:
//
//	Workout/
//	├── .workspace/
//	│   └── .workspace.json
//	├── Artist - Song.mp3
//	└── Workout.m3u
//
// Open loads or creates it. Refresh fetches the playlist and merges it into
// the stored track list; Cleanup removes files that no longer belong to a
// track. Inspect tells whether a track is downloaded, missing, or present
// in another format that has to be converted.
//
// # Syncer
//
// The Syncer turns missing tracks into work items and hands them to a
// scheduler:
//
//	syncer := workspace.NewSyncer(ws, factory, manager)
//	syncer.OnEvent(func(ev workspace.Event) { ... })
//	if _, err := syncer.SyncAll(); err != nil {
//	    return err
//	}
//	res, err := syncer.Wait(ctx)
//	if !res.OK() {
//	    fmt.Printf("%d of %d tracks failed\n", res.Failed, res.Total)
//	}
//
// Cancel aborts the scheduler and stops every tracked item; the batch then
// drains with those items counted as cancelled.
package workspace
